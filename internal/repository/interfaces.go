// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/parknote/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
// PostgreSQL・MongoDBどちらの実装もこのエラーに変換して返す。
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが既に登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
}

// ParkingNoteRepository は駐車メモの永続化インターフェース。
// 取得・更新・削除はすべて所有者IDで絞り込む。
type ParkingNoteRepository interface {
	// ListByOwner は所有者の駐車メモを作成日時の降順で返す。
	ListByOwner(ctx context.Context, userID string) ([]*model.ParkingNote, error)

	// FindByOwnerAndID は所有者IDとメモIDでメモを取得する。
	// 見つからない場合（他ユーザーのメモを含む）はnilを返す。
	FindByOwnerAndID(ctx context.Context, userID, id string) (*model.ParkingNote, error)

	// Create は駐車メモを作成する。
	Create(ctx context.Context, note *model.ParkingNote) error

	// Update は駐車メモの更新可能フィールドを置き換える。
	// 対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, note *model.ParkingNote) (bool, error)

	// DeleteByOwnerAndID は駐車メモを削除する。対象が存在しない場合はfalseを返す。
	DeleteByOwnerAndID(ctx context.Context, userID, id string) (bool, error)

	// DeleteExpiredBefore はexpiry_timeがcutoffより前のメモを削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
