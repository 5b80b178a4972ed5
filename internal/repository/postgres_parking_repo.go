package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/parknote/internal/model"
)

// noteColumns はparking_notesのSELECT対象カラム。scanNoteの順序と一致させること。
const noteColumns = `id, user_id, address, latitude, longitude, expiry_time, notes, reminder_sent, created_at, updated_at`

// PostgresParkingNoteRepo はPostgreSQLを使用した駐車メモリポジトリ。
type PostgresParkingNoteRepo struct {
	db *sql.DB
}

// NewPostgresParkingNoteRepo はPostgresParkingNoteRepoを生成する。
func NewPostgresParkingNoteRepo(db *sql.DB) *PostgresParkingNoteRepo {
	return &PostgresParkingNoteRepo{db: db}
}

// ListByOwner は所有者の駐車メモを作成日時の降順で返す。
func (r *PostgresParkingNoteRepo) ListByOwner(ctx context.Context, userID string) ([]*model.ParkingNote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+`
		 FROM parking_notes
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list parking notes: %w", err)
	}
	defer rows.Close()

	notes := make([]*model.ParkingNote, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parking note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parking notes: %w", err)
	}

	return notes, nil
}

// FindByOwnerAndID は所有者IDとメモIDでメモを取得する。見つからない場合はnilを返す。
func (r *PostgresParkingNoteRepo) FindByOwnerAndID(ctx context.Context, userID, id string) (*model.ParkingNote, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+`
		 FROM parking_notes
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find parking note: %w", err)
	}

	return note, nil
}

// Create は駐車メモを作成する。
func (r *PostgresParkingNoteRepo) Create(ctx context.Context, note *model.ParkingNote) error {
	lat, lng := coordinatesToNull(note.Coordinates)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO parking_notes
		 (id, user_id, address, latitude, longitude, expiry_time, notes, reminder_sent, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		note.ID, note.UserID, note.Address, lat, lng, note.ExpiryTime,
		note.Notes, note.ReminderSent, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert parking note: %w", err)
	}
	return nil
}

// Update は駐車メモの更新可能フィールドを置き換える。
// user_idとidは条件にのみ使用し、変更しない。
func (r *PostgresParkingNoteRepo) Update(ctx context.Context, note *model.ParkingNote) (bool, error) {
	lat, lng := coordinatesToNull(note.Coordinates)

	result, err := r.db.ExecContext(ctx,
		`UPDATE parking_notes
		 SET address = $3, latitude = $4, longitude = $5, expiry_time = $6, notes = $7, updated_at = $8
		 WHERE id = $1 AND user_id = $2`,
		note.ID, note.UserID, note.Address, lat, lng, note.ExpiryTime, note.Notes, note.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update parking note: %w", err)
	}
	return affectedOne(result)
}

// DeleteByOwnerAndID は駐車メモを削除する。対象が存在しない場合はfalseを返す。
func (r *PostgresParkingNoteRepo) DeleteByOwnerAndID(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM parking_notes WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete parking note: %w", err)
	}
	return affectedOne(result)
}

// DeleteExpiredBefore はexpiry_timeがcutoffより前のメモを削除する。
// 冪等: 削除対象がない場合は0を返す。
func (r *PostgresParkingNoteRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM parking_notes WHERE expiry_time < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired parking notes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanNote は1行分の駐車メモを読み取る。
func scanNote(s rowScanner) (*model.ParkingNote, error) {
	note := &model.ParkingNote{}
	var lat, lng sql.NullFloat64

	err := s.Scan(
		&note.ID, &note.UserID, &note.Address, &lat, &lng, &note.ExpiryTime,
		&note.Notes, &note.ReminderSent, &note.CreatedAt, &note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	note.Coordinates = nullToCoordinates(lat, lng)
	return note, nil
}

// coordinatesToNull は座標をNULL許容カラムの値に変換する。
func coordinatesToNull(c *model.Coordinates) (sql.NullFloat64, sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lng, Valid: true}
}

// nullToCoordinates はNULL許容カラムの値を座標に変換する。どちらかがNULLならnil。
func nullToCoordinates(lat, lng sql.NullFloat64) *model.Coordinates {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &model.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
}

// affectedOne は更新・削除で1行以上影響したかを返す。
func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ ParkingNoteRepository = (*PostgresParkingNoteRepo)(nil)
