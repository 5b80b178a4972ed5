package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/parknote/internal/model"
)

// 実ストア（PostgreSQL / MongoDB）に対して共通で検証するリポジトリの振る舞い。
// 各ストアのテストは接続できない環境ではスキップされる。

var contractBase = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newContractUser(email string) *model.User {
	return &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "$2a$04$hash",
		Name:         "User " + email,
		CreatedAt:    contractBase,
		UpdatedAt:    contractBase,
	}
}

func newContractNote(ownerID string, createdAt, expiryTime time.Time) *model.ParkingNote {
	return &model.ParkingNote{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Address:     "1 Main St",
		Coordinates: &model.Coordinates{Lat: -37.8136, Lng: 144.9631},
		ExpiryTime:  expiryTime,
		Notes:       "level 2",
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// testUserRepoContract はUserRepository実装の共通の振る舞いを検証する。
func testUserRepoContract(t *testing.T, repo UserRepository) {
	t.Helper()
	ctx := context.Background()

	user := newContractUser("alice@example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	t.Run("メールアドレスで取得できる", func(t *testing.T) {
		got, err := repo.FindByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
		if got == nil {
			t.Fatal("expected user, got nil")
		}
		if got.ID != user.ID || got.Name != user.Name || got.PasswordHash != user.PasswordHash {
			t.Errorf("user = %+v, want %+v", got, user)
		}
		if !got.CreatedAt.Equal(user.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, user.CreatedAt)
		}
	})

	t.Run("未登録のメールアドレスはnil", func(t *testing.T) {
		got, err := repo.FindByEmail(ctx, "nobody@example.com")
		if err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("重複メールアドレスはErrDuplicateEmail", func(t *testing.T) {
		err := repo.Create(ctx, newContractUser("alice@example.com"))
		if !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("err = %v, want ErrDuplicateEmail", err)
		}
	})
}

// testNoteRepoContract はParkingNoteRepository実装の共通の振る舞いを検証する。
// 所有者によるスコープ、作成日時の降順、失効済みメモの削除を含む。
func testNoteRepoContract(t *testing.T, users UserRepository, notes ParkingNoteRepository) {
	t.Helper()
	ctx := context.Background()

	owner := newContractUser("owner@example.com")
	other := newContractUser("other@example.com")
	for _, u := range []*model.User{owner, other} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("Create user: %v", err)
		}
	}

	expiry := contractBase.Add(2 * time.Hour)
	oldest := newContractNote(owner.ID, contractBase, expiry)
	middle := newContractNote(owner.ID, contractBase.Add(time.Minute), expiry)
	newest := newContractNote(owner.ID, contractBase.Add(2*time.Minute), expiry)
	othersNote := newContractNote(other.ID, contractBase.Add(3*time.Minute), expiry)
	for _, n := range []*model.ParkingNote{middle, oldest, newest, othersNote} {
		if err := notes.Create(ctx, n); err != nil {
			t.Fatalf("Create note: %v", err)
		}
	}

	t.Run("一覧は所有者のメモのみを新しい順に返す", func(t *testing.T) {
		got, err := notes.ListByOwner(ctx, owner.ID)
		if err != nil {
			t.Fatalf("ListByOwner: %v", err)
		}
		want := []string{newest.ID, middle.ID, oldest.ID}
		if len(got) != len(want) {
			t.Fatalf("len = %d, want %d", len(got), len(want))
		}
		for i, id := range want {
			if got[i].ID != id {
				t.Errorf("[%d] = %s, want %s", i, got[i].ID, id)
			}
		}
	})

	t.Run("メモのない所有者は空の一覧", func(t *testing.T) {
		got, err := notes.ListByOwner(ctx, uuid.NewString())
		if err != nil {
			t.Fatalf("ListByOwner: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("got %v, want empty non-nil slice", got)
		}
	})

	t.Run("所有者は保存した内容を取得できる", func(t *testing.T) {
		got, err := notes.FindByOwnerAndID(ctx, owner.ID, oldest.ID)
		if err != nil {
			t.Fatalf("FindByOwnerAndID: %v", err)
		}
		if got == nil {
			t.Fatal("expected note, got nil")
		}
		if !got.SameContent(oldest) || got.UserID != owner.ID {
			t.Errorf("note = %+v, want %+v", got, oldest)
		}
		if !got.CreatedAt.Equal(oldest.CreatedAt) || !got.UpdatedAt.Equal(oldest.UpdatedAt) {
			t.Errorf("timestamps = %v/%v", got.CreatedAt, got.UpdatedAt)
		}
	})

	t.Run("他ユーザーのメモは取得できない", func(t *testing.T) {
		got, err := notes.FindByOwnerAndID(ctx, other.ID, oldest.ID)
		if err != nil {
			t.Fatalf("FindByOwnerAndID: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("他ユーザーによる更新は反映されない", func(t *testing.T) {
		hijack := *middle
		hijack.UserID = other.ID
		hijack.Address = "hijacked"

		found, err := notes.Update(ctx, &hijack)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if found {
			t.Error("Update by other owner should report not found")
		}

		got, _ := notes.FindByOwnerAndID(ctx, owner.ID, middle.ID)
		if got == nil || got.Address != middle.Address {
			t.Errorf("note changed by other owner: %+v", got)
		}
	})

	t.Run("所有者による更新は座標の削除を含めて反映される", func(t *testing.T) {
		updated := *middle
		updated.Address = "2 Oak Ave"
		updated.Coordinates = nil
		updated.Notes = "moved"
		updated.UpdatedAt = contractBase.Add(10 * time.Minute)

		found, err := notes.Update(ctx, &updated)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if !found {
			t.Fatal("Update by owner should find the note")
		}

		got, _ := notes.FindByOwnerAndID(ctx, owner.ID, middle.ID)
		if got == nil || !got.SameContent(&updated) {
			t.Fatalf("note = %+v, want %+v", got, updated)
		}
		if !got.UpdatedAt.Equal(updated.UpdatedAt) || !got.CreatedAt.Equal(middle.CreatedAt) {
			t.Errorf("timestamps = %v/%v", got.CreatedAt, got.UpdatedAt)
		}
	})

	t.Run("存在しないメモの更新はfalse", func(t *testing.T) {
		missing := newContractNote(owner.ID, contractBase, expiry)
		found, err := notes.Update(ctx, missing)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if found {
			t.Error("Update of missing note should report not found")
		}
	})

	t.Run("他ユーザーによる削除はfalseでメモは残る", func(t *testing.T) {
		deleted, err := notes.DeleteByOwnerAndID(ctx, other.ID, newest.ID)
		if err != nil {
			t.Fatalf("DeleteByOwnerAndID: %v", err)
		}
		if deleted {
			t.Error("Delete by other owner should report not found")
		}
		if got, _ := notes.FindByOwnerAndID(ctx, owner.ID, newest.ID); got == nil {
			t.Error("note should survive delete by other owner")
		}
	})

	t.Run("所有者による削除は一度だけ成功する", func(t *testing.T) {
		deleted, err := notes.DeleteByOwnerAndID(ctx, owner.ID, newest.ID)
		if err != nil {
			t.Fatalf("DeleteByOwnerAndID: %v", err)
		}
		if !deleted {
			t.Fatal("first delete should succeed")
		}

		deleted, err = notes.DeleteByOwnerAndID(ctx, owner.ID, newest.ID)
		if err != nil {
			t.Fatalf("DeleteByOwnerAndID: %v", err)
		}
		if deleted {
			t.Error("second delete should report not found")
		}
	})

	t.Run("失効時刻がcutoffより前のメモのみ削除する", func(t *testing.T) {
		expired := newContractNote(other.ID, contractBase, contractBase.Add(-48*time.Hour))
		if err := notes.Create(ctx, expired); err != nil {
			t.Fatalf("Create: %v", err)
		}

		cutoff := contractBase.Add(-24 * time.Hour)
		n, err := notes.DeleteExpiredBefore(ctx, cutoff)
		if err != nil {
			t.Fatalf("DeleteExpiredBefore: %v", err)
		}
		if n != 1 {
			t.Errorf("deleted = %d, want 1", n)
		}
		if got, _ := notes.FindByOwnerAndID(ctx, other.ID, expired.ID); got != nil {
			t.Error("expired note should be deleted")
		}
		if got, _ := notes.FindByOwnerAndID(ctx, other.ID, othersNote.ID); got == nil {
			t.Error("unexpired note should remain")
		}

		n, err = notes.DeleteExpiredBefore(ctx, cutoff)
		if err != nil {
			t.Fatalf("DeleteExpiredBefore: %v", err)
		}
		if n != 0 {
			t.Errorf("second run deleted = %d, want 0", n)
		}
	})
}
