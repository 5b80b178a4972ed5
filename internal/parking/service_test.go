package parking

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/parknote/internal/model"
	"github.com/hitoshi/parknote/internal/repository"
	"github.com/hitoshi/parknote/internal/security"
)

// --- モック定義 ---

// memoryNoteRepo は所有者で絞り込むインメモリのParkingNoteRepository。
type memoryNoteRepo struct {
	mu    sync.Mutex
	notes map[string]model.ParkingNote

	listFn   func(ctx context.Context, userID string) ([]*model.ParkingNote, error)
	updateFn func(ctx context.Context, note *model.ParkingNote) (bool, error)
	updates  int
}

func newMemoryNoteRepo() *memoryNoteRepo {
	return &memoryNoteRepo{notes: make(map[string]model.ParkingNote)}
}

func (m *memoryNoteRepo) ListByOwner(ctx context.Context, userID string) ([]*model.ParkingNote, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ParkingNote
	for _, n := range m.notes {
		if n.UserID == userID {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryNoteRepo) FindByOwnerAndID(_ context.Context, userID, id string) (*model.ParkingNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	return &n, nil
}

func (m *memoryNoteRepo) Create(_ context.Context, note *model.ParkingNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[note.ID] = *note
	return nil
}

func (m *memoryNoteRepo) Update(ctx context.Context, note *model.ParkingNote) (bool, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, note)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.notes[note.ID]
	if !ok || cur.UserID != note.UserID {
		return false, nil
	}
	m.updates++
	m.notes[note.ID] = *note
	return true, nil
}

func (m *memoryNoteRepo) DeleteByOwnerAndID(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	delete(m.notes, id)
	return true, nil
}

func (m *memoryNoteRepo) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, note := range m.notes {
		if note.ExpiryTime.Before(cutoff) {
			delete(m.notes, id)
			n++
		}
	}
	return n, nil
}

// --- compile-time interface checks ---
var _ repository.ParkingNoteRepository = (*memoryNoteRepo)(nil)

const (
	ownerA = "11111111-1111-1111-1111-111111111111"
	ownerB = "22222222-2222-2222-2222-222222222222"
)

// fixedClock はテストから進められる時計。
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func newTestService(repo repository.ParkingNoteRepository) (*Service, *fixedClock) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(repo, security.NewTextSanitizer(), nil)
	svc.now = clock.now
	return svc, clock
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q", apiErr.Code, code)
	}
}

func validInput(clock *fixedClock) NoteInput {
	return NoteInput{
		Address:     "123 Main St",
		Coordinates: NewCoordinatesInput(-37.8136, 144.9631),
		ExpiryTime:  clock.t.Add(time.Hour),
		Notes:       "Level 2, bay 14",
	}
}

// --- テスト ---

// TestCreateThenGet_RoundTrip は作成したメモが入力と同じ内容で取得できることを検証する。
func TestCreateThenGet_RoundTrip(t *testing.T) {
	svc, clock := newTestService(newMemoryNoteRepo())
	ctx := context.Background()
	input := validInput(clock)

	created, err := svc.CreateNote(ctx, ownerA, input)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if created.ID == "" || created.UserID != ownerA {
		t.Fatalf("unexpected note: %+v", created)
	}
	if !created.CreatedAt.Equal(clock.t) || !created.UpdatedAt.Equal(clock.t) {
		t.Errorf("timestamps = %v/%v, want %v", created.CreatedAt, created.UpdatedAt, clock.t)
	}
	if created.ReminderSent {
		t.Error("ReminderSent should default to false")
	}

	got, err := svc.GetNote(ctx, ownerA, created.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Address != input.Address || got.Notes != input.Notes {
		t.Errorf("text fields = %q/%q", got.Address, got.Notes)
	}
	if !got.ExpiryTime.Equal(input.ExpiryTime) {
		t.Errorf("ExpiryTime = %v, want %v", got.ExpiryTime, input.ExpiryTime)
	}
	if got.Coordinates == nil || got.Coordinates.Lat != -37.8136 || got.Coordinates.Lng != 144.9631 {
		t.Errorf("Coordinates = %+v", got.Coordinates)
	}
}

func TestCreateNote_WithoutCoordinates(t *testing.T) {
	svc, clock := newTestService(newMemoryNoteRepo())
	input := validInput(clock)
	input.Coordinates = nil

	note, err := svc.CreateNote(context.Background(), ownerA, input)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if note.Coordinates != nil {
		t.Errorf("Coordinates = %+v, want nil", note.Coordinates)
	}
}

// TestCreateNote_SanitizesText はマークアップ除去とトリムが保存前に行われることを検証する。
func TestCreateNote_SanitizesText(t *testing.T) {
	svc, clock := newTestService(newMemoryNoteRepo())
	input := validInput(clock)
	input.Address = "  <b>Smith & Sons</b> car park "
	input.Notes = `<script>alert(1)</script>near exit`

	note, err := svc.CreateNote(context.Background(), ownerA, input)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if note.Address != "Smith & Sons car park" {
		t.Errorf("Address = %q", note.Address)
	}
	if note.Notes != "near exit" {
		t.Errorf("Notes = %q", note.Notes)
	}
}

func TestCreateNote_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NoteInput)
		wantMsg string
	}{
		{"住所なし", func(in *NoteInput) { in.Address = "" }, "address is required"},
		{"マークアップのみの住所", func(in *NoteInput) { in.Address = "<p> </p>" }, "address is required"},
		{"失効時刻なし", func(in *NoteInput) { in.ExpiryTime = time.Time{} }, "expiryTime is required"},
		{"緯度範囲外", func(in *NoteInput) { in.Coordinates = NewCoordinatesInput(90.5, 0) }, "lat must be between -90 and 90"},
		{"経度範囲外", func(in *NoteInput) { in.Coordinates = NewCoordinatesInput(0, 181) }, "lng must be between -180 and 180"},
		{"経度のみ欠落", func(in *NoteInput) { in.Coordinates.Lng = nil }, "lng is required"},
		{"緯度のみ欠落", func(in *NoteInput) { in.Coordinates.Lat = nil }, "lat is required"},
		{"住所長すぎ", func(in *NoteInput) { in.Address = strings.Repeat("a", 501) }, "address must be at most 500 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryNoteRepo()
			svc, clock := newTestService(repo)
			input := validInput(clock)
			tt.mutate(&input)

			_, err := svc.CreateNote(context.Background(), ownerA, input)
			assertAPIErrorCode(t, err, model.ErrCodeValidation)
			if err.(*model.APIError).Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.(*model.APIError).Message, tt.wantMsg)
			}
			if len(repo.notes) != 0 {
				t.Error("nothing should be stored on validation failure")
			}
		})
	}
}

// TestOwnerScoping は他ユーザーのメモが一覧・取得・更新・削除のいずれからも見えないことを検証する。
func TestOwnerScoping(t *testing.T) {
	repo := newMemoryNoteRepo()
	svc, clock := newTestService(repo)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, ownerA, validInput(clock))
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}

	list, err := svc.ListNotes(ctx, ownerB)
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("owner B sees %d notes, want 0", len(list))
	}

	_, err = svc.GetNote(ctx, ownerB, note.ID)
	assertAPIErrorCode(t, err, model.ErrCodeNotFound)

	_, err = svc.UpdateNote(ctx, ownerB, note.ID, validInput(clock))
	assertAPIErrorCode(t, err, model.ErrCodeNotFound)

	err = svc.DeleteNote(ctx, ownerB, note.ID)
	assertAPIErrorCode(t, err, model.ErrCodeNotFound)

	if _, ok := repo.notes[note.ID]; !ok {
		t.Error("owner A's note must survive owner B's delete")
	}
}

func TestListNotes_NewestFirstAndNeverNil(t *testing.T) {
	svc, clock := newTestService(newMemoryNoteRepo())
	ctx := context.Background()

	empty, err := svc.ListNotes(ctx, ownerA)
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("empty list = %#v, want non-nil empty slice", empty)
	}

	first, _ := svc.CreateNote(ctx, ownerA, validInput(clock))
	clock.t = clock.t.Add(time.Minute)
	second, _ := svc.CreateNote(ctx, ownerA, validInput(clock))

	list, err := svc.ListNotes(ctx, ownerA)
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("order = %v, want [%s %s]", ids(list), second.ID, first.ID)
	}
}

func TestGetNote_InvalidIDIsNotFound(t *testing.T) {
	svc, _ := newTestService(newMemoryNoteRepo())

	for _, id := range []string{"", "abc", "not-a-uuid-at-all", "12345"} {
		_, err := svc.GetNote(context.Background(), ownerA, id)
		assertAPIErrorCode(t, err, model.ErrCodeNotFound)
	}
}

// TestUpdateNote_ReplacesFields は更新で可変フィールドが置き換わり、IDと所有者が保たれることを検証する。
func TestUpdateNote_ReplacesFields(t *testing.T) {
	svc, clock := newTestService(newMemoryNoteRepo())
	ctx := context.Background()

	note, _ := svc.CreateNote(ctx, ownerA, validInput(clock))
	clock.t = clock.t.Add(5 * time.Minute)

	input := NoteInput{
		Address:    "456 Side Rd",
		ExpiryTime: clock.t.Add(2 * time.Hour),
		Notes:      "",
	}
	updated, err := svc.UpdateNote(ctx, ownerA, note.ID, input)
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}

	if updated.ID != note.ID || updated.UserID != ownerA {
		t.Errorf("identity changed: %s/%s", updated.ID, updated.UserID)
	}
	if updated.Address != "456 Side Rd" || updated.Notes != "" {
		t.Errorf("text fields = %q/%q", updated.Address, updated.Notes)
	}
	if updated.Coordinates != nil {
		t.Errorf("omitted coordinates should be cleared, got %+v", updated.Coordinates)
	}
	if !updated.CreatedAt.Equal(note.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", note.CreatedAt, updated.CreatedAt)
	}
	if !updated.UpdatedAt.Equal(clock.t) {
		t.Errorf("UpdatedAt = %v, want %v", updated.UpdatedAt, clock.t)
	}
}

// TestUpdateNote_Idempotent は同一内容の更新を繰り返しても保存状態とUpdatedAtが変わらないことを検証する。
func TestUpdateNote_Idempotent(t *testing.T) {
	repo := newMemoryNoteRepo()
	svc, clock := newTestService(repo)
	ctx := context.Background()

	note, _ := svc.CreateNote(ctx, ownerA, validInput(clock))

	input := validInput(clock)
	input.Address = "789 Other Ave"

	clock.t = clock.t.Add(time.Minute)
	first, err := svc.UpdateNote(ctx, ownerA, note.ID, input)
	if err != nil {
		t.Fatalf("first UpdateNote: %v", err)
	}

	clock.t = clock.t.Add(time.Minute)
	second, err := svc.UpdateNote(ctx, ownerA, note.ID, input)
	if err != nil {
		t.Fatalf("second UpdateNote: %v", err)
	}

	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Errorf("UpdatedAt bumped on identical update: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
	if !first.SameContent(second) {
		t.Error("stored content differs after identical update")
	}
	if repo.updates != 1 {
		t.Errorf("repository updates = %d, want 1", repo.updates)
	}
}

func TestUpdateNote_ValidationError(t *testing.T) {
	svc, clock := newTestService(newMemoryNoteRepo())
	ctx := context.Background()
	note, _ := svc.CreateNote(ctx, ownerA, validInput(clock))

	input := validInput(clock)
	input.Address = "   "
	_, err := svc.UpdateNote(ctx, ownerA, note.ID, input)
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestUpdateNote_VanishedBetweenReadAndWrite(t *testing.T) {
	repo := newMemoryNoteRepo()
	svc, clock := newTestService(repo)
	ctx := context.Background()
	note, _ := svc.CreateNote(ctx, ownerA, validInput(clock))

	repo.updateFn = func(context.Context, *model.ParkingNote) (bool, error) { return false, nil }

	input := validInput(clock)
	input.Notes = "changed"
	_, err := svc.UpdateNote(ctx, ownerA, note.ID, input)
	assertAPIErrorCode(t, err, model.ErrCodeNotFound)
}

func TestDeleteNote_ThenGetIsNotFound(t *testing.T) {
	svc, clock := newTestService(newMemoryNoteRepo())
	ctx := context.Background()
	note, _ := svc.CreateNote(ctx, ownerA, validInput(clock))

	if err := svc.DeleteNote(ctx, ownerA, note.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}

	_, err := svc.GetNote(ctx, ownerA, note.ID)
	assertAPIErrorCode(t, err, model.ErrCodeNotFound)

	err = svc.DeleteNote(ctx, ownerA, note.ID)
	assertAPIErrorCode(t, err, model.ErrCodeNotFound)
}

func TestListNotes_RepositoryErrorIsWrapped(t *testing.T) {
	repo := newMemoryNoteRepo()
	repo.listFn = func(context.Context, string) ([]*model.ParkingNote, error) {
		return nil, errors.New("connection refused")
	}
	svc, _ := newTestService(repo)

	_, err := svc.ListNotes(context.Background(), ownerA)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("error = %v, want wrapped repository error", err)
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Error("repository failure should not be an APIError")
	}
}

func ids(notes []*model.ParkingNote) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}
