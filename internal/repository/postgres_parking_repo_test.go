package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/parknote/internal/model"
)

func TestPostgresParkingNoteRepo_ImplementsInterface(t *testing.T) {
	var _ ParkingNoteRepository = (*PostgresParkingNoteRepo)(nil)
}

func TestCoordinatesToNull_NilCoordinates(t *testing.T) {
	lat, lng := coordinatesToNull(nil)
	if lat.Valid || lng.Valid {
		t.Errorf("expected both NULL, got lat=%v lng=%v", lat, lng)
	}
}

func TestCoordinatesToNull_WithCoordinates(t *testing.T) {
	lat, lng := coordinatesToNull(&model.Coordinates{Lat: -37.8, Lng: 144.9})
	if !lat.Valid || lat.Float64 != -37.8 {
		t.Errorf("lat = %+v, want valid -37.8", lat)
	}
	if !lng.Valid || lng.Float64 != 144.9 {
		t.Errorf("lng = %+v, want valid 144.9", lng)
	}
}

// 片方だけNULLの行は座標なしとして扱うこと
func TestNullToCoordinates_PartialNullIsNil(t *testing.T) {
	got := nullToCoordinates(sql.NullFloat64{Float64: 1, Valid: true}, sql.NullFloat64{})
	if got != nil {
		t.Errorf("expected nil coordinates, got %+v", got)
	}
}

// fakeRow はrowScannerのテスト用実装。
type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *sql.NullFloat64:
			*p = r.values[i].(sql.NullFloat64)
		}
	}
	return nil
}

func TestScanNote_MapsColumns(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	row := &fakeRow{values: []any{
		"note-1", "user-1", "123 Main St",
		sql.NullFloat64{Float64: -33.86, Valid: true}, sql.NullFloat64{Float64: 151.2, Valid: true},
		now.Add(time.Hour), "near the cafe", false, now, now,
	}}

	note, err := scanNote(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note.ID != "note-1" || note.UserID != "user-1" || note.Address != "123 Main St" {
		t.Errorf("unexpected identity fields: %+v", note)
	}
	if note.Coordinates == nil || note.Coordinates.Lat != -33.86 || note.Coordinates.Lng != 151.2 {
		t.Errorf("coordinates = %+v, want {-33.86 151.2}", note.Coordinates)
	}
	if !note.ExpiryTime.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiryTime = %v, want %v", note.ExpiryTime, now.Add(time.Hour))
	}
}

func TestScanNote_PropagatesNoRows(t *testing.T) {
	_, err := scanNote(&fakeRow{err: sql.ErrNoRows})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}
