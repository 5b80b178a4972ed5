// Package parking は駐車メモのドメインロジックを提供する。
// すべての操作は認証済みの所有者IDで絞り込まれ、他ユーザーのメモは存在しないものとして扱う。
package parking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/parknote/internal/metrics"
	"github.com/hitoshi/parknote/internal/model"
	"github.com/hitoshi/parknote/internal/repository"
	"github.com/hitoshi/parknote/internal/validation"
)

// CoordinatesInput は入力された緯度経度。
// 片方だけの指定は検証エラーとするため、未指定を0と区別できるポインタで受け取る。
type CoordinatesInput struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

// NewCoordinatesInput は緯度経度の両方を指定したCoordinatesInputを生成する。
func NewCoordinatesInput(lat, lng float64) *CoordinatesInput {
	return &CoordinatesInput{Lat: &lat, Lng: &lng}
}

// NoteInput は駐車メモの作成・更新の入力。
// Coordinatesを省略した更新は座標を削除する。
type NoteInput struct {
	Address     string            `json:"address" validate:"required,max=500"`
	Coordinates *CoordinatesInput `json:"coordinates"`
	ExpiryTime  time.Time         `json:"expiryTime" validate:"required"`
	Notes       string            `json:"notes" validate:"max=2000"`
}

// Sanitizer は自由入力テキストからマークアップを除去する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service は駐車メモのサービス層。
type Service struct {
	repo      repository.ParkingNoteRepository
	sanitizer Sanitizer
	validator *validation.Validator
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ParkingNoteRepository,
	sanitizer Sanitizer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		validator: validation.New(),
		metrics:   collector,
		now:       time.Now,
	}
}

// ListNotes は所有者の駐車メモを作成日時の新しい順に返す。該当なしは空スライス。
func (s *Service) ListNotes(ctx context.Context, ownerID string) ([]*model.ParkingNote, error) {
	notes, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("駐車メモ一覧の取得に失敗しました: %w", err)
	}
	if notes == nil {
		notes = []*model.ParkingNote{}
	}
	return notes, nil
}

// GetNote は所有者の駐車メモを1件返す。
// 存在しない、他ユーザーの所有、IDの形式が不正のいずれの場合もNotFoundを返す。
func (s *Service) GetNote(ctx context.Context, ownerID, noteID string) (*model.ParkingNote, error) {
	id, ok := canonicalID(noteID)
	if !ok {
		return nil, model.NewNoteNotFoundError()
	}

	note, err := s.repo.FindByOwnerAndID(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("駐車メモの取得に失敗しました: %w", err)
	}
	if note == nil {
		return nil, model.NewNoteNotFoundError()
	}
	return note, nil
}

// CreateNote は駐車メモを作成する。IDと作成・更新日時はサーバーが付与する。
func (s *Service) CreateNote(ctx context.Context, ownerID string, input NoteInput) (*model.ParkingNote, error) {
	input = s.clean(input)
	if err := s.validator.Struct(input); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	now := normalizeTime(s.now())
	note := &model.ParkingNote{
		ID:          uuid.New().String(),
		UserID:      ownerID,
		Address:     input.Address,
		Coordinates: toCoordinates(input.Coordinates),
		ExpiryTime:  normalizeTime(input.ExpiryTime),
		Notes:       input.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("駐車メモの作成に失敗しました: %w", err)
	}

	s.metrics.RecordNoteOperation("create")
	slog.Info("parking note created",
		slog.String("user_id", ownerID),
		slog.String("note_id", note.ID),
	)
	return note, nil
}

// UpdateNote は駐車メモの住所・座標・失効時刻・メモを置き換える。
// 保存済みの内容と同一の場合は更新日時を変えずに保存済みのメモを返す。
func (s *Service) UpdateNote(ctx context.Context, ownerID, noteID string, input NoteInput) (*model.ParkingNote, error) {
	current, err := s.GetNote(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}

	input = s.clean(input)
	if err := s.validator.Struct(input); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	updated := *current
	updated.Address = input.Address
	updated.Coordinates = toCoordinates(input.Coordinates)
	updated.ExpiryTime = normalizeTime(input.ExpiryTime)
	updated.Notes = input.Notes

	if current.SameContent(&updated) {
		return current, nil
	}

	updated.UpdatedAt = normalizeTime(s.now())

	found, err := s.repo.Update(ctx, &updated)
	if err != nil {
		return nil, fmt.Errorf("駐車メモの更新に失敗しました: %w", err)
	}
	if !found {
		// 取得後に削除された
		return nil, model.NewNoteNotFoundError()
	}

	s.metrics.RecordNoteOperation("update")
	slog.Info("parking note updated",
		slog.String("user_id", ownerID),
		slog.String("note_id", updated.ID),
	)
	return &updated, nil
}

// DeleteNote は駐車メモを削除する。
func (s *Service) DeleteNote(ctx context.Context, ownerID, noteID string) error {
	id, ok := canonicalID(noteID)
	if !ok {
		return model.NewNoteNotFoundError()
	}

	deleted, err := s.repo.DeleteByOwnerAndID(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("駐車メモの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewNoteNotFoundError()
	}

	s.metrics.RecordNoteOperation("delete")
	slog.Info("parking note deleted",
		slog.String("user_id", ownerID),
		slog.String("note_id", id),
	)
	return nil
}

// clean は自由入力テキストのマークアップを除去する。検証より前に行う。
func (s *Service) clean(input NoteInput) NoteInput {
	input.Address = s.sanitizer.Sanitize(input.Address)
	input.Notes = s.sanitizer.Sanitize(input.Notes)
	return input
}

// canonicalID はメモIDをUUIDの正規形式に変換する。形式が不正な場合はfalseを返す。
func canonicalID(raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// normalizeTime は永続化層の精度（ミリ秒）とUTCに揃える。
// PostgreSQLとMongoDBのどちらでも保存前後で値が一致するようにする。
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// toCoordinates は検証済みの入力を座標に変換する。
func toCoordinates(in *CoordinatesInput) *model.Coordinates {
	if in == nil || in.Lat == nil || in.Lng == nil {
		return nil
	}
	return &model.Coordinates{Lat: *in.Lat, Lng: *in.Lng}
}
