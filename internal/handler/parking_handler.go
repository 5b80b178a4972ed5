package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/parknote/internal/expiry"
	"github.com/hitoshi/parknote/internal/model"
	"github.com/hitoshi/parknote/internal/parking"
)

// ParkingServiceInterface は駐車メモハンドラーが必要とするサービスインターフェース。
type ParkingServiceInterface interface {
	ListNotes(ctx context.Context, ownerID string) ([]*model.ParkingNote, error)
	GetNote(ctx context.Context, ownerID, noteID string) (*model.ParkingNote, error)
	CreateNote(ctx context.Context, ownerID string, input parking.NoteInput) (*model.ParkingNote, error)
	UpdateNote(ctx context.Context, ownerID, noteID string, input parking.NoteInput) (*model.ParkingNote, error)
	DeleteNote(ctx context.Context, ownerID, noteID string) error
}

// ParkingHandler は駐車メモのHTTPハンドラー。
type ParkingHandler struct {
	service ParkingServiceInterface
	policy  expiry.Policy
	now     func() time.Time
}

// NewParkingHandler はParkingHandlerを生成する。
func NewParkingHandler(service ParkingServiceInterface, policy expiry.Policy) *ParkingHandler {
	return &ParkingHandler{
		service: service,
		policy:  policy,
		now:     time.Now,
	}
}

// noteResponse は駐車メモのAPIレスポンス。
// expiryStatusとtimeRemainingはレスポンス生成時点の時刻から算出する。
type noteResponse struct {
	ID            string             `json:"id"`
	UserID        string             `json:"userId"`
	Address       string             `json:"address"`
	Coordinates   *model.Coordinates `json:"coordinates,omitempty"`
	ExpiryTime    time.Time          `json:"expiryTime"`
	Notes         string             `json:"notes"`
	ReminderSent  bool               `json:"reminderSent"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	ExpiryStatus  expiry.Status      `json:"expiryStatus"`
	TimeRemaining string             `json:"timeRemaining"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *ParkingHandler) toResponse(note *model.ParkingNote, now time.Time) noteResponse {
	return noteResponse{
		ID:            note.ID,
		UserID:        note.UserID,
		Address:       note.Address,
		Coordinates:   note.Coordinates,
		ExpiryTime:    note.ExpiryTime,
		Notes:         note.Notes,
		ReminderSent:  note.ReminderSent,
		CreatedAt:     note.CreatedAt,
		UpdatedAt:     note.UpdatedAt,
		ExpiryStatus:  h.policy.Classify(note.ExpiryTime, now),
		TimeRemaining: expiry.FormatRemaining(note.ExpiryTime, now),
	}
}

// ListNotes は認証ユーザーの駐車メモ一覧を返す。
// GET /api/parking
func (h *ParkingHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	notes, err := h.service.ListNotes(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	now := h.now()
	resp := make([]noteResponse, len(notes))
	for i, n := range notes {
		resp[i] = h.toResponse(n, now)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetNote は駐車メモを1件返す。
// GET /api/parking/{id}
func (h *ParkingHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	note, err := h.service.GetNote(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(note, h.now()))
}

// CreateNote は駐車メモを作成する。
// POST /api/parking
func (h *ParkingHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var input parking.NoteInput
	if !decodeJSONBody(w, r, &input) {
		return
	}

	note, err := h.service.CreateNote(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(note, h.now()))
}

// UpdateNote は駐車メモを更新する。
// PUT /api/parking/{id}
func (h *ParkingHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var input parking.NoteInput
	if !decodeJSONBody(w, r, &input) {
		return
	}

	note, err := h.service.UpdateNote(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(note, h.now()))
}

// DeleteNote は駐車メモを削除する。
// DELETE /api/parking/{id}
func (h *ParkingHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteNote(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Parking note deleted"})
}
