package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/parknote/internal/auth"
	"github.com/hitoshi/parknote/internal/model"
	"github.com/hitoshi/parknote/internal/parking"
)

// デモユーザーの認証情報。
const (
	demoEmail    = "demo@example.com"
	demoPassword = "Passw0rd1"
	demoName     = "Demo User"
)

type seedAuthService interface {
	Register(ctx context.Context, params auth.RegisterParams) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
}

type seedParkingService interface {
	CreateNote(ctx context.Context, ownerID string, input parking.NoteInput) (*model.ParkingNote, error)
}

// seedDemoData はデモユーザーとデモ用の駐車メモ2件を作成する。
// ユーザーが登録済みの場合は既存ユーザーでログインし、メモのみ追加する。
func seedDemoData(ctx context.Context, authSvc seedAuthService, parkingSvc seedParkingService, now time.Time) ([]*model.ParkingNote, error) {
	result, err := authSvc.Register(ctx, auth.RegisterParams{
		Email:    demoEmail,
		Password: demoPassword,
		Name:     demoName,
	})

	var apiErr *model.APIError
	switch {
	case err == nil:
		slog.Info("demo user created", slog.String("email", demoEmail))
	case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeDuplicateEmail:
		slog.Info("demo user already exists", slog.String("email", demoEmail))
		result, err = authSvc.Login(ctx, demoEmail, demoPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to log in as demo user: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to create demo user: %w", err)
	}

	inputs := []parking.NoteInput{
		{
			Address:     "123 Collins St, Melbourne VIC 3000, Australia",
			Coordinates: parking.NewCoordinatesInput(-37.8136, 144.9631),
			ExpiryTime:  now.Add(2 * time.Hour),
			Notes:       "Level 2, bay 14. Near the lift.",
		},
		{
			Address:    "Flinders Street Station car park",
			ExpiryTime: now.Add(5 * time.Minute),
			Notes:      "Ticket on the dashboard.",
		},
	}

	notes := make([]*model.ParkingNote, 0, len(inputs))
	for _, input := range inputs {
		note, err := parkingSvc.CreateNote(ctx, result.User.ID, input)
		if err != nil {
			return nil, fmt.Errorf("failed to create demo note: %w", err)
		}
		notes = append(notes, note)
	}

	slog.Info("demo data seeded",
		slog.String("user_id", result.User.ID),
		slog.Int("notes", len(notes)),
	)
	return notes, nil
}
