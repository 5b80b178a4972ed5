// Package auth はユーザー登録・ログイン・アクセストークン検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/parknote/internal/metrics"
	"github.com/hitoshi/parknote/internal/model"
	"github.com/hitoshi/parknote/internal/repository"
	"github.com/hitoshi/parknote/internal/validation"
)

// RegisterParams はユーザー登録の入力。
type RegisterParams struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72,bcryptlen,password"`
	Name     string `json:"name" validate:"required,max=100"`
}

// Result は登録・ログイン成功時に返すトークンと公開ユーザー情報。
type Result struct {
	Token string           `json:"token"`
	User  model.PublicUser `json:"user"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	hasher    *PasswordHasher
	tokens    *TokenIssuer
	validator *validation.Validator
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	hasher *PasswordHasher,
	tokens *TokenIssuer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		tokens:    tokens,
		validator: validation.New(),
		metrics:   collector,
		now:       time.Now,
	}
}

// Register はユーザーを作成し、アクセストークンを発行する。
// 入力が不正な場合はValidationError、メールアドレスが登録済みの場合はDuplicateEmailを返す。
// 重複判定は永続化層の一意制約に委ねるため、同時登録でも一方のみが成功する。
func (s *Service) Register(ctx context.Context, params RegisterParams) (*Result, error) {
	params.Email = normalizeEmail(params.Email)
	params.Name = strings.TrimSpace(params.Name)

	if err := s.validator.Struct(params); err != nil {
		s.metrics.RecordRegistration(metrics.RegistrationInvalid)
		return nil, model.NewValidationError(err.Error())
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        params.Email,
		PasswordHash: hash,
		Name:         params.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordRegistration(metrics.RegistrationDuplicate)
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRegistration(metrics.RegistrationCreated)
	slog.Info("user registered", slog.String("user_id", user.ID))

	return &Result{Token: token, User: user.Public()}, nil
}

// Login はメールアドレスとパスワードを照合し、アクセストークンを発行する。
// 未登録メールとパスワード不一致はどちらもInvalidCredentialsを返し、
// いずれの経路でもbcrypt照合を1回行う。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		s.hasher.CompareDummy(password)
		s.metrics.RecordLogin(false)
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.RecordLogin(false)
		slog.Warn("login failed", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(true)
	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &Result{Token: token, User: user.Public()}, nil
}

// VerifyToken はアクセストークンを検証し、ユーザーIDを返す。
// 検証に失敗した場合はUnauthenticatedを返す。
func (s *Service) VerifyToken(token string) (string, error) {
	if token == "" {
		return "", model.NewUnauthenticatedError()
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		slog.Debug("token rejected", slog.String("reason", err.Error()))
		return "", model.NewUnauthenticatedError()
	}
	return userID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
