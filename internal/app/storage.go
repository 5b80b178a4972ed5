package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/parknote/internal/config"
	"github.com/hitoshi/parknote/internal/database"
	"github.com/hitoshi/parknote/internal/handler"
	"github.com/hitoshi/parknote/internal/repository"
)

// storage は選択されたバックエンドのリポジトリと接続のライフサイクルをまとめる。
type storage struct {
	users  repository.UserRepository
	notes  repository.ParkingNoteRepository
	health handler.HealthChecker
	close  func()
}

// openStorage はSTORAGE_BACKENDに応じてPostgreSQLまたはMongoDBに接続し、リポジトリを構築する。
// 呼び出し側は使用後にcloseを呼び出すこと。
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageBackend {
	case config.BackendMongo:
		return openMongoStorage(ctx, cfg)
	default:
		return openPostgresStorage(ctx, cfg)
	}
}

func openPostgresStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established", slog.String("backend", config.BackendPostgres))

	return &storage{
		users:  repository.NewPostgresUserRepo(db),
		notes:  repository.NewPostgresParkingNoteRepo(db),
		health: db,
		close:  func() { db.Close() },
	}, nil
}

func openMongoStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	client, err := database.OpenMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}

	closeClient := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			slog.Error("failed to disconnect mongodb", slog.String("error", err.Error()))
		}
	}

	db := client.Database(cfg.MongoDatabase)
	users := repository.NewMongoUserRepo(db)
	notes := repository.NewMongoParkingNoteRepo(db)

	// 一意制約と一覧用インデックスはDDLの代わりに起動時に冪等に作成する
	if err := users.EnsureIndexes(ctx); err != nil {
		closeClient()
		return nil, fmt.Errorf("failed to ensure user indexes: %w", err)
	}
	if err := notes.EnsureIndexes(ctx); err != nil {
		closeClient()
		return nil, fmt.Errorf("failed to ensure parking note indexes: %w", err)
	}

	slog.Info("database connection established",
		slog.String("backend", config.BackendMongo),
		slog.String("database", cfg.MongoDatabase),
	)

	return &storage{
		users:  users,
		notes:  notes,
		health: database.MongoHealthChecker{Client: client},
		close:  closeClient,
	}, nil
}
