package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// OpenMongo はMongoDBクライアントを生成し、疎通確認まで行う。
// 呼び出し側はプロセス終了時にDisconnectを呼び出すこと。
func OpenMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, nil
}

// MongoHealthChecker はMongoDBクライアントをヘルスチェック用のPingContextに適合させる。
type MongoHealthChecker struct {
	Client *mongo.Client
}

// PingContext はプライマリへの疎通を確認する。
func (m MongoHealthChecker) PingContext(ctx context.Context) error {
	return m.Client.Ping(ctx, readpref.Primary())
}
