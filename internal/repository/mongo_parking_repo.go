package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hitoshi/parknote/internal/model"
)

const parkingNoteCollection = "parking_notes"

// noteDocument はparking_notesコレクションのドキュメント表現。
type noteDocument struct {
	ID           string               `bson:"_id"`
	UserID       string               `bson:"user_id"`
	Address      string               `bson:"address"`
	Coordinates  *coordinatesDocument `bson:"coordinates,omitempty"`
	ExpiryTime   time.Time            `bson:"expiry_time"`
	Notes        string               `bson:"notes"`
	ReminderSent bool                 `bson:"reminder_sent"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

type coordinatesDocument struct {
	Lat float64 `bson:"lat"`
	Lng float64 `bson:"lng"`
}

// MongoParkingNoteRepo はMongoDBを使用した駐車メモリポジトリ。
type MongoParkingNoteRepo struct {
	coll *mongo.Collection
}

// NewMongoParkingNoteRepo はMongoParkingNoteRepoを生成する。
func NewMongoParkingNoteRepo(db *mongo.Database) *MongoParkingNoteRepo {
	return &MongoParkingNoteRepo{coll: db.Collection(parkingNoteCollection)}
}

// EnsureIndexes は一覧取得とクリーンアップ用のインデックスを作成する。
func (r *MongoParkingNoteRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "expiry_time", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create parking note indexes: %w", err)
	}
	return nil
}

// ListByOwner は所有者の駐車メモを作成日時の降順で返す。
func (r *MongoParkingNoteRepo) ListByOwner(ctx context.Context, userID string) ([]*model.ParkingNote, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list parking notes: %w", err)
	}
	defer cursor.Close(ctx)

	notes := make([]*model.ParkingNote, 0)
	for cursor.Next(ctx) {
		var doc noteDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode parking note: %w", err)
		}
		notes = append(notes, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parking notes: %w", err)
	}

	return notes, nil
}

// FindByOwnerAndID は所有者IDとメモIDでメモを取得する。見つからない場合はnilを返す。
func (r *MongoParkingNoteRepo) FindByOwnerAndID(ctx context.Context, userID, id string) (*model.ParkingNote, error) {
	var doc noteDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find parking note: %w", err)
	}
	return doc.toModel(), nil
}

// Create は駐車メモを作成する。
func (r *MongoParkingNoteRepo) Create(ctx context.Context, note *model.ParkingNote) error {
	if _, err := r.coll.InsertOne(ctx, newNoteDocument(note)); err != nil {
		return fmt.Errorf("failed to insert parking note: %w", err)
	}
	return nil
}

// Update は駐車メモの更新可能フィールドを置き換える。
// 座標がnilの場合はフィールドごと削除する。
func (r *MongoParkingNoteRepo) Update(ctx context.Context, note *model.ParkingNote) (bool, error) {
	set := bson.M{
		"address":     note.Address,
		"expiry_time": note.ExpiryTime,
		"notes":       note.Notes,
		"updated_at":  note.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if note.Coordinates != nil {
		set["coordinates"] = coordinatesDocument{Lat: note.Coordinates.Lat, Lng: note.Coordinates.Lng}
	} else {
		update["$unset"] = bson.M{"coordinates": ""}
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": note.ID, "user_id": note.UserID}, update)
	if err != nil {
		return false, fmt.Errorf("failed to update parking note: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// DeleteByOwnerAndID は駐車メモを削除する。対象が存在しない場合はfalseを返す。
func (r *MongoParkingNoteRepo) DeleteByOwnerAndID(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return false, fmt.Errorf("failed to delete parking note: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// DeleteExpiredBefore はexpiry_timeがcutoffより前のメモを削除する。
func (r *MongoParkingNoteRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.M{"expiry_time": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired parking notes: %w", err)
	}
	return result.DeletedCount, nil
}

func newNoteDocument(note *model.ParkingNote) noteDocument {
	doc := noteDocument{
		ID:           note.ID,
		UserID:       note.UserID,
		Address:      note.Address,
		ExpiryTime:   note.ExpiryTime,
		Notes:        note.Notes,
		ReminderSent: note.ReminderSent,
		CreatedAt:    note.CreatedAt,
		UpdatedAt:    note.UpdatedAt,
	}
	if note.Coordinates != nil {
		doc.Coordinates = &coordinatesDocument{Lat: note.Coordinates.Lat, Lng: note.Coordinates.Lng}
	}
	return doc
}

func (d noteDocument) toModel() *model.ParkingNote {
	note := &model.ParkingNote{
		ID:           d.ID,
		UserID:       d.UserID,
		Address:      d.Address,
		ExpiryTime:   d.ExpiryTime,
		Notes:        d.Notes,
		ReminderSent: d.ReminderSent,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.Coordinates != nil {
		note.Coordinates = &model.Coordinates{Lat: d.Coordinates.Lat, Lng: d.Coordinates.Lng}
	}
	return note
}

// compile-time interface check
var _ ParkingNoteRepository = (*MongoParkingNoteRepo)(nil)
