package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"squizy/internal/model"
)

// GameRepo handles MongoDB operations for finished games
type GameRepo interface {
	Save(ctx context.Context, record *model.GameRecord) error
	GetByRoomCode(ctx context.Context, roomCode string) (*model.GameRecord, error)
	Recent(ctx context.Context, limit int) ([]*model.GameRecord, error)
}

type gameRepo struct {
	collection *mongo.Collection
}

// NewGameRepo creates a new game archive repository
func NewGameRepo(db *mongo.Database) GameRepo {
	return &gameRepo{
		collection: db.Collection("games"),
	}
}

// Save stores the record, replacing an earlier game played under the same room code
func (r *gameRepo) Save(ctx context.Context, record *model.GameRecord) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"roomCode": record.RoomCode}, record, opts)
	return err
}

func (r *gameRepo) GetByRoomCode(ctx context.Context, roomCode string) (*model.GameRecord, error) {
	var record model.GameRecord
	err := r.collection.FindOne(ctx, bson.M{"roomCode": roomCode}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *gameRepo) Recent(ctx context.Context, limit int) ([]*model.GameRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "finishedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []*model.GameRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
