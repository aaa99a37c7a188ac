// internal/app/store/rooms/roomstore.go
package roomstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateRoomNumber = errors.New("a room with this number already exists in the farm")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("rooms")}
}

// Create inserts an empty room at version 0.
func (s *Store) Create(ctx context.Context, r models.Room) (models.Room, error) {
	r.ID = primitive.NewObjectID()
	r.OccupantIDs = []primitive.ObjectID{}
	r.CurrentOccupancy = 0
	r.Version = 0
	r.UpdatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Room{}, ErrDuplicateRoomNumber
		}
		return models.Room{}, err
	}
	return r, nil
}

func (s *Store) GetRoom(ctx context.Context, id primitive.ObjectID) (models.Room, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) FindRoom(ctx context.Context, farmID primitive.ObjectID, number string) (models.Room, error) {
	return s.findOne(ctx, bson.M{"farm_id": farmID, "number": number})
}

func (s *Store) ListRoomsByFarm(ctx context.Context, farmID primitive.ObjectID) ([]models.Room, error) {
	cur, err := s.c.Find(ctx, bson.M{"farm_id": farmID}, options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Room
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRoom is a compare-and-set on version: the write only lands when the
// stored version still equals r.Version, and it bumps the version by one.
func (s *Store) UpdateRoom(ctx context.Context, r models.Room) error {
	occupants := r.OccupantIDs
	if occupants == nil {
		occupants = []primitive.ObjectID{}
	}
	updatedAt := r.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": r.ID, "version": r.Version},
		bson.M{
			"$set": bson.M{
				"occupant_ids":      occupants,
				"current_occupancy": r.CurrentOccupancy,
				"gender_category":   r.GenderCategory,
				"total_capacity":    r.TotalCapacity,
				"updated_at":        updatedAt,
			},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": r.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return storage.ErrVersionConflict
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Room, error) {
	var r models.Room
	if err := s.c.FindOne(ctx, filter).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Room{}, storage.ErrNotFound
		}
		return models.Room{}, err
	}
	return r, nil
}
