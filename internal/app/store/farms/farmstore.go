// internal/app/store/farms/farmstore.go
package farmstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateFarmName = errors.New("a farm with this name already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("farms")}
}

func (s *Store) Create(ctx context.Context, f models.Farm) (models.Farm, error) {
	now := time.Now().UTC()
	f.ID = primitive.NewObjectID()
	f.NameCI = text.Fold(f.Name)
	if f.Status == "" {
		f.Status = "active"
	}
	if f.AdminIDs == nil {
		f.AdminIDs = []primitive.ObjectID{}
	}
	f.ActiveWorkerCount = 0
	f.CreatedAt = now
	f.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, f); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Farm{}, ErrDuplicateFarmName
		}
		return models.Farm{}, err
	}
	return f, nil
}

func (s *Store) GetFarm(ctx context.Context, id primitive.ObjectID) (models.Farm, error) {
	var f models.Farm
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Farm{}, storage.ErrNotFound
		}
		return models.Farm{}, err
	}
	return f, nil
}

func (s *Store) ListFarms(ctx context.Context) ([]models.Farm, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Farm
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetActiveWorkerCount stores the recomputed count. It never increments, so
// replaying a recount is harmless.
func (s *Store) SetActiveWorkerCount(ctx context.Context, id primitive.ObjectID, n int) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"active_worker_count": n,
		"updated_at":          time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
