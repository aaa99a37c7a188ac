// internal/app/store/workers/workerstore.go
package workerstore

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/app/system/paging"
	"github.com/dalemusser/fermehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateID is returned when a worker id is reused.
var ErrDuplicateID = errors.New("a worker with this id already exists")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("workers")}
}

func (s *Store) GetWorker(ctx context.Context, id primitive.ObjectID) (models.Worker, error) {
	var w models.Worker
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&w); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Worker{}, storage.ErrNotFound
		}
		return models.Worker{}, err
	}
	return w, nil
}

// FindWorkersByNationalID returns every record carrying the national id,
// whatever its farm or status.
func (s *Store) FindWorkersByNationalID(ctx context.Context, nationalID string) ([]models.Worker, error) {
	return s.find(ctx, bson.M{"national_id": nationalID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (s *Store) FindWorkersByNameTokens(ctx context.Context, tokens []string, limit int) ([]models.Worker, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, bson.M{"name_tokens": bson.M{"$in": tokens}}, opts)
}

func (s *Store) ListWorkersByFarm(ctx context.Context, farmID primitive.ObjectID, status string) ([]models.Worker, error) {
	filter := bson.M{"farm_id": farmID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}})
	return s.find(ctx, filter, opts)
}

// Page is one keyset page of a farm's workers ordered by folded name.
type Page struct {
	Workers    []models.Worker `json:"workers"`
	HasPrev    bool            `json:"has_prev"`
	HasNext    bool            `json:"has_next"`
	PrevCursor string          `json:"prev_cursor,omitempty"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// ListPage returns the page after (or before) a cursor from a previous page.
func (s *Store) ListPage(ctx context.Context, farmID primitive.ObjectID, status, before, after string, size int) (Page, error) {
	const sortField = "full_name_ci"

	filter := bson.M{"farm_id": farmID}
	if status != "" {
		filter["status"] = status
	}
	cfg := paging.ConfigureKeyset(before, after, size)
	if ks := cfg.KeysetWindow(sortField); ks != nil {
		maps.Copy(filter, ks)
	}
	find := options.Find()
	cfg.ApplyToFind(find, sortField)

	rows, err := s.find(ctx, filter, find)
	if err != nil {
		return Page{}, err
	}
	if cfg.Direction == paging.Backward {
		paging.Reverse(rows)
	}
	res := paging.TrimPage(&rows, before, after, cfg.Size)
	prev, next := paging.BuildCursors(rows,
		func(w models.Worker) string { return w.FullNameCI },
		func(w models.Worker) primitive.ObjectID { return w.ID },
	)
	return Page{Workers: rows, HasPrev: res.HasPrev, HasNext: res.HasNext, PrevCursor: prev, NextCursor: next}, nil
}

func (s *Store) CountActiveWorkers(ctx context.Context, farmID primitive.ObjectID) (int, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"farm_id": farmID, "status": models.StatusActive})
	return int(n), err
}

func (s *Store) CreateWorker(ctx context.Context, w models.Worker) error {
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	if _, err := s.c.InsertOne(ctx, w); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

// UpdateWorker replaces the stored worker with w.
func (s *Store) UpdateWorker(ctx context.Context, w models.Worker) error {
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = time.Now().UTC()
	}
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": w.ID}, w)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteWorker(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Worker, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Worker
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
