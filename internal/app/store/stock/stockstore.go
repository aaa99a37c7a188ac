// internal/app/store/stock/stockstore.go
package stockstore

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
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateItem = errors.New("this farm already stocks an item with this name")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("stock_items")}
}

func (s *Store) Create(ctx context.Context, it models.StockItem) (models.StockItem, error) {
	it.ID = primitive.NewObjectID()
	it.ItemNameCI = text.Fold(it.ItemName)
	it.LastUpdatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, it); err != nil {
		if wafflemongo.IsDup(err) {
			return models.StockItem{}, ErrDuplicateItem
		}
		return models.StockItem{}, err
	}
	return it, nil
}

// FindStockItem matches the item name case- and accent-insensitively.
func (s *Store) FindStockItem(ctx context.Context, itemName string, farmID primitive.ObjectID) (models.StockItem, error) {
	var it models.StockItem
	err := s.c.FindOne(ctx, bson.M{"farm_id": farmID, "item_name_ci": text.Fold(itemName)}).Decode(&it)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.StockItem{}, storage.ErrNotFound
		}
		return models.StockItem{}, err
	}
	return it, nil
}

func (s *Store) TouchStockItem(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_updated_at": at.UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
