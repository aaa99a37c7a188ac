package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/conflict"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures inserts test records straight into a database.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateFarm creates an active farm with the given admins.
func (f *Fixtures) CreateFarm(ctx context.Context, name string, admins ...primitive.ObjectID) models.Farm {
	f.t.Helper()

	now := time.Now().UTC()
	farm := models.Farm{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		AdminIDs:  admins,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if farm.AdminIDs == nil {
		farm.AdminIDs = []primitive.ObjectID{}
	}

	if _, err := f.db.Collection("farms").InsertOne(ctx, farm); err != nil {
		f.t.Fatalf("failed to create test farm: %v", err)
	}
	return farm
}

// CreateRoom creates an empty room.
func (f *Fixtures) CreateRoom(ctx context.Context, farmID primitive.ObjectID, number, category string, capacity int) models.Room {
	f.t.Helper()

	room := models.Room{
		ID:             primitive.NewObjectID(),
		FarmID:         farmID,
		Number:         number,
		GenderCategory: category,
		TotalCapacity:  capacity,
		OccupantIDs:    []primitive.ObjectID{},
		UpdatedAt:      time.Now().UTC(),
	}

	if _, err := f.db.Collection("rooms").InsertOne(ctx, room); err != nil {
		f.t.Fatalf("failed to create test room: %v", err)
	}
	return room
}

// CreateWorker creates an active worker who entered on entry.
func (f *Fixtures) CreateWorker(ctx context.Context, farmID primitive.ObjectID, nationalID, fullName, gender string, entry time.Time) models.Worker {
	f.t.Helper()

	now := time.Now().UTC()
	folded, tokens := conflict.NameKey(fullName)
	w := models.Worker{
		ID:          primitive.NewObjectID(),
		NationalID:  nationalID,
		FullName:    fullName,
		FullNameCI:  folded,
		NameTokens:  tokens,
		Gender:      gender,
		FarmID:      farmID,
		Status:      models.StatusActive,
		EntryDate:   models.DayOf(entry),
		WorkHistory: []models.WorkPeriod{{FarmID: farmID, EntryDate: models.DayOf(entry)}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := f.db.Collection("workers").InsertOne(ctx, w); err != nil {
		f.t.Fatalf("failed to create test worker: %v", err)
	}
	return w
}

// CreateStockItem creates a stock line.
func (f *Fixtures) CreateStockItem(ctx context.Context, farmID primitive.ObjectID, name string, qty int) models.StockItem {
	f.t.Helper()

	item := models.StockItem{
		ID:             primitive.NewObjectID(),
		FarmID:         farmID,
		ItemName:       name,
		ItemNameCI:     text.Fold(name),
		QuantityOnHand: qty,
		LastUpdatedAt:  time.Now().UTC(),
	}

	if _, err := f.db.Collection("stock_items").InsertOne(ctx, item); err != nil {
		f.t.Fatalf("failed to create test stock item: %v", err)
	}
	return item
}
