// Package unitofwork assembles the MongoDB stores into the repository the
// lifecycle engine runs against. Atomic units of work run in a MongoDB
// transaction; every store call inside one receives the session context.
package unitofwork

import (
	"context"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	farmstore "github.com/dalemusser/fermehub/internal/app/store/farms"
	roomstore "github.com/dalemusser/fermehub/internal/app/store/rooms"
	stockstore "github.com/dalemusser/fermehub/internal/app/store/stock"
	workerstore "github.com/dalemusser/fermehub/internal/app/store/workers"
	"github.com/dalemusser/fermehub/internal/app/system/txn"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var _ storage.Repository = (*Repository)(nil)

// Repository implements storage.Repository over MongoDB.
type Repository struct {
	db  *mongo.Database
	log *zap.Logger

	Workers *workerstore.Store
	Rooms   *roomstore.Store
	Farms   *farmstore.Store
	Stock   *stockstore.Store
}

// New builds a Repository on db.
func New(db *mongo.Database, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		db:      db,
		log:     logger,
		Workers: workerstore.New(db),
		Rooms:   roomstore.New(db),
		Farms:   farmstore.New(db),
		Stock:   stockstore.New(db),
	}
}

// RunInTx runs fn in a transaction. The stores are stateless, so the
// repository itself is the transactional view; the session travels in ctx.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return txn.Run(ctx, r.db, r.log, func(ctx context.Context) error {
		return fn(ctx, r)
	})
}

/* ------------------------------ workers ------------------------------ */

func (r *Repository) GetWorker(ctx context.Context, id primitive.ObjectID) (models.Worker, error) {
	return r.Workers.GetWorker(ctx, id)
}

func (r *Repository) FindWorkersByNationalID(ctx context.Context, nationalID string) ([]models.Worker, error) {
	return r.Workers.FindWorkersByNationalID(ctx, nationalID)
}

func (r *Repository) FindWorkersByNameTokens(ctx context.Context, tokens []string, limit int) ([]models.Worker, error) {
	return r.Workers.FindWorkersByNameTokens(ctx, tokens, limit)
}

func (r *Repository) ListWorkersByFarm(ctx context.Context, farmID primitive.ObjectID, status string) ([]models.Worker, error) {
	return r.Workers.ListWorkersByFarm(ctx, farmID, status)
}

func (r *Repository) CountActiveWorkers(ctx context.Context, farmID primitive.ObjectID) (int, error) {
	return r.Workers.CountActiveWorkers(ctx, farmID)
}

func (r *Repository) CreateWorker(ctx context.Context, w models.Worker) error {
	return r.Workers.CreateWorker(ctx, w)
}

func (r *Repository) UpdateWorker(ctx context.Context, w models.Worker) error {
	return r.Workers.UpdateWorker(ctx, w)
}

func (r *Repository) DeleteWorker(ctx context.Context, id primitive.ObjectID) error {
	return r.Workers.DeleteWorker(ctx, id)
}

/* ------------------------------- rooms ------------------------------- */

func (r *Repository) GetRoom(ctx context.Context, id primitive.ObjectID) (models.Room, error) {
	return r.Rooms.GetRoom(ctx, id)
}

func (r *Repository) FindRoom(ctx context.Context, farmID primitive.ObjectID, number string) (models.Room, error) {
	return r.Rooms.FindRoom(ctx, farmID, number)
}

func (r *Repository) ListRoomsByFarm(ctx context.Context, farmID primitive.ObjectID) ([]models.Room, error) {
	return r.Rooms.ListRoomsByFarm(ctx, farmID)
}

func (r *Repository) UpdateRoom(ctx context.Context, room models.Room) error {
	return r.Rooms.UpdateRoom(ctx, room)
}

/* --------------------------- farms & stock --------------------------- */

func (r *Repository) GetFarm(ctx context.Context, id primitive.ObjectID) (models.Farm, error) {
	return r.Farms.GetFarm(ctx, id)
}

func (r *Repository) ListFarms(ctx context.Context) ([]models.Farm, error) {
	return r.Farms.ListFarms(ctx)
}

func (r *Repository) SetActiveWorkerCount(ctx context.Context, id primitive.ObjectID, n int) error {
	return r.Farms.SetActiveWorkerCount(ctx, id, n)
}

func (r *Repository) FindStockItem(ctx context.Context, itemName string, farmID primitive.ObjectID) (models.StockItem, error) {
	return r.Stock.FindStockItem(ctx, itemName, farmID)
}

func (r *Repository) TouchStockItem(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.Stock.TouchStockItem(ctx, id, at)
}
