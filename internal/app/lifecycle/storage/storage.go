// Package storage defines the persistence contract the lifecycle engine
// depends on. Implementations live under internal/app/store.
//
// Every query is bounded by a key (id, national id, farm, name token) so the
// engine never needs the whole dataset in memory.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by UpdateRoom when the stored version no
	// longer matches the version the caller read.
	ErrVersionConflict = errors.New("room was modified concurrently")
)

// Workers is the worker collection.
type Workers interface {
	GetWorker(ctx context.Context, id primitive.ObjectID) (models.Worker, error)
	FindWorkersByNationalID(ctx context.Context, nationalID string) ([]models.Worker, error)
	// FindWorkersByNameTokens returns workers sharing at least one folded name token.
	FindWorkersByNameTokens(ctx context.Context, tokens []string, limit int) ([]models.Worker, error)
	// ListWorkersByFarm returns the farm's workers; an empty status returns all.
	ListWorkersByFarm(ctx context.Context, farmID primitive.ObjectID, status string) ([]models.Worker, error)
	CountActiveWorkers(ctx context.Context, farmID primitive.ObjectID) (int, error)
	CreateWorker(ctx context.Context, w models.Worker) error
	UpdateWorker(ctx context.Context, w models.Worker) error
	DeleteWorker(ctx context.Context, id primitive.ObjectID) error
}

// Rooms is the room collection.
type Rooms interface {
	GetRoom(ctx context.Context, id primitive.ObjectID) (models.Room, error)
	FindRoom(ctx context.Context, farmID primitive.ObjectID, number string) (models.Room, error)
	ListRoomsByFarm(ctx context.Context, farmID primitive.ObjectID) ([]models.Room, error)
	// UpdateRoom writes r if the stored version equals r.Version and stores
	// r.Version+1. It returns ErrVersionConflict otherwise.
	UpdateRoom(ctx context.Context, r models.Room) error
}

// Farms is the farm collection.
type Farms interface {
	GetFarm(ctx context.Context, id primitive.ObjectID) (models.Farm, error)
	ListFarms(ctx context.Context) ([]models.Farm, error)
	SetActiveWorkerCount(ctx context.Context, id primitive.ObjectID, n int) error
}

// Stock is the stock collaborator.
type Stock interface {
	FindStockItem(ctx context.Context, itemName string, farmID primitive.ObjectID) (models.StockItem, error)
	TouchStockItem(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// Tx is the view of storage available inside an atomic unit of work.
type Tx interface {
	Workers
	Rooms
	Farms
	Stock
}

// Repository is a Tx that can also open atomic units of work. Writes made
// through the tx passed to fn either all land or none do.
type Repository interface {
	Tx
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
