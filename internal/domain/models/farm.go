// internal/domain/models/farm.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Farm ("ferme") is the tenant that owns workers, rooms and stock.
type Farm struct {
	ID                primitive.ObjectID   `bson:"_id" json:"id"`
	Name              string               `bson:"name" json:"name"`
	NameCI            string               `bson:"name_ci" json:"-"`
	AdminIDs          []primitive.ObjectID `bson:"admin_ids" json:"admin_ids"` // recipients of farm notifications
	ActiveWorkerCount int                  `bson:"active_worker_count" json:"active_worker_count"`
	Status            string               `bson:"status" json:"status"`
	CreatedAt         time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time            `bson:"updated_at" json:"updated_at"`
}
