// internal/domain/models/stockitem.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StockItem is a farm's stock line. The lifecycle engine never changes
// QuantityOnHand; it only bumps LastUpdatedAt when allocations move.
type StockItem struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	FarmID         primitive.ObjectID `bson:"farm_id" json:"farm_id"`
	ItemName       string             `bson:"item_name" json:"item_name"`
	ItemNameCI     string             `bson:"item_name_ci" json:"-"`
	QuantityOnHand int                `bson:"quantity_on_hand" json:"quantity_on_hand"`
	LastUpdatedAt  time.Time          `bson:"last_updated_at" json:"last_updated_at"`
}
