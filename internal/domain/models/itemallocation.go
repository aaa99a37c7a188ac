// internal/domain/models/itemallocation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Allocation status values. An allocation only ever moves allocated → returned.
const (
	AllocationAllocated = "allocated"
	AllocationReturned  = "returned"
)

// ItemAllocation is a stock item (mattress, cupboard, ...) handed to a worker.
type ItemAllocation struct {
	ItemName    string             `bson:"item_name" json:"item_name"`
	AllocatedAt time.Time          `bson:"allocated_at" json:"allocated_at"`
	Status      string             `bson:"status" json:"status"`
	ReturnedAt  *time.Time         `bson:"returned_at,omitempty" json:"returned_at,omitempty"`
	StockItemID primitive.ObjectID `bson:"stock_item_id" json:"stock_item_id"`
	FarmID      primitive.ObjectID `bson:"farm_id" json:"farm_id"`
}

// Return marks the allocation returned at t. Already returned allocations are
// left untouched; the return reports whether anything changed.
func (a *ItemAllocation) Return(t time.Time) bool {
	if a.Status == AllocationReturned {
		return false
	}
	a.Status = AllocationReturned
	a.ReturnedAt = &t
	return true
}
