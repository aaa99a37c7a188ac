// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each collection's set is reconciled
idempotently; problems are aggregated so startup can fail fast with all of
them visible.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, set := range collections {
		if err := ensureIndexSet(ctx, db.Collection(set.name), set.models); err != nil {
			problems = append(problems, set.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type indexSet struct {
	name   string
	models []mongo.IndexModel
}

func named(name string) *options.IndexOptions { return options.Index().SetName(name) }

func unique(name string) *options.IndexOptions {
	return options.Index().SetName(name).SetUnique(true)
}

var collections = []indexSet{
	{"workers", []mongo.IndexModel{
		// Identity lookup across every farm; deliberately not unique.
		{Keys: bson.D{{Key: "national_id", Value: 1}}, Options: named("idx_workers_nationalid")},
		// Probable-duplicate lookup by folded name token (multikey).
		{Keys: bson.D{{Key: "name_tokens", Value: 1}}, Options: named("idx_workers_nametokens")},
		// Farm lists, with and without a status filter, in name order.
		{
			Keys: bson.D{
				{Key: "farm_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "full_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: named("idx_workers_farm_status_fullnameci__id"),
		},
		{
			Keys:    bson.D{{Key: "farm_id", Value: 1}, {Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: named("idx_workers_farm_fullnameci__id"),
		},
	}},
	{"rooms", []mongo.IndexModel{
		{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "number", Value: 1}}, Options: unique("uniq_rooms_farm_number")},
	}},
	{"farms", []mongo.IndexModel{
		{Keys: bson.D{{Key: "name_ci", Value: 1}}, Options: unique("uniq_farms_nameci")},
		{Keys: bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}, Options: named("idx_farms_nameci__id")},
	}},
	{"stock_items", []mongo.IndexModel{
		{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "item_name_ci", Value: 1}}, Options: unique("uniq_stock_farm_itemnameci")},
	}},
	{"notifications", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "recipient_farm_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: named("idx_notifications_farm_createdat__id"),
		},
		{
			Keys:    bson.D{{Key: "recipient_farm_id", Value: 1}, {Key: "read", Value: 1}},
			Options: named("idx_notifications_farm_read"),
		},
		{Keys: bson.D{{Key: "correlation_id", Value: 1}}, Options: named("idx_notifications_correlationid")},
	}},
	{"audit_events", []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}, Options: named("idx_audit_timestamp")},
		{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "timestamp", Value: -1}}, Options: named("idx_audit_farm_timestamp")},
		{Keys: bson.D{{Key: "worker_id", Value: 1}, {Key: "timestamp", Value: -1}}, Options: named("idx_audit_worker_timestamp")},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "timestamp", Value: -1}}, Options: named("idx_audit_category_timestamp")},
	}},
}

/* -------------------------------------------------------------------------- */
/* Reconcile a set of desired indexes for one collection                      */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolOf(b *bool) bool { return b != nil && *b }

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		// Collection does not exist yet.
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index", zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// ensureIndexSet creates missing indexes and drops/recreates ones whose
// name or uniqueness drifted from the desired model.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listExisting(ctx, coll)

	for _, m := range models {
		name := *m.Options.Name
		wantUnique := boolOf(m.Options.Unique)
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", wantUnique))

		if ex, ok := existing[sig]; ok {
			if boolOf(ex.Unique) == wantUnique && ex.Name == name {
				log.Debug("reusing existing index")
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				log.Warn("drop drifted index failed", zap.String("existing", ex.Name), zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
			log.Info("dropped drifted index", zap.String("existing", ex.Name))
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if wantUnique && wafflemongo.IsDup(err) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present on %s)", coll.Name(), name, sig))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			log.Warn("index ensure failed", zap.Duration("took", time.Since(start)), zap.Error(err))
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
