package farmstore_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	farmstore "github.com/dalemusser/fermehub/internal/app/store/farms"
	"github.com/dalemusser/fermehub/internal/app/system/indexes"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"github.com/dalemusser/fermehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := farmstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	created, err := store.Create(ctx, models.Farm{Name: "Ferme Étoile"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.NameCI != "ferme etoile" {
		t.Errorf("NameCI = %q, want folded name", created.NameCI)
	}
	if created.Status != "active" || created.AdminIDs == nil {
		t.Errorf("unexpected defaults: %+v", created)
	}

	if _, err := store.Create(ctx, models.Farm{Name: "FERME ETOILE"}); !errors.Is(err, farmstore.ErrDuplicateFarmName) {
		t.Errorf("duplicate Create = %v, want ErrDuplicateFarmName", err)
	}
}

func TestStore_ListFarms_SortedByName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := farmstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateFarm(ctx, "Ferme B")
	fixtures.CreateFarm(ctx, "Ferme A")

	farms, err := store.ListFarms(ctx)
	if err != nil {
		t.Fatalf("ListFarms failed: %v", err)
	}
	if len(farms) != 2 || farms[0].Name != "Ferme A" {
		t.Errorf("got %+v", farms)
	}
}

func TestStore_SetActiveWorkerCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := farmstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	farm := fixtures.CreateFarm(ctx, "Ferme A")
	if err := store.SetActiveWorkerCount(ctx, farm.ID, 7); err != nil {
		t.Fatalf("SetActiveWorkerCount failed: %v", err)
	}
	got, err := store.GetFarm(ctx, farm.ID)
	if err != nil {
		t.Fatalf("GetFarm failed: %v", err)
	}
	if got.ActiveWorkerCount != 7 {
		t.Errorf("ActiveWorkerCount = %d, want 7", got.ActiveWorkerCount)
	}

	if err := store.SetActiveWorkerCount(ctx, primitive.NewObjectID(), 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing farm: err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetFarm(ctx, primitive.NewObjectID()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetFarm(missing) = %v, want ErrNotFound", err)
	}
}
