package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/conflict"
	"github.com/dalemusser/fermehub/internal/app/store/memory"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type recorder struct {
	mu    sync.Mutex
	notes []models.Notification
	err   error
}

func (r *recorder) Notify(_ context.Context, notes []models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notes...)
	return r.err
}

func (r *recorder) ofType(typ string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.notes {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	now   time.Time
	store *memory.Store
	sent  *recorder
	svc   *lifecycle.Service

	farmA, farmB     models.Farm
	adminA1, adminA2 primitive.ObjectID
	adminB           primitive.ObjectID
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		now:     day("2024-01-01").Add(9 * time.Hour),
		store:   memory.New(),
		sent:    &recorder{},
		adminA1: primitive.NewObjectID(),
		adminA2: primitive.NewObjectID(),
		adminB:  primitive.NewObjectID(),
	}
	f.farmA = f.store.PutFarm(models.Farm{Name: "Ferme A", AdminIDs: []primitive.ObjectID{f.adminA1, f.adminA2}, Status: "active"})
	f.farmB = f.store.PutFarm(models.Farm{Name: "Ferme B", AdminIDs: []primitive.ObjectID{f.adminB}, Status: "active"})
	f.svc = lifecycle.New(f.store, f.sent, nil, zap.NewNop(), lifecycle.Config{BaseURL: "https://fermehub.test"}).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) setToday(s string) { f.now = day(s).Add(9 * time.Hour) }

func (f *fixture) room(farmID primitive.ObjectID, number, category string, capacity int) models.Room {
	return f.store.PutRoom(models.Room{
		FarmID:         farmID,
		Number:         number,
		GenderCategory: category,
		TotalCapacity:  capacity,
		OccupantIDs:    []primitive.ObjectID{},
	})
}

func (f *fixture) getRoom(id primitive.ObjectID) models.Room {
	f.t.Helper()
	r, err := f.store.GetRoom(f.ctx, id)
	require.NoError(f.t, err)
	require.Equal(f.t, len(r.OccupantIDs), r.CurrentOccupancy, "occupancy count must match occupant list")
	return r
}

func (f *fixture) getWorker(id primitive.ObjectID) models.Worker {
	f.t.Helper()
	w, err := f.store.GetWorker(f.ctx, id)
	require.NoError(f.t, err)
	return w
}

func (f *fixture) getFarm(id primitive.ObjectID) models.Farm {
	f.t.Helper()
	farm, err := f.store.GetFarm(f.ctx, id)
	require.NoError(f.t, err)
	return farm
}

func x1Input(room string, entry string) lifecycle.WorkerInput {
	return lifecycle.WorkerInput{
		NationalID: "x1",
		FullName:   "Youssef Amrani",
		Gender:     models.GenderMale,
		RoomNumber: room,
		EntryDate:  day(entry),
	}
}

func (f *fixture) create(farmID primitive.ObjectID, in lifecycle.WorkerInput) models.Worker {
	f.t.Helper()
	res, err := f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{Actor: "admin", FarmID: farmID, Worker: in})
	require.NoError(f.t, err)
	require.NotNil(f.t, res.Worker)
	return *res.Worker
}

func (f *fixture) exit(w models.Worker, in lifecycle.WorkerInput, exit, reason string) lifecycle.Result {
	f.t.Helper()
	d := day(exit)
	res, err := f.svc.EditWorker(f.ctx, lifecycle.EditRequest{
		Actor:      "admin",
		WorkerID:   w.ID,
		Worker:     in,
		ExitDate:   &d,
		ExitReason: reason,
	})
	require.NoError(f.t, err)
	return res
}

func TestScenarioA_CreateAssignsRoomAndOpensPeriod(t *testing.T) {
	f := newFixture(t)
	r1 := f.room(f.farmA.ID, "R1", models.RoomMen, 2)

	res, err := f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{
		Actor:  "admin-a",
		FarmID: f.farmA.ID,
		Worker: x1Input("R1", "2024-01-01"),
	})
	require.NoError(t, err)
	require.Equal(t, conflict.Proceed, res.Disposition)
	require.False(t, res.Pending)
	require.Empty(t, res.Warnings)

	w := *res.Worker
	require.Equal(t, "X1", w.NationalID)
	require.True(t, w.IsActive())
	require.Equal(t, "R1", w.RoomNumber)
	require.Equal(t, "Ferme A · Chambre R1", w.Sector)
	require.Equal(t, "youssef amrani", w.FullNameCI)

	stored := f.getWorker(w.ID)
	require.Len(t, stored.WorkHistory, 1)
	require.True(t, stored.WorkHistory[0].EntryDate.Equal(day("2024-01-01")))
	require.Nil(t, stored.WorkHistory[0].ExitDate)

	room := f.getRoom(r1.ID)
	require.Equal(t, 1, room.CurrentOccupancy)
	require.Equal(t, []primitive.ObjectID{w.ID}, room.OccupantIDs)
	require.Equal(t, 1, f.getFarm(f.farmA.ID).ActiveWorkerCount)

	notes := f.sent.ofType(models.NotifyNewWorker)
	require.Len(t, notes, 2)
	require.Equal(t, notes[0].CorrelationID, notes[1].CorrelationID)
	require.ElementsMatch(t, []primitive.ObjectID{f.adminA1, f.adminA2}, []primitive.ObjectID{*notes[0].RecipientID, *notes[1].RecipientID})
	require.Equal(t, "https://fermehub.test/workers/"+w.ID.Hex(), notes[0].ActionPayload.DeepLink)
}

func TestScenarioB_ExitClosesPeriodAndReleasesRoom(t *testing.T) {
	f := newFixture(t)
	r1 := f.room(f.farmA.ID, "R1", models.RoomMen, 2)
	mattress := f.store.PutStockItem(models.StockItem{FarmID: f.farmA.ID, ItemName: "Matelas", QuantityOnHand: 10})
	w := f.create(f.farmA.ID, x1Input("R1", "2024-01-01"))

	_, err := f.svc.AllocateItem(f.ctx, lifecycle.AllocateItemRequest{Actor: "admin", WorkerID: w.ID, ItemName: "matelas"})
	require.NoError(t, err)

	f.setToday("2024-03-15")
	res := f.exit(w, x1Input("R1", "2024-01-01"), "2024-03-01", "maladie")

	got := f.getWorker(w.ID)
	require.Equal(t, models.StatusInactive, got.Status)
	require.True(t, got.ExitDate.Equal(day("2024-03-01")))
	require.Equal(t, "maladie", got.ExitReason)
	require.Equal(t, 0, f.getRoom(r1.ID).CurrentOccupancy)
	require.Equal(t, 0, f.getFarm(f.farmA.ID).ActiveWorkerCount)

	require.Len(t, got.AllocatedItems, 1)
	require.Equal(t, models.AllocationReturned, got.AllocatedItems[0].Status)
	require.NotNil(t, got.AllocatedItems[0].ReturnedAt)
	stock, err := f.store.FindStockItem(f.ctx, "Matelas", f.farmA.ID)
	require.NoError(t, err)
	require.Equal(t, mattress.QuantityOnHand, stock.QuantityOnHand)
	require.True(t, stock.LastUpdatedAt.Equal(f.now))

	tl, err := f.svc.WorkTimeline(f.ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, tl.Periods, 1)
	require.Equal(t, 60, tl.Periods[0].Days)
	require.Equal(t, "maladie", tl.Periods[0].ExitReason)

	require.Len(t, res.Notifications, 2)
	require.Len(t, f.sent.ofType(models.NotifyExitRecorded), 2)
}

func TestScenarioC_CrossFarmConflictCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.room(f.farmA.ID, "R1", models.RoomMen, 2)
	w := f.create(f.farmA.ID, x1Input("R1", "2024-01-01"))

	res, err := f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{
		Actor:  "admin-b",
		FarmID: f.farmB.ID,
		Worker: x1Input("", "2024-02-01"),
	})
	require.NoError(t, err)
	require.True(t, res.Pending)
	require.Equal(t, conflict.CrossFarm, res.Disposition)
	require.Nil(t, res.Worker)
	require.Equal(t, w.ID, res.Existing.ID)
	require.Contains(t, res.Message, "Ferme A")

	inB, err := f.store.ListWorkersByFarm(f.ctx, f.farmB.ID, "")
	require.NoError(t, err)
	require.Empty(t, inB)

	notes := f.sent.ofType(models.NotifyCrossFarmConflict)
	require.Len(t, notes, 2)
	for _, n := range notes {
		require.Equal(t, f.farmA.ID, n.RecipientFarmID)
		require.Equal(t, models.PriorityHigh, n.Priority)
		require.Equal(t, models.ActionRecordExit, n.ActionPayload.RequiredAction)
		require.Equal(t, w.ID, n.ActionPayload.WorkerID)
	}
}

func TestScenarioD_ReRegistrationReactivates(t *testing.T) {
	f := newFixture(t)
	r1 := f.room(f.farmA.ID, "R1", models.RoomMen, 2)
	w := f.create(f.farmA.ID, x1Input("R1", "2024-01-01"))
	f.setToday("2024-03-15")
	f.exit(w, x1Input("R1", "2024-01-01"), "2024-03-01", "maladie")

	f.setToday("2024-04-01")
	offer, err := f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{
		Actor:  "admin",
		FarmID: f.farmA.ID,
		Worker: x1Input("R1", "2024-04-01"),
	})
	require.NoError(t, err)
	require.Equal(t, conflict.Reactivate, offer.Disposition)
	require.Nil(t, offer.Worker)
	require.Equal(t, w.ID, offer.Existing.ID)
	require.Equal(t, models.StatusInactive, f.getWorker(w.ID).Status)

	res, err := f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{
		Actor:           "admin",
		FarmID:          f.farmA.ID,
		Worker:          x1Input("R1", "2024-04-01"),
		ApplyResolution: true,
	})
	require.NoError(t, err)
	require.Equal(t, conflict.Reactivate, res.Disposition)

	got := f.getWorker(w.ID)
	require.Equal(t, w.ID, res.Worker.ID)
	require.True(t, got.IsActive())
	require.Equal(t, 1, got.ReturnCount)
	require.Nil(t, got.ExitDate)
	require.Empty(t, got.ExitReason)
	require.True(t, got.EntryDate.Equal(day("2024-04-01")))

	require.Len(t, got.WorkHistory, 2)
	first, second := got.WorkHistory[0], got.WorkHistory[1]
	require.True(t, first.EntryDate.Equal(day("2024-01-01")))
	require.True(t, first.ExitDate.Equal(day("2024-03-01")))
	require.Equal(t, "maladie", first.ExitReason)
	require.True(t, second.EntryDate.Equal(day("2024-04-01")))
	require.Nil(t, second.ExitDate)

	require.Equal(t, []primitive.ObjectID{w.ID}, f.getRoom(r1.ID).OccupantIDs)
	require.Equal(t, 1, f.getFarm(f.farmA.ID).ActiveWorkerCount)
	require.Len(t, f.sent.ofType(models.NotifyWorkerReturned), 2)
}

func TestScenarioE_GenderMismatchDropsRoomWithWarning(t *testing.T) {
	f := newFixture(t)
	men := f.room(f.farmA.ID, "R1", models.RoomMen, 2)

	res, err := f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{
		Actor:  "admin",
		FarmID: f.farmA.ID,
		Worker: lifecycle.WorkerInput{
			NationalID: "F1",
			FullName:   "Fatima Zahra",
			Gender:     models.GenderFemale,
			RoomNumber: "R1",
			EntryDate:  day("2024-01-01"),
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	require.Empty(t, res.Worker.RoomNumber)
	require.Equal(t, "Ferme A", res.Worker.Sector)

	stored := f.getWorker(res.Worker.ID)
	require.True(t, stored.IsActive())
	require.Empty(t, stored.RoomNumber)

	room := f.getRoom(men.ID)
	require.Empty(t, room.OccupantIDs)
	require.Equal(t, int64(0), room.Version)
}

func TestScenarioF_BulkDeleteEmptiesFarmRooms(t *testing.T) {
	f := newFixture(t)
	men := f.room(f.farmA.ID, "R1", models.RoomMen, 3)
	women := f.room(f.farmA.ID, "R2", models.RoomWomen, 3)
	roomB := f.room(f.farmB.ID, "B1", models.RoomMen, 3)

	m1 := f.create(f.farmA.ID, lifecycle.WorkerInput{NationalID: "M1", FullName: "Karim Benali", Gender: "male", RoomNumber: "R1"})
	m2 := f.create(f.farmA.ID, lifecycle.WorkerInput{NationalID: "M2", FullName: "Omar Haddad", Gender: "male", RoomNumber: "R1"})
	w1 := f.create(f.farmA.ID, lifecycle.WorkerInput{NationalID: "W1", FullName: "Leila Tazi", Gender: "female", RoomNumber: "R2"})
	b1 := f.create(f.farmB.ID, lifecycle.WorkerInput{NationalID: "B1", FullName: "Hassan Idrissi", Gender: "male", RoomNumber: "B1"})

	// A stray occupant id left behind by an earlier inconsistency.
	r2 := f.getRoom(women.ID)
	r2.OccupantIDs = append(r2.OccupantIDs, primitive.NewObjectID())
	r2.CurrentOccupancy = len(r2.OccupantIDs)
	f.store.PutRoom(r2)

	res, err := f.svc.BulkDeleteWorkers(f.ctx, lifecycle.BulkDeleteRequest{
		Actor:     "admin",
		WorkerIDs: []primitive.ObjectID{m1.ID, m2.ID, w1.ID, m1.ID},
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Deleted)
	require.Equal(t, []primitive.ObjectID{f.farmA.ID}, res.Farms)
	require.Equal(t, 1, res.RoomsCleared)

	require.Empty(t, f.getRoom(men.ID).OccupantIDs)
	require.Empty(t, f.getRoom(women.ID).OccupantIDs)
	require.Equal(t, 0, f.getFarm(f.farmA.ID).ActiveWorkerCount)

	require.Equal(t, []primitive.ObjectID{b1.ID}, f.getRoom(roomB.ID).OccupantIDs)
	require.Equal(t, 1, f.getFarm(f.farmB.ID).ActiveWorkerCount)
}

func TestBulkDelete_UnknownIDAbortsBatch(t *testing.T) {
	f := newFixture(t)
	r1 := f.room(f.farmA.ID, "R1", models.RoomMen, 3)
	m1 := f.create(f.farmA.ID, lifecycle.WorkerInput{NationalID: "M1", FullName: "Karim Benali", Gender: "male", RoomNumber: "R1"})

	_, err := f.svc.BulkDeleteWorkers(f.ctx, lifecycle.BulkDeleteRequest{
		WorkerIDs: []primitive.ObjectID{m1.ID, primitive.NewObjectID()},
	})
	require.ErrorIs(t, err, lifecycle.ErrNotFound)

	f.getWorker(m1.ID)
	require.Equal(t, []primitive.ObjectID{m1.ID}, f.getRoom(r1.ID).OccupantIDs)

	_, err = f.svc.BulkDeleteWorkers(f.ctx, lifecycle.BulkDeleteRequest{})
	require.ErrorIs(t, err, lifecycle.ErrInvalidRequest)
}

func TestCreate_RejectsActiveDuplicateInSameFarm(t *testing.T) {
	f := newFixture(t)
	w := f.create(f.farmA.ID, x1Input("", "2024-01-01"))

	res, err := f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{
		FarmID: f.farmA.ID,
		Worker: lifecycle.WorkerInput{NationalID: " x 1 ", FullName: "Someone Else", Gender: "male"},
	})
	require.ErrorIs(t, err, lifecycle.ErrActiveDuplicate)
	var dup *lifecycle.DuplicateError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, w.ID, dup.Existing.ID)
	require.Equal(t, conflict.Reject, res.Disposition)

	all, err := f.store.ListWorkersByFarm(f.ctx, f.farmA.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		farmID primitive.ObjectID
		in     lifecycle.WorkerInput
		want   error
	}{
		{"missing national id", f.farmA.ID, lifecycle.WorkerInput{FullName: "A B", Gender: "male"}, lifecycle.ErrInvalidRequest},
		{"markup only name", f.farmA.ID, lifecycle.WorkerInput{NationalID: "Z1", FullName: "<b></b>", Gender: "male"}, lifecycle.ErrInvalidRequest},
		{"bad gender", f.farmA.ID, lifecycle.WorkerInput{NationalID: "Z1", FullName: "A B", Gender: "x"}, lifecycle.ErrInvalidRequest},
		{"unknown farm", primitive.NewObjectID(), lifecycle.WorkerInput{NationalID: "Z1", FullName: "A B", Gender: "male"}, lifecycle.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{FarmID: tc.farmID, Worker: tc.in})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreate_FlagsProbableDuplicateByName(t *testing.T) {
	f := newFixture(t)
	existing := f.create(f.farmA.ID, x1Input("", "2024-01-01"))

	res, err := f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{
		FarmID: f.farmB.ID,
		Worker: lifecycle.WorkerInput{NationalID: "X2", FullName: "Youssef Amrany", Gender: "male"},
	})
	require.NoError(t, err)
	require.Equal(t, conflict.Proceed, res.Disposition)
	require.Len(t, res.ProbableDuplicates, 1)
	require.Equal(t, existing.ID, res.ProbableDuplicates[0].Worker.ID)
}

func TestCreate_DeliveryFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.sent.err = errors.New("broker down")

	res, err := f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{FarmID: f.farmA.ID, Worker: x1Input("", "2024-01-01")})
	require.NoError(t, err)
	require.NotNil(t, res.Worker)
	require.Len(t, res.Notifications, 2)
}

func TestTransfer_ThroughRegistrationInOtherFarm(t *testing.T) {
	f := newFixture(t)
	f.room(f.farmA.ID, "R1", models.RoomMen, 2)
	roomB := f.room(f.farmB.ID, "B1", models.RoomMen, 2)
	w := f.create(f.farmA.ID, x1Input("R1", "2024-01-01"))
	f.setToday("2024-03-15")
	f.exit(w, x1Input("R1", "2024-01-01"), "2024-03-01", "fin de contrat")

	res, err := f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{
		FarmID:          f.farmB.ID,
		Worker:          x1Input("B1", "2024-03-10"),
		ApplyResolution: true,
	})
	require.NoError(t, err)
	require.Equal(t, conflict.Transfer, res.Disposition)

	got := f.getWorker(w.ID)
	require.Equal(t, f.farmB.ID, got.FarmID)
	require.Equal(t, 1, got.ReturnCount)
	require.Equal(t, "Ferme B · Chambre B1", got.Sector)
	require.Len(t, got.WorkHistory, 2)
	require.Equal(t, f.farmA.ID, got.WorkHistory[0].FarmID)
	require.Equal(t, f.farmB.ID, got.WorkHistory[1].FarmID)
	require.Equal(t, []primitive.ObjectID{w.ID}, f.getRoom(roomB.ID).OccupantIDs)
	require.Equal(t, 1, f.getFarm(f.farmB.ID).ActiveWorkerCount)
	require.Equal(t, 0, f.getFarm(f.farmA.ID).ActiveWorkerCount)

	transferred := f.sent.ofType(models.NotifyWorkerTransferred)
	require.Len(t, transferred, 2)
	for _, n := range transferred {
		require.Equal(t, f.farmA.ID, n.RecipientFarmID)
	}
	returned := f.sent.ofType(models.NotifyWorkerReturned)
	require.Len(t, returned, 1)
	require.Equal(t, f.adminB, *returned[0].RecipientID)
}

func TestReactivateAndTransfer_Guards(t *testing.T) {
	f := newFixture(t)
	w := f.create(f.farmA.ID, x1Input("", "2024-01-01"))

	_, err := f.svc.ReactivateWorker(f.ctx, lifecycle.ReactivateRequest{WorkerID: w.ID})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	f.setToday("2024-03-15")
	f.exit(w, x1Input("", "2024-01-01"), "2024-03-01", "")

	_, err = f.svc.ReactivateWorker(f.ctx, lifecycle.ReactivateRequest{WorkerID: w.ID, EntryDate: day("2024-02-01")})
	require.ErrorIs(t, err, lifecycle.ErrInvalidRequest)

	_, err = f.svc.TransferWorker(f.ctx, lifecycle.TransferRequest{WorkerID: w.ID, ToFarmID: f.farmA.ID})
	require.ErrorIs(t, err, lifecycle.ErrInvalidRequest)

	_, err = f.svc.TransferWorker(f.ctx, lifecycle.TransferRequest{WorkerID: w.ID, ToFarmID: primitive.NewObjectID()})
	require.ErrorIs(t, err, lifecycle.ErrNotFound)

	res, err := f.svc.ReactivateWorker(f.ctx, lifecycle.ReactivateRequest{WorkerID: w.ID})
	require.NoError(t, err)
	require.True(t, res.Worker.EntryDate.Equal(day("2024-03-15")))
}

func TestEdit_MovesBetweenRooms(t *testing.T) {
	f := newFixture(t)
	r1 := f.room(f.farmA.ID, "R1", models.RoomMen, 2)
	r2 := f.room(f.farmA.ID, "R2", models.RoomMen, 2)
	w := f.create(f.farmA.ID, x1Input("R1", "2024-01-01"))

	res, err := f.svc.EditWorker(f.ctx, lifecycle.EditRequest{WorkerID: w.ID, Worker: x1Input("R2", "2024-01-01")})
	require.NoError(t, err)
	require.Equal(t, "R2", res.Worker.RoomNumber)
	require.Empty(t, f.getRoom(r1.ID).OccupantIDs)
	require.Equal(t, []primitive.ObjectID{w.ID}, f.getRoom(r2.ID).OccupantIDs)

	got := f.getWorker(w.ID)
	require.Len(t, got.WorkHistory, 1)
	require.Equal(t, "R2", got.WorkHistory[0].RoomNumber)
	require.Equal(t, "Ferme A · Chambre R2", got.WorkHistory[0].Sector)
}

func TestEdit_EntryDateCorrectionRetimesPeriod(t *testing.T) {
	f := newFixture(t)
	w := f.create(f.farmA.ID, x1Input("", "2024-01-10"))

	_, err := f.svc.EditWorker(f.ctx, lifecycle.EditRequest{WorkerID: w.ID, Worker: x1Input("", "2024-01-05")})
	require.NoError(t, err)

	got := f.getWorker(w.ID)
	require.Len(t, got.WorkHistory, 1)
	require.True(t, got.WorkHistory[0].EntryDate.Equal(day("2024-01-05")))
	require.True(t, got.EntryDate.Equal(day("2024-01-05")))
}

func TestEdit_FutureExitIsScheduledThenHealed(t *testing.T) {
	f := newFixture(t)
	r1 := f.room(f.farmA.ID, "R1", models.RoomMen, 2)
	w := f.create(f.farmA.ID, x1Input("R1", "2024-01-01"))

	f.setToday("2024-02-01")
	res := f.exit(w, x1Input("R1", "2024-01-01"), "2024-02-15", "fin de saison")
	require.True(t, res.Worker.IsActive())
	require.NotNil(t, res.Worker.ExitDate)
	require.Empty(t, res.Notifications)
	require.Equal(t, []primitive.ObjectID{w.ID}, f.getRoom(r1.ID).OccupantIDs)

	rep, err := f.svc.HealLifecycle(f.ctx, f.farmA.ID)
	require.NoError(t, err)
	require.Equal(t, 0, rep.Deactivated)

	f.setToday("2024-02-20")
	rep, err = f.svc.HealLifecycle(f.ctx, f.farmA.ID)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Deactivated)

	got := f.getWorker(w.ID)
	require.Equal(t, models.StatusInactive, got.Status)
	require.True(t, got.StatusConsistent(f.now))
	require.Empty(t, f.getRoom(r1.ID).OccupantIDs)
	require.Equal(t, 0, f.getFarm(f.farmA.ID).ActiveWorkerCount)
	require.Len(t, f.sent.ofType(models.NotifyExitRecorded), 2)

	rep, err = f.svc.HealLifecycle(f.ctx, f.farmA.ID)
	require.NoError(t, err)
	require.Equal(t, 0, rep.Deactivated)
}

func TestEdit_CancelScheduledExit(t *testing.T) {
	f := newFixture(t)
	w := f.create(f.farmA.ID, x1Input("", "2024-01-01"))
	f.exit(w, x1Input("", "2024-01-01"), "2024-06-01", "fin de saison")

	res, err := f.svc.EditWorker(f.ctx, lifecycle.EditRequest{WorkerID: w.ID, Worker: x1Input("", "2024-01-01")})
	require.NoError(t, err)
	require.True(t, res.Worker.IsActive())
	require.Nil(t, res.Worker.ExitDate)

	got := f.getWorker(w.ID)
	require.Len(t, got.WorkHistory, 1)
	require.True(t, got.WorkHistory[0].IsOpen())
}

func TestEdit_Guards(t *testing.T) {
	f := newFixture(t)
	w := f.create(f.farmA.ID, x1Input("", "2024-01-01"))
	other := f.create(f.farmA.ID, lifecycle.WorkerInput{NationalID: "Y9", FullName: "Rachid Alaoui", Gender: "male"})

	in := x1Input("", "2024-01-01")
	in.NationalID = "y9"
	_, err := f.svc.EditWorker(f.ctx, lifecycle.EditRequest{WorkerID: w.ID, Worker: in})
	var dup *lifecycle.DuplicateError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, other.ID, dup.Existing.ID)
	require.Equal(t, "X1", f.getWorker(w.ID).NationalID)

	before := day("2023-12-01")
	_, err = f.svc.EditWorker(f.ctx, lifecycle.EditRequest{WorkerID: w.ID, Worker: x1Input("", "2024-01-01"), ExitDate: &before})
	require.ErrorIs(t, err, lifecycle.ErrInvalidRequest)

	f.setToday("2024-03-15")
	f.exit(w, x1Input("", "2024-01-01"), "2024-03-01", "")
	_, err = f.svc.EditWorker(f.ctx, lifecycle.EditRequest{WorkerID: w.ID, Worker: x1Input("", "2024-01-01")})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = f.svc.EditWorker(f.ctx, lifecycle.EditRequest{WorkerID: primitive.NewObjectID(), Worker: x1Input("", "2024-01-01")})
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestDeleteWorker_ReleasesRoom(t *testing.T) {
	f := newFixture(t)
	r1 := f.room(f.farmA.ID, "R1", models.RoomMen, 2)
	w := f.create(f.farmA.ID, x1Input("R1", "2024-01-01"))

	res, err := f.svc.DeleteWorker(f.ctx, lifecycle.DeleteRequest{Actor: "admin", WorkerID: w.ID})
	require.NoError(t, err)
	require.Equal(t, w.ID, res.Worker.ID)
	require.Empty(t, f.getRoom(r1.ID).OccupantIDs)
	require.Equal(t, 0, f.getFarm(f.farmA.ID).ActiveWorkerCount)

	_, err = f.svc.GetWorker(f.ctx, w.ID)
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
	_, err = f.svc.DeleteWorker(f.ctx, lifecycle.DeleteRequest{WorkerID: w.ID})
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestItems_AllocateAndReturn(t *testing.T) {
	f := newFixture(t)
	cupboard := f.store.PutStockItem(models.StockItem{FarmID: f.farmA.ID, ItemName: "Armoire", QuantityOnHand: 4})
	w := f.create(f.farmA.ID, x1Input("", "2024-01-01"))

	_, err := f.svc.AllocateItem(f.ctx, lifecycle.AllocateItemRequest{WorkerID: w.ID, ItemName: "Couverture"})
	require.ErrorIs(t, err, lifecycle.ErrNotFound)

	alloc, err := f.svc.AllocateItem(f.ctx, lifecycle.AllocateItemRequest{WorkerID: w.ID, ItemName: " armoire "})
	require.NoError(t, err)
	require.Equal(t, "Armoire", alloc.ItemName)
	require.Equal(t, cupboard.ID, alloc.StockItemID)

	f.setToday("2024-01-20")
	returned, err := f.svc.ReturnItem(f.ctx, lifecycle.ReturnItemRequest{WorkerID: w.ID, StockItemID: cupboard.ID})
	require.NoError(t, err)
	require.Equal(t, models.AllocationReturned, returned.Status)

	_, err = f.svc.ReturnItem(f.ctx, lifecycle.ReturnItemRequest{WorkerID: w.ID, StockItemID: cupboard.ID})
	require.ErrorIs(t, err, lifecycle.ErrNotFound)

	f.exit(w, x1Input("", "2024-01-01"), "2024-01-20", "")
	_, err = f.svc.AllocateItem(f.ctx, lifecycle.AllocateItemRequest{WorkerID: w.ID, ItemName: "Armoire"})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestSweepOccupancy_RemovesStrays(t *testing.T) {
	f := newFixture(t)
	r1 := f.room(f.farmA.ID, "R1", models.RoomMen, 4)
	w := f.create(f.farmA.ID, x1Input("R1", "2024-01-01"))

	room := f.getRoom(r1.ID)
	room.OccupantIDs = append(room.OccupantIDs, primitive.NewObjectID())
	room.CurrentOccupancy = 5
	f.store.PutRoom(room)

	rep, err := f.svc.SweepOccupancy(f.ctx, f.farmA.ID)
	require.NoError(t, err)
	require.Equal(t, 1, rep.RoomsCorrected)
	require.Equal(t, []primitive.ObjectID{w.ID}, f.getRoom(r1.ID).OccupantIDs)

	rep, err = f.svc.SweepOccupancy(f.ctx, f.farmA.ID)
	require.NoError(t, err)
	require.Equal(t, 0, rep.RoomsCorrected)
}

func TestHealLifecycle_FillsMissingExitDate(t *testing.T) {
	f := newFixture(t)
	f.setToday("2024-05-01")
	w := f.store.PutWorker(models.Worker{
		NationalID: "Q1",
		FullName:   "Nadia Berrada",
		Gender:     models.GenderFemale,
		FarmID:     f.farmA.ID,
		Status:     models.StatusInactive,
		EntryDate:  day("2024-02-01"),
	})

	rep, err := f.svc.HealLifecycle(f.ctx, f.farmA.ID)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Checked)
	require.Equal(t, 1, rep.ExitDatesFilled)

	got := f.getWorker(w.ID)
	require.True(t, got.ExitDate.Equal(day("2024-05-01")))
	require.True(t, got.StatusConsistent(f.now))
	require.Len(t, got.WorkHistory, 1)
	require.False(t, got.WorkHistory[0].IsOpen())
}

func TestMaintainAll(t *testing.T) {
	f := newFixture(t)
	f.room(f.farmB.ID, "B1", models.RoomMen, 2)
	w := f.create(f.farmB.ID, x1Input("B1", "2024-01-01"))
	f.exit(w, x1Input("B1", "2024-01-01"), "2024-01-10", "")

	f.setToday("2024-01-11")
	require.NoError(t, f.svc.MaintainAll(f.ctx))
	require.Equal(t, models.StatusInactive, f.getWorker(w.ID).Status)
}

func TestEdit_EntryDateMayNotReachIntoEarlierStay(t *testing.T) {
	f := newFixture(t)
	w := f.create(f.farmA.ID, x1Input("", "2024-01-01"))
	f.setToday("2024-03-15")
	f.exit(w, x1Input("", "2024-01-01"), "2024-03-01", "maladie")
	f.setToday("2024-04-01")
	_, err := f.svc.ReactivateWorker(f.ctx, lifecycle.ReactivateRequest{WorkerID: w.ID, EntryDate: day("2024-04-01")})
	require.NoError(t, err)

	for _, entry := range []string{"2024-01-01", "2024-02-15"} {
		_, err = f.svc.EditWorker(f.ctx, lifecycle.EditRequest{WorkerID: w.ID, Worker: x1Input("", entry)})
		require.ErrorIs(t, err, lifecycle.ErrInvalidRequest, "entry %s", entry)
	}

	got := f.getWorker(w.ID)
	require.True(t, got.IsActive())
	require.True(t, got.EntryDate.Equal(day("2024-04-01")))
	require.Len(t, got.WorkHistory, 2)
	require.Equal(t, "maladie", got.WorkHistory[0].ExitReason)
	require.True(t, got.WorkHistory[1].IsOpen())

	_, err = f.svc.EditWorker(f.ctx, lifecycle.EditRequest{WorkerID: w.ID, Worker: x1Input("", "2024-03-20")})
	require.NoError(t, err)
	got = f.getWorker(w.ID)
	require.Len(t, got.WorkHistory, 2)
	require.True(t, got.WorkHistory[1].EntryDate.Equal(day("2024-03-20")))
	require.True(t, got.WorkHistory[1].IsOpen())
}

func TestReactivate_SameDayAsRecordedStayIsRefused(t *testing.T) {
	f := newFixture(t)
	f.setToday("2024-05-02")
	w := f.create(f.farmA.ID, x1Input("", "2024-05-02"))
	f.exit(w, x1Input("", "2024-05-02"), "2024-05-02", "abandon")

	_, err := f.svc.ReactivateWorker(f.ctx, lifecycle.ReactivateRequest{WorkerID: w.ID, EntryDate: day("2024-05-02")})
	require.ErrorIs(t, err, lifecycle.ErrInvalidRequest)

	got := f.getWorker(w.ID)
	require.Equal(t, models.StatusInactive, got.Status)
	require.Len(t, got.WorkHistory, 1)
	require.Equal(t, "abandon", got.WorkHistory[0].ExitReason)
}

func TestCreate_ConcurrentRegistrationsKeepOneActiveRecord(t *testing.T) {
	f := newFixture(t)
	const n = 32

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateWorker(f.ctx, lifecycle.CreateRequest{
				Actor:  "admin",
				FarmID: f.farmA.ID,
				Worker: x1Input("", "2024-01-01"),
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, lifecycle.ErrActiveDuplicate)
	}
	require.Equal(t, 1, created)

	found, err := f.store.FindWorkersByNationalID(f.ctx, "X1")
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestHealLifecycle_FillingExitDateReturnsItems(t *testing.T) {
	f := newFixture(t)
	f.setToday("2024-05-01")
	cupboard := f.store.PutStockItem(models.StockItem{FarmID: f.farmA.ID, ItemName: "Armoire", QuantityOnHand: 4})
	w := f.store.PutWorker(models.Worker{
		NationalID: "Q1",
		FullName:   "Nadia Berrada",
		Gender:     models.GenderFemale,
		FarmID:     f.farmA.ID,
		Status:     models.StatusInactive,
		EntryDate:  day("2024-02-01"),
		AllocatedItems: []models.ItemAllocation{{
			ItemName:    "Armoire",
			AllocatedAt: day("2024-02-01"),
			Status:      models.AllocationAllocated,
			StockItemID: cupboard.ID,
			FarmID:      f.farmA.ID,
		}},
	})

	rep, err := f.svc.HealLifecycle(f.ctx, f.farmA.ID)
	require.NoError(t, err)
	require.Equal(t, 1, rep.ExitDatesFilled)

	got := f.getWorker(w.ID)
	require.Len(t, got.AllocatedItems, 1)
	require.Equal(t, models.AllocationReturned, got.AllocatedItems[0].Status)
	require.NotNil(t, got.AllocatedItems[0].ReturnedAt)
	require.True(t, got.AllocatedItems[0].ReturnedAt.Equal(f.now))
}
