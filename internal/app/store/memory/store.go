// Package memory provides an in-memory implementation of storage.Repository
// used by tests and by the "memory" store backend.
//
// RunInTx clones the whole state, runs fn against the clone and swaps it in
// only when fn succeeds, so a failed unit of work leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Compile-time contract assertion.
var _ storage.Repository = (*Store)(nil)

// Store is a mutex-guarded in-memory repository.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// New returns an empty Store.
func New() *Store {
	return &Store{state: newState()}
}

type state struct {
	workers map[primitive.ObjectID]models.Worker
	rooms   map[primitive.ObjectID]models.Room
	farms   map[primitive.ObjectID]models.Farm
	stock   map[primitive.ObjectID]models.StockItem
}

func newState() *state {
	return &state{
		workers: make(map[primitive.ObjectID]models.Worker),
		rooms:   make(map[primitive.ObjectID]models.Room),
		farms:   make(map[primitive.ObjectID]models.Farm),
		stock:   make(map[primitive.ObjectID]models.StockItem),
	}
}

func (st *state) clone() *state {
	out := newState()
	for k, v := range st.workers {
		out.workers[k] = cloneWorker(v)
	}
	for k, v := range st.rooms {
		out.rooms[k] = cloneRoom(v)
	}
	for k, v := range st.farms {
		out.farms[k] = cloneFarm(v)
	}
	for k, v := range st.stock {
		out.stock[k] = v
	}
	return out
}

// RunInTx executes fn within a transactional copy of the store state.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.state.clone()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx
	return nil
}

/* ------------------------------ seeding ------------------------------ */

// PutFarm inserts or replaces a farm. A zero ID is assigned.
func (s *Store) PutFarm(f models.Farm) models.Farm {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	f.NameCI = text.Fold(f.Name)
	s.state.farms[f.ID] = cloneFarm(f)
	return f
}

// PutRoom inserts or replaces a room. A zero ID is assigned and the
// occupancy count is taken as given so tests can seed drifted rooms.
func (s *Store) PutRoom(r models.Room) models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	s.state.rooms[r.ID] = cloneRoom(r)
	return r
}

// PutWorker inserts or replaces a worker without any consistency checks.
func (s *Store) PutWorker(w models.Worker) models.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	s.state.workers[w.ID] = cloneWorker(w)
	return w
}

// PutStockItem inserts or replaces a stock item.
func (s *Store) PutStockItem(it models.StockItem) models.StockItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID.IsZero() {
		it.ID = primitive.NewObjectID()
	}
	it.ItemNameCI = text.Fold(it.ItemName)
	s.state.stock[it.ID] = it
	return it
}

/* ------------------- storage.Tx on the live state -------------------- */

func (s *Store) GetWorker(ctx context.Context, id primitive.ObjectID) (models.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetWorker(ctx, id)
}

func (s *Store) FindWorkersByNationalID(ctx context.Context, nationalID string) ([]models.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.FindWorkersByNationalID(ctx, nationalID)
}

func (s *Store) FindWorkersByNameTokens(ctx context.Context, tokens []string, limit int) ([]models.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.FindWorkersByNameTokens(ctx, tokens, limit)
}

func (s *Store) ListWorkersByFarm(ctx context.Context, farmID primitive.ObjectID, status string) ([]models.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListWorkersByFarm(ctx, farmID, status)
}

func (s *Store) CountActiveWorkers(ctx context.Context, farmID primitive.ObjectID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CountActiveWorkers(ctx, farmID)
}

func (s *Store) CreateWorker(ctx context.Context, w models.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateWorker(ctx, w)
}

func (s *Store) UpdateWorker(ctx context.Context, w models.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateWorker(ctx, w)
}

func (s *Store) DeleteWorker(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeleteWorker(ctx, id)
}

func (s *Store) GetRoom(ctx context.Context, id primitive.ObjectID) (models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetRoom(ctx, id)
}

func (s *Store) FindRoom(ctx context.Context, farmID primitive.ObjectID, number string) (models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.FindRoom(ctx, farmID, number)
}

func (s *Store) ListRoomsByFarm(ctx context.Context, farmID primitive.ObjectID) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListRoomsByFarm(ctx, farmID)
}

func (s *Store) UpdateRoom(ctx context.Context, r models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateRoom(ctx, r)
}

func (s *Store) GetFarm(ctx context.Context, id primitive.ObjectID) (models.Farm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetFarm(ctx, id)
}

func (s *Store) ListFarms(ctx context.Context) ([]models.Farm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListFarms(ctx)
}

func (s *Store) SetActiveWorkerCount(ctx context.Context, id primitive.ObjectID, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SetActiveWorkerCount(ctx, id, n)
}

func (s *Store) FindStockItem(ctx context.Context, itemName string, farmID primitive.ObjectID) (models.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.FindStockItem(ctx, itemName, farmID)
}

func (s *Store) TouchStockItem(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TouchStockItem(ctx, id, at)
}

/* --------------------- storage.Tx on a state copy --------------------- */

func (st *state) GetWorker(_ context.Context, id primitive.ObjectID) (models.Worker, error) {
	w, ok := st.workers[id]
	if !ok {
		return models.Worker{}, storage.ErrNotFound
	}
	return cloneWorker(w), nil
}

func (st *state) FindWorkersByNationalID(_ context.Context, nationalID string) ([]models.Worker, error) {
	var out []models.Worker
	for _, w := range st.workers {
		if w.NationalID == nationalID {
			out = append(out, cloneWorker(w))
		}
	}
	sortWorkers(out)
	return out, nil
}

func (st *state) FindWorkersByNameTokens(_ context.Context, tokens []string, limit int) ([]models.Worker, error) {
	want := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		want[t] = struct{}{}
	}
	var out []models.Worker
	for _, w := range st.workers {
		for _, t := range w.NameTokens {
			if _, ok := want[t]; ok {
				out = append(out, cloneWorker(w))
				break
			}
		}
	}
	sortWorkers(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (st *state) ListWorkersByFarm(_ context.Context, farmID primitive.ObjectID, status string) ([]models.Worker, error) {
	var out []models.Worker
	for _, w := range st.workers {
		if w.FarmID != farmID {
			continue
		}
		if status != "" && w.Status != status {
			continue
		}
		out = append(out, cloneWorker(w))
	}
	sortWorkers(out)
	return out, nil
}

func (st *state) CountActiveWorkers(_ context.Context, farmID primitive.ObjectID) (int, error) {
	n := 0
	for _, w := range st.workers {
		if w.FarmID == farmID && w.Status == models.StatusActive {
			n++
		}
	}
	return n, nil
}

func (st *state) CreateWorker(_ context.Context, w models.Worker) error {
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	st.workers[w.ID] = cloneWorker(w)
	return nil
}

func (st *state) UpdateWorker(_ context.Context, w models.Worker) error {
	if _, ok := st.workers[w.ID]; !ok {
		return storage.ErrNotFound
	}
	st.workers[w.ID] = cloneWorker(w)
	return nil
}

func (st *state) DeleteWorker(_ context.Context, id primitive.ObjectID) error {
	if _, ok := st.workers[id]; !ok {
		return storage.ErrNotFound
	}
	delete(st.workers, id)
	return nil
}

func (st *state) GetRoom(_ context.Context, id primitive.ObjectID) (models.Room, error) {
	r, ok := st.rooms[id]
	if !ok {
		return models.Room{}, storage.ErrNotFound
	}
	return cloneRoom(r), nil
}

func (st *state) FindRoom(_ context.Context, farmID primitive.ObjectID, number string) (models.Room, error) {
	for _, r := range st.rooms {
		if r.FarmID == farmID && r.Number == number {
			return cloneRoom(r), nil
		}
	}
	return models.Room{}, storage.ErrNotFound
}

func (st *state) ListRoomsByFarm(_ context.Context, farmID primitive.ObjectID) ([]models.Room, error) {
	var out []models.Room
	for _, r := range st.rooms {
		if r.FarmID == farmID {
			out = append(out, cloneRoom(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (st *state) UpdateRoom(_ context.Context, r models.Room) error {
	cur, ok := st.rooms[r.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if cur.Version != r.Version {
		return storage.ErrVersionConflict
	}
	r.Version++
	st.rooms[r.ID] = cloneRoom(r)
	return nil
}

func (st *state) GetFarm(_ context.Context, id primitive.ObjectID) (models.Farm, error) {
	f, ok := st.farms[id]
	if !ok {
		return models.Farm{}, storage.ErrNotFound
	}
	return cloneFarm(f), nil
}

func (st *state) ListFarms(_ context.Context) ([]models.Farm, error) {
	out := make([]models.Farm, 0, len(st.farms))
	for _, f := range st.farms {
		out = append(out, cloneFarm(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameCI < out[j].NameCI })
	return out, nil
}

func (st *state) SetActiveWorkerCount(_ context.Context, id primitive.ObjectID, n int) error {
	f, ok := st.farms[id]
	if !ok {
		return storage.ErrNotFound
	}
	f.ActiveWorkerCount = n
	st.farms[id] = f
	return nil
}

func (st *state) FindStockItem(_ context.Context, itemName string, farmID primitive.ObjectID) (models.StockItem, error) {
	key := text.Fold(itemName)
	for _, it := range st.stock {
		if it.FarmID == farmID && it.ItemNameCI == key {
			return it, nil
		}
	}
	return models.StockItem{}, storage.ErrNotFound
}

func (st *state) TouchStockItem(_ context.Context, id primitive.ObjectID, at time.Time) error {
	it, ok := st.stock[id]
	if !ok {
		return storage.ErrNotFound
	}
	it.LastUpdatedAt = at
	st.stock[id] = it
	return nil
}

/* ------------------------------ cloning ------------------------------ */

func sortWorkers(ws []models.Worker) {
	sort.Slice(ws, func(i, j int) bool { return ws[i].ID.Hex() < ws[j].ID.Hex() })
}

func cloneWorker(w models.Worker) models.Worker {
	if w.BirthDate != nil {
		b := *w.BirthDate
		w.BirthDate = &b
	}
	if w.ExitDate != nil {
		e := *w.ExitDate
		w.ExitDate = &e
	}
	if w.SupervisorID != nil {
		s := *w.SupervisorID
		w.SupervisorID = &s
	}
	w.NameTokens = append([]string(nil), w.NameTokens...)
	if w.WorkHistory != nil {
		h := make([]models.WorkPeriod, len(w.WorkHistory))
		for i, p := range w.WorkHistory {
			if p.ExitDate != nil {
				e := *p.ExitDate
				p.ExitDate = &e
			}
			h[i] = p
		}
		w.WorkHistory = h
	}
	if w.AllocatedItems != nil {
		items := make([]models.ItemAllocation, len(w.AllocatedItems))
		for i, a := range w.AllocatedItems {
			if a.ReturnedAt != nil {
				r := *a.ReturnedAt
				a.ReturnedAt = &r
			}
			items[i] = a
		}
		w.AllocatedItems = items
	}
	return w
}

func cloneRoom(r models.Room) models.Room {
	r.OccupantIDs = append([]primitive.ObjectID(nil), r.OccupantIDs...)
	return r
}

func cloneFarm(f models.Farm) models.Farm {
	f.AdminIDs = append([]primitive.ObjectID(nil), f.AdminIDs...)
	return f
}
