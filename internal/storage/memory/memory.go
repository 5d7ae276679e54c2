package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/ports"
)

// Store keeps budget items in process memory. Ids are never reused.
type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.BudgetItem
	now    func() time.Time
}

func New() *Store {
	return &Store{nextID: 1, now: time.Now}
}

// OpenSession implements ports.SessionOpener
func (s *Store) OpenSession(_ context.Context) (ports.ItemSession, error) {
	return &session{store: s}, nil
}

// Ping implements ports.Pinger
func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) insert(in core.ItemInput) core.BudgetItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := core.NewBudgetItem(s.nextID, in, in.Timestamp(s.now()))
	s.nextID++
	s.items = append(s.items, item)
	return item
}

func (s *Store) list(skip, limit int) []core.BudgetItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BudgetItem, 0)
	if skip < 0 || limit <= 0 || skip >= len(s.items) {
		return out
	}
	end := len(s.items)
	if limit < end-skip {
		end = skip + limit
	}
	return append(out, s.items[skip:end]...)
}

// find returns the index of id; items are kept sorted by id.
func (s *Store) find(id int64) (int, bool) {
	i := sort.Search(len(s.items), func(i int) bool { return s.items[i].ID >= id })
	return i, i < len(s.items) && s.items[i].ID == id
}

func (s *Store) get(id int64) (core.BudgetItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.find(id)
	if !ok {
		return core.BudgetItem{}, false
	}
	return s.items[i], true
}

func (s *Store) delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.find(id)
	if !ok {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

type session struct {
	store *Store
}

func (s *session) Insert(_ context.Context, in core.ItemInput) (core.BudgetItem, error) {
	return s.store.insert(in), nil
}

func (s *session) List(_ context.Context, skip, limit int) ([]core.BudgetItem, error) {
	return s.store.list(skip, limit), nil
}

func (s *session) Get(_ context.Context, id int64) (core.BudgetItem, error) {
	item, ok := s.store.get(id)
	if !ok {
		return core.BudgetItem{}, core.ErrItemNotFound
	}
	return item, nil
}

func (s *session) Delete(_ context.Context, id int64) error {
	if !s.store.delete(id) {
		return core.ErrItemNotFound
	}
	return nil
}

func (s *session) Close() error {
	return nil
}
