// Package memstore keeps contacts in process memory. It backs the tests and the "memory" store
// driver for local runs.
package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"gitlab.com/dirk.krummacker/identity-service/internal/apperror"
	"gitlab.com/dirk.krummacker/identity-service/internal/model"
	"gitlab.com/dirk.krummacker/identity-service/internal/reconcile"
)

// InMemoryStore implements reconcile.ContactStore and reconcile.Transactor.
type InMemoryStore struct {
	txMu     sync.Mutex
	mu       sync.RWMutex
	contacts map[int64]model.Contact
	lastId   int64
	clock    func() time.Time
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithClock sets the time source for created/updated timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		contacts: make(map[int64]model.Contact),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// byPrecedence orders primaries before secondaries, then by seniority.
func byPrecedence(a, b model.Contact) int {
	if a.LinkPrecedence != b.LinkPrecedence {
		return cmp.Compare(a.LinkPrecedence, b.LinkPrecedence)
	}
	return bySeniority(a, b)
}

func bySeniority(a, b model.Contact) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Id, b.Id)
}

// first returns the best match by precedence among the live contacts satisfying keep.
func (s *InMemoryStore) first(keep func(model.Contact) bool) *model.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *model.Contact
	for _, c := range s.contacts {
		if c.DeletedAt != nil || !keep(c) {
			continue
		}
		if found == nil || byPrecedence(c, *found) < 0 {
			c := c
			found = &c
		}
	}
	return found
}

func equals(v *string, want string) bool {
	return v != nil && *v == want
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*model.Contact, error) {
	return s.first(func(c model.Contact) bool { return equals(c.Email, email) }), nil
}

func (s *InMemoryStore) FindByPhone(_ context.Context, phone string) (*model.Contact, error) {
	return s.first(func(c model.Contact) bool { return equals(c.Phone, phone) }), nil
}

func (s *InMemoryStore) FindExact(_ context.Context, email, phone string) (*model.Contact, error) {
	return s.first(func(c model.Contact) bool { return equals(c.Email, email) && equals(c.Phone, phone) }), nil
}

func (s *InMemoryStore) insert(email, phone *string, precedence model.LinkPrecedence, linkedId *int64) model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastId++
	now := s.clock()
	c := model.Contact{
		Id:             s.lastId,
		Email:          clone(email),
		Phone:          clone(phone),
		LinkedId:       clone(linkedId),
		LinkPrecedence: precedence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.contacts[c.Id] = c
	return c
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (s *InMemoryStore) InsertPrimary(_ context.Context, email, phone *string) (model.Contact, error) {
	return s.insert(email, phone, model.Primary, nil), nil
}

func (s *InMemoryStore) InsertSecondary(_ context.Context, email, phone *string, linkedId int64) (model.Contact, error) {
	return s.insert(email, phone, model.Secondary, &linkedId), nil
}

func (s *InMemoryStore) FetchByID(_ context.Context, id int64) (model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.contacts[id]; ok && c.DeletedAt == nil {
		return c, nil
	}
	return model.Contact{}, apperror.NotFound("contact %d not found", id)
}

func (s *InMemoryStore) ListSecondariesOf(_ context.Context, primaryId int64) ([]model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Contact
	for _, c := range s.contacts {
		if c.DeletedAt == nil && c.LinkedId != nil && *c.LinkedId == primaryId {
			result = append(result, c)
		}
	}
	slices.SortFunc(result, bySeniority)
	return result, nil
}

func (s *InMemoryStore) DemoteToSecondary(_ context.Context, id, newPrimaryId int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[id]
	if !ok {
		return apperror.NotFound("contact %d not found", id)
	}
	c.LinkPrecedence = model.Secondary
	c.LinkedId = &newPrimaryId
	c.UpdatedAt = s.clock()
	s.contacts[id] = c
	return nil
}

func (s *InMemoryStore) RepointSecondaries(_ context.Context, oldPrimaryId, newPrimaryId int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	for id, c := range s.contacts {
		if c.LinkedId != nil && *c.LinkedId == oldPrimaryId {
			linked := newPrimaryId
			c.LinkedId = &linked
			c.UpdatedAt = now
			s.contacts[id] = c
		}
	}
	return nil
}

// InTx runs fn against the store and restores the previous contents if fn fails. Transactions
// are serialized against each other; writes outside a transaction are not blocked.
func (s *InMemoryStore) InTx(_ context.Context, fn func(reconcile.ContactStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := maps.Clone(s.contacts)
	lastId := s.lastId
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.contacts = snapshot
		s.lastId = lastId
		s.mu.Unlock()
		return err
	}
	return nil
}

// Contacts returns every stored contact ordered by id.
func (s *InMemoryStore) Contacts() []model.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Collect(maps.Values(s.contacts))
	slices.SortFunc(result, func(a, b model.Contact) int { return cmp.Compare(a.Id, b.Id) })
	return result
}

// Put stores c as is. It allows tests to seed contacts with chosen ids and timestamps.
func (s *InMemoryStore) Put(c model.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.Id] = c
	s.lastId = max(s.lastId, c.Id)
}
