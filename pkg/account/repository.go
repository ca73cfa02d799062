package account

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/tendant/simple-sso/pkg/realm"
)

var (
	// ErrNotFound is returned when no account is linked to an external id.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned when inserting an account whose realm and
	// external id are already linked.
	ErrDuplicate = errors.New("account already exists")
)

// Repository persists accounts.
type Repository interface {
	FindByExternalID(ctx context.Context, r realm.Realm, externalID string) (*Account, error)
	Insert(ctx context.Context, a *Account) error
	Update(ctx context.Context, a *Account) error
}

type externalKey struct {
	realm      realm.Realm
	externalID string
}

// InMemoryRepository implements Repository in memory
type InMemoryRepository struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*Account
	byExternal map[externalKey]uuid.UUID
}

// NewInMemoryRepository creates a new in-memory account repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:       make(map[uuid.UUID]*Account),
		byExternal: make(map[externalKey]uuid.UUID),
	}
}

func (r *InMemoryRepository) FindByExternalID(_ context.Context, rl realm.Realm, externalID string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byExternal[externalKey{rl, externalID}]
	if !ok {
		return nil, ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *InMemoryRepository) Insert(_ context.Context, a *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := externalKey{a.Realm, a.ExternalID}
	if _, exists := r.byExternal[key]; exists {
		return ErrDuplicate
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.byID[a.ID] = a.Clone()
	r.byExternal[key] = a.ID
	return nil
}

func (r *InMemoryRepository) Update(_ context.Context, a *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[a.ID]; !ok {
		return ErrNotFound
	}
	r.byID[a.ID] = a.Clone()
	return nil
}

// All returns copies of every stored account.
func (r *InMemoryRepository) All() []*Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Account, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a.Clone())
	}
	return out
}
