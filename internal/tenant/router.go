// Package tenant maps a tenant identifier to its session state: DB pool,
// cache prefix, KeyManagement client, worker pool, and hash key, and routes
// each request to either its tenant-local store or the shared global one.
package tenant

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cripta/envelopesvc/internal/custodian"
	"github.com/cripta/envelopesvc/internal/database"
	"github.com/cripta/envelopesvc/internal/dekcache"
	"github.com/cripta/envelopesvc/internal/envelope/domain"
	"github.com/cripta/envelopesvc/internal/envelope/repository"
	"github.com/cripta/envelopesvc/internal/keymanagement"
)

// ID is a tenant identifier as carried in the x-tenant-id header.
type ID string

// State is the shared, immutable-after-boot session state for one tenant.
// Requests borrow a reference; State itself owns pools, caches and backend
// clients and is safe for concurrent use.
type State struct {
	KeyManager  keymanagement.Backend
	HashContext custodian.TenantHashContext
	DekRepo     repository.DekRepository
	// TxMgr opens transactions on the database backing DekRepo, for writes
	// that must see their own reads (rotate's read-latest-then-insert).
	TxMgr      database.TxManager
	Cache      *dekcache.Cache
	WorkerPool int
}

// NewWorkerGroup returns a context-scoped errgroup bounded at the tenant's
// configured worker pool size, for CPU-bound AEAD fan-out. A size of 0
// leaves the group unbounded (errgroup.SetLimit is skipped), which is fine
// for the global tenant where batch traffic is rare.
func (s *State) NewWorkerGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if s.WorkerPool > 0 {
		g.SetLimit(s.WorkerPool)
	}
	return g, gctx
}

// Router holds every configured tenant plus the distinguished global tenant
// that User/UserAuth identifiers route to.
type Router struct {
	mu      sync.RWMutex
	tenants map[ID]*State
	global  *State
}

// NewRouter builds a Router. global must not be nil.
func NewRouter(global *State) *Router {
	return &Router{tenants: make(map[ID]*State), global: global}
}

// Register adds or replaces a tenant's State. Intended for use only during
// boot; Router is read-only once request serving begins.
func (r *Router) Register(id ID, state *State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[id] = state
}

// Lookup resolves a tenant header value to its State. An empty id yields
// domain.ErrTenantIDNotFound; an unregistered id yields
// domain.ErrInvalidTenantID.
func (r *Router) Lookup(id ID) (*State, error) {
	if id == "" {
		return nil, domain.ErrTenantIDNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.tenants[id]
	if !ok {
		return nil, domain.ErrInvalidTenantID
	}
	return state, nil
}

// StateFor selects the global State for identifiers whose kind is global
// (User, UserAuth) and the tenant's own State otherwise.
func (r *Router) StateFor(tenantState *State, kind domain.IdentifierKind) *State {
	if kind.IsGlobal() {
		return r.global
	}
	return tenantState
}

// Global returns the distinguished global tenant state.
func (r *Router) Global() *State {
	return r.global
}
