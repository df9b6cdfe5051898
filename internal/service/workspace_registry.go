package service

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synergyaccounting/synergy-web/internal/observability/metrics"
)

// Registry defaults.
const (
	DefaultWorkspaceCapacity = 10000
	DefaultWorkspaceIdleTTL  = 30 * time.Minute
)

// Eviction reasons used for metrics and logs.
const (
	EvictIdle     = "idle"
	EvictCapacity = "capacity"
	EvictRemoved  = "removed"
	EvictShutdown = "shutdown"
)

// WorkspaceFactory builds the Workspace for a visitor id.
type WorkspaceFactory func(ctx context.Context, id string) (*Workspace, error)

// WorkspaceRegistryConfig groups constructor options.
type WorkspaceRegistryConfig struct {
	Capacity int
	IdleTTL  time.Duration
	Factory  WorkspaceFactory
	Now      func() time.Time
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// WorkspaceRegistry holds live Workspaces in an LRU bounded by capacity and
// idle time. Evicting a Workspace closes it.
// Concurrency: methods are safe for concurrent use.
type WorkspaceRegistry struct {
	mu      sync.Mutex
	cap     int
	idleTTL time.Duration
	ll      *list.List               // front = most-recently used
	items   map[string]*list.Element // id -> element
	factory WorkspaceFactory
	now     func() time.Time
	metrics *metrics.Recorder
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

type registryEntry struct {
	id       string
	ws       *Workspace
	lastSeen time.Time
}

// ErrRegistryClosed is returned after Close.
var ErrRegistryClosed = errors.New("workspace registry closed")

// NewWorkspaceRegistry creates a registry. Workspaces are children of parent.
func NewWorkspaceRegistry(parent context.Context, cfg WorkspaceRegistryConfig) (*WorkspaceRegistry, error) {
	if cfg.Factory == nil {
		return nil, errors.New("workspace factory is required")
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultWorkspaceCapacity
	}
	idle := cfg.IdleTTL
	if idle <= 0 {
		idle = DefaultWorkspaceIdleTTL
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &WorkspaceRegistry{
		cap:     capacity,
		idleTTL: idle,
		ll:      list.New(),
		items:   make(map[string]*list.Element),
		factory: cfg.Factory,
		now:     nowFn,
		metrics: cfg.Metrics,
		logger:  logger.With("component", "workspace_registry"),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// NewVisitorID returns a fresh random visitor id.
func NewVisitorID() string { return uuid.NewString() }

// ValidVisitorID reports whether id looks like an id issued by NewVisitorID.
func ValidVisitorID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.Version() == 4
}

// Get returns the live Workspace for id and marks it used.
func (r *WorkspaceRegistry) Get(id string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.items[id]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*registryEntry)
	if r.isIdle(ent) {
		r.removeElement(el, EvictIdle)
		return nil, false
	}
	ent.lastSeen = r.now()
	r.ll.MoveToFront(el)
	return ent.ws, true
}

// GetOrCreate returns the Workspace for id, creating it when absent.
// An empty or malformed id is replaced with a fresh one; the returned
// Workspace's ID is authoritative. created reports whether a new Workspace was built.
func (r *WorkspaceRegistry) GetOrCreate(ctx context.Context, id string) (ws *Workspace, created bool, err error) {
	if ValidVisitorID(id) {
		if existing, ok := r.Get(id); ok {
			return existing, false, nil
		}
	} else {
		id = NewVisitorID()
	}

	// Build outside the lock; hydration may hit the durable store.
	built, err := r.factory(r.ctx, id)
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		built.Close()
		return nil, false, ErrRegistryClosed
	}
	// Another request may have created the same visitor meanwhile.
	if el, ok := r.items[id]; ok {
		built.Close()
		ent := el.Value.(*registryEntry)
		ent.lastSeen = r.now()
		r.ll.MoveToFront(el)
		return ent.ws, false, nil
	}

	el := r.ll.PushFront(&registryEntry{id: id, ws: built, lastSeen: r.now()})
	r.items[id] = el
	r.evictIfNeeded()
	r.metrics.WorkspacesActive(r.ll.Len())
	r.logger.DebugContext(ctx, "workspace created", "visitor", id)
	return built, true, nil
}

// Remove closes and drops the Workspace for id.
func (r *WorkspaceRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.items[id]; ok {
		r.removeElement(el, EvictRemoved)
		r.metrics.WorkspacesActive(r.ll.Len())
		return true
	}
	return false
}

// Sweep evicts every idle Workspace and returns how many were removed.
func (r *WorkspaceRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for el := r.ll.Back(); el != nil; {
		prev := el.Prev()
		if r.isIdle(el.Value.(*registryEntry)) {
			r.removeElement(el, EvictIdle)
			removed++
		}
		el = prev
	}
	if removed > 0 {
		r.metrics.WorkspacesActive(r.ll.Len())
	}
	return removed
}

// Run sweeps idle Workspaces every interval until ctx is done.
func (r *WorkspaceRegistry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.DebugContext(ctx, "evicted idle workspaces", "count", n)
			}
		}
	}
}

// Len returns the number of live Workspaces.
func (r *WorkspaceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ll.Len()
}

// Closed reports whether Close has been called.
func (r *WorkspaceRegistry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close closes every Workspace. Further GetOrCreate calls fail.
func (r *WorkspaceRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for el := r.ll.Front(); el != nil; {
		next := el.Next()
		r.removeElement(el, EvictShutdown)
		el = next
	}
	r.cancel()
	r.metrics.WorkspacesActive(0)
}

// Helpers (caller must hold r.mu).
func (r *WorkspaceRegistry) isIdle(e *registryEntry) bool {
	return r.now().Sub(e.lastSeen) > r.idleTTL
}

func (r *WorkspaceRegistry) removeElement(el *list.Element, reason string) {
	r.ll.Remove(el)
	ent := el.Value.(*registryEntry)
	delete(r.items, ent.id)
	ent.ws.Close()
	r.metrics.WorkspaceEvicted(reason)
}

func (r *WorkspaceRegistry) evictIfNeeded() {
	for r.ll.Len() > r.cap {
		el := r.ll.Back()
		if el == nil {
			return
		}
		r.removeElement(el, EvictCapacity)
	}
}
