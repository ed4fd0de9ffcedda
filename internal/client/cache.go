package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/meltforce/repstack/internal/models"
)

// API is the server surface the optimistic cache needs. *HTTPClient
// satisfies it; tests substitute a fake.
type API interface {
	GetTemplateTree(ctx context.Context, id uuid.UUID) (*models.TemplateTree, error)
	MoveGroup(ctx context.Context, groupID uuid.UUID, beforeGroupID *uuid.UUID) error
	MoveItem(ctx context.Context, itemID, targetGroupID uuid.UUID, beforeItemID *uuid.UUID) error
}

// Compile-time check: *HTTPClient satisfies API.
var _ API = (*HTTPClient)(nil)

// MutationState is the lifecycle of one pending mutation against a cached
// tree.
type MutationState int

const (
	StateIdle MutationState = iota
	StatePredicting
	StateInFlight
	StateCommitted
	StateRolledBack
	StateSettling
)

// String implements fmt.Stringer for logging and tests.
func (s MutationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePredicting:
		return "predicting"
	case StateInFlight:
		return "in-flight"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	case StateSettling:
		return "settling"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// TreeCache keeps one cached TemplateTree per template and applies the
// predicted effect of a mutation before the server confirms it.
//
// Per mutation the cache walks Idle -> Predicting -> InFlight ->
// {Committed | RolledBack} -> Settling -> Idle. The prediction is installed
// immediately and a rollback point retained; a failed write restores the
// rollback point verbatim and surfaces the error. Either way a final
// authoritative read settles any drift the client could not predict (a
// server-side compaction, most notably). Reads in flight when a prediction
// lands are cancelled advisorily: their results are discarded rather than
// allowed to clobber the prediction with stale data.
//
// Mutations on distinct trees proceed independently; mutations on the same
// tree serialize on the entry lock.
type TreeCache struct {
	api API

	mu      sync.Mutex
	entries map[uuid.UUID]*cacheEntry

	// OnStateChange, when set, observes every state transition. Used by
	// tests; callers may use it for instrumentation.
	OnStateChange func(treeID uuid.UUID, state MutationState)
}

type cacheEntry struct {
	mu   sync.Mutex // serializes mutations on one tree
	tree *models.TemplateTree
	gen  uint64 // bumped whenever a prediction supersedes in-flight reads
}

// NewTreeCache creates a TreeCache backed by api.
func NewTreeCache(api API) *TreeCache {
	return &TreeCache{api: api, entries: make(map[uuid.UUID]*cacheEntry)}
}

func (c *TreeCache) entry(treeID uuid.UUID) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[treeID]
	if !ok {
		e = &cacheEntry{}
		c.entries[treeID] = e
	}
	return e
}

func (c *TreeCache) setState(treeID uuid.UUID, s MutationState) {
	if c.OnStateChange != nil {
		c.OnStateChange(treeID, s)
	}
}

// Get returns the cached tree, fetching it on a miss. A fetch that was in
// flight when a newer prediction landed is discarded: the caller still gets
// the fetched value, but the cache keeps the prediction.
func (c *TreeCache) Get(ctx context.Context, treeID uuid.UUID) (*models.TemplateTree, error) {
	e := c.entry(treeID)

	c.mu.Lock()
	if e.tree != nil {
		cached := cloneTree(e.tree)
		c.mu.Unlock()
		return cached, nil
	}
	genAtDispatch := e.gen
	c.mu.Unlock()

	tree, err := c.api.GetTemplateTree(ctx, treeID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e.gen == genAtDispatch {
		e.tree = cloneTree(tree)
	}
	c.mu.Unlock()
	return tree, nil
}

// Invalidate drops the cached value for one tree.
func (c *TreeCache) Invalidate(treeID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[treeID]; ok {
		e.tree = nil
		e.gen++
	}
}

// MoveGroup optimistically applies a group move, dispatches the
// authoritative write, and reconciles.
func (c *TreeCache) MoveGroup(ctx context.Context, treeID, groupID uuid.UUID, beforeGroupID *uuid.UUID) error {
	return c.mutate(ctx, treeID,
		func(tree *models.TemplateTree) (*models.TemplateTree, error) {
			return predictGroupMove(tree, groupID, beforeGroupID)
		},
		func(ctx context.Context) error {
			return c.api.MoveGroup(ctx, groupID, beforeGroupID)
		})
}

// MoveItem optimistically applies an item move, dispatches the
// authoritative write, and reconciles.
func (c *TreeCache) MoveItem(ctx context.Context, treeID, itemID, targetGroupID uuid.UUID, beforeItemID *uuid.UUID) error {
	return c.mutate(ctx, treeID,
		func(tree *models.TemplateTree) (*models.TemplateTree, error) {
			return predictItemMove(tree, itemID, targetGroupID, beforeItemID)
		},
		func(ctx context.Context) error {
			return c.api.MoveItem(ctx, itemID, targetGroupID, beforeItemID)
		})
}

// mutate runs the predict/commit-or-rollback/settle machine for one
// mutation.
func (c *TreeCache) mutate(ctx context.Context, treeID uuid.UUID, predict func(*models.TemplateTree) (*models.TemplateTree, error), write func(context.Context) error) error {
	e := c.entry(treeID)
	e.mu.Lock()
	defer e.mu.Unlock()

	// A prediction needs a base value; fetch one on a cold cache.
	c.mu.Lock()
	base := e.tree
	c.mu.Unlock()
	if base == nil {
		fetched, err := c.api.GetTemplateTree(ctx, treeID)
		if err != nil {
			return fmt.Errorf("cache: base read: %w", err)
		}
		base = fetched
	}

	c.setState(treeID, StatePredicting)
	rollback := cloneTree(base)
	predicted, err := predict(base)
	if err != nil {
		c.setState(treeID, StateIdle)
		return fmt.Errorf("cache: predict: %w", err)
	}

	// Install the prediction and cancel in-flight reads of this entry.
	c.mu.Lock()
	e.tree = predicted
	e.gen++
	c.mu.Unlock()

	c.setState(treeID, StateInFlight)
	writeErr := write(ctx)

	if writeErr == nil {
		// Prediction stands as-is; no flicker.
		c.setState(treeID, StateCommitted)
	} else {
		c.setState(treeID, StateRolledBack)
		c.mu.Lock()
		e.tree = rollback
		e.gen++
		c.mu.Unlock()
	}

	// Settle: one authoritative read supersedes both the prediction and
	// the rollback value (the server may have compacted keys).
	c.setState(treeID, StateSettling)
	if fresh, err := c.api.GetTemplateTree(ctx, treeID); err == nil {
		c.mu.Lock()
		e.tree = cloneTree(fresh)
		e.gen++
		c.mu.Unlock()
	}
	c.setState(treeID, StateIdle)

	if writeErr != nil {
		return fmt.Errorf("cache: move rejected: %w", writeErr)
	}
	return nil
}
