package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/meltforce/repstack/internal/models"
)

// fakeAPI serves trees from memory and lets tests fail writes or stall reads.
type fakeAPI struct {
	mu       sync.Mutex
	trees    map[uuid.UUID]*models.TemplateTree
	moveErr  error
	getCalls int

	// releaseGet, when set, blocks GetTemplateTree until the channel
	// closes; getEntered receives once per blocked call.
	releaseGet chan struct{}
	getEntered chan struct{}
}

func newFakeAPI(trees ...*models.TemplateTree) *fakeAPI {
	f := &fakeAPI{trees: make(map[uuid.UUID]*models.TemplateTree)}
	for _, tr := range trees {
		f.trees[tr.ID] = tr
	}
	return f
}

func (f *fakeAPI) GetTemplateTree(ctx context.Context, id uuid.UUID) (*models.TemplateTree, error) {
	f.mu.Lock()
	release, entered := f.releaseGet, f.getEntered
	f.getCalls++
	tree, ok := f.trees[id]
	f.mu.Unlock()

	if release != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTree(tree), nil
}

func (f *fakeAPI) MoveGroup(ctx context.Context, groupID uuid.UUID, beforeGroupID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	for _, tree := range f.trees {
		if moved, err := predictGroupMove(tree, groupID, beforeGroupID); err == nil {
			f.trees[tree.ID] = moved
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeAPI) MoveItem(ctx context.Context, itemID, targetGroupID uuid.UUID, beforeItemID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	for _, tree := range f.trees {
		if moved, err := predictItemMove(tree, itemID, targetGroupID, beforeItemID); err == nil {
			f.trees[tree.ID] = moved
			return nil
		}
	}
	return ErrNotFound
}

func cachedNames(t *testing.T, c *TreeCache, treeID uuid.UUID) []string {
	t.Helper()
	tree, err := c.Get(context.Background(), treeID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return groupNames(tree)
}

func assertOrder(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

// TestMoveGroupCommits verifies the happy path: the prediction is applied,
// the write succeeds, and the settle read leaves the server's order in place.
func TestMoveGroupCommits(t *testing.T) {
	tree := testTree()
	api := newFakeAPI(tree)
	cache := NewTreeCache(api)

	b := tree.Groups[1].ID
	if err := cache.MoveGroup(context.Background(), tree.ID, b, nil); err != nil {
		t.Fatalf("MoveGroup: %v", err)
	}
	assertOrder(t, cachedNames(t, cache, tree.ID), []string{"A", "C", "B"})
}

// TestMoveGroupRollsBack verifies a rejected write restores the pre-move
// order exactly: [A, B, C] moved to [A, C, B] must come back as [A, B, C].
func TestMoveGroupRollsBack(t *testing.T) {
	tree := testTree()
	api := newFakeAPI(tree)
	api.moveErr = ErrConflict
	cache := NewTreeCache(api)

	// Warm the cache so there is real state to roll back to.
	if _, err := cache.Get(context.Background(), tree.ID); err != nil {
		t.Fatalf("warm Get: %v", err)
	}

	err := cache.MoveGroup(context.Background(), tree.ID, tree.Groups[1].ID, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("MoveGroup err = %v, want ErrConflict", err)
	}
	assertOrder(t, cachedNames(t, cache, tree.ID), []string{"A", "B", "C"})
}

// TestMutationStateSequence verifies the full transition order for a commit
// and for a rollback.
func TestMutationStateSequence(t *testing.T) {
	tests := []struct {
		name    string
		moveErr error
		want    []MutationState
	}{
		{
			name: "commit",
			want: []MutationState{StatePredicting, StateInFlight, StateCommitted, StateSettling, StateIdle},
		},
		{
			name:    "rollback",
			moveErr: ErrConflict,
			want:    []MutationState{StatePredicting, StateInFlight, StateRolledBack, StateSettling, StateIdle},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := testTree()
			api := newFakeAPI(tree)
			api.moveErr = tt.moveErr
			cache := NewTreeCache(api)

			var seen []MutationState
			cache.OnStateChange = func(_ uuid.UUID, s MutationState) {
				seen = append(seen, s)
			}

			err := cache.MoveGroup(context.Background(), tree.ID, tree.Groups[0].ID, nil)
			if tt.moveErr == nil && err != nil {
				t.Fatalf("MoveGroup: %v", err)
			}
			if tt.moveErr != nil && !errors.Is(err, tt.moveErr) {
				t.Fatalf("MoveGroup err = %v, want %v", err, tt.moveErr)
			}

			if len(seen) != len(tt.want) {
				t.Fatalf("states = %v, want %v", seen, tt.want)
			}
			for i := range tt.want {
				if seen[i] != tt.want[i] {
					t.Fatalf("states = %v, want %v", seen, tt.want)
				}
			}
		})
	}
}

// TestStaleReadDoesNotClobberPrediction verifies that a read dispatched
// before a prediction cannot overwrite the predicted value when it returns
// late.
func TestStaleReadDoesNotClobberPrediction(t *testing.T) {
	tree := testTree()
	api := newFakeAPI(tree)
	cache := NewTreeCache(api)

	// Dispatch a read that will stall until we release it.
	release := make(chan struct{})
	entered := make(chan struct{})
	api.mu.Lock()
	api.releaseGet = release
	api.getEntered = entered
	api.mu.Unlock()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_, _ = cache.Get(context.Background(), tree.ID)
	}()
	<-entered

	// The read is now stalled; run a full mutation. Later reads (the base
	// fetch and the settle read) must not stall, so stop blocking new calls
	// before the mutation fires.
	api.mu.Lock()
	api.releaseGet = nil
	api.getEntered = nil
	api.mu.Unlock()

	if err := cache.MoveGroup(context.Background(), tree.ID, tree.Groups[1].ID, nil); err != nil {
		t.Fatalf("MoveGroup: %v", err)
	}

	// Now let the stale read complete; its install must be discarded.
	close(release)
	<-readDone

	assertOrder(t, cachedNames(t, cache, tree.ID), []string{"A", "C", "B"})
}

// TestMutationsOnDistinctTreesAreIndependent verifies a mutation on one tree
// never disturbs another tree's cached value.
func TestMutationsOnDistinctTreesAreIndependent(t *testing.T) {
	tree1 := testTree()
	tree2 := testTree()
	api := newFakeAPI(tree1, tree2)
	cache := NewTreeCache(api)

	if _, err := cache.Get(context.Background(), tree2.ID); err != nil {
		t.Fatalf("warm Get: %v", err)
	}
	if err := cache.MoveGroup(context.Background(), tree1.ID, tree1.Groups[0].ID, nil); err != nil {
		t.Fatalf("MoveGroup: %v", err)
	}

	assertOrder(t, cachedNames(t, cache, tree1.ID), []string{"B", "C", "A"})
	assertOrder(t, cachedNames(t, cache, tree2.ID), []string{"A", "B", "C"})
}

// TestMoveThereAndBackRestoresOrder verifies moving a group to the end and
// then back before its old next sibling restores the original relative order.
func TestMoveThereAndBackRestoresOrder(t *testing.T) {
	tree := testTree()
	api := newFakeAPI(tree)
	cache := NewTreeCache(api)

	b, c := tree.Groups[1].ID, tree.Groups[2].ID
	ctx := context.Background()
	if err := cache.MoveGroup(ctx, tree.ID, b, nil); err != nil {
		t.Fatalf("move to end: %v", err)
	}
	if err := cache.MoveGroup(ctx, tree.ID, b, &c); err != nil {
		t.Fatalf("move back: %v", err)
	}
	assertOrder(t, cachedNames(t, cache, tree.ID), []string{"A", "B", "C"})
}

// TestInvalidateForcesRefetch verifies Invalidate drops the cached value.
func TestInvalidateForcesRefetch(t *testing.T) {
	tree := testTree()
	api := newFakeAPI(tree)
	cache := NewTreeCache(api)

	ctx := context.Background()
	if _, err := cache.Get(ctx, tree.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	before := api.getCalls
	if _, err := cache.Get(ctx, tree.ID); err != nil {
		t.Fatalf("cached Get: %v", err)
	}
	if api.getCalls != before {
		t.Fatalf("cached Get hit the server: %d calls, want %d", api.getCalls, before)
	}

	cache.Invalidate(tree.ID)
	if _, err := cache.Get(ctx, tree.ID); err != nil {
		t.Fatalf("Get after Invalidate: %v", err)
	}
	if api.getCalls != before+1 {
		t.Fatalf("Get after Invalidate made %d calls, want %d", api.getCalls, before+1)
	}
}
