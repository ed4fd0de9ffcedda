package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meltforce/repstack/internal/models"
)

func snapshotFixture() ([]snapshotGroup, []snapshotItem) {
	gA := snapshotGroup{ID: uuid.New(), Name: "A", Kind: models.KindSingle, RestSeconds: 90, Position: "F"}
	gB := snapshotGroup{ID: uuid.New(), Name: "B", Kind: models.KindPaired, RestSeconds: 60, Position: "V"}

	override := 45
	items := []snapshotItem{
		{GroupID: gA.ID, ExerciseID: uuid.New(), ExerciseName: "Bench Press",
			Position: "F", FlatPosition: "F.F", TargetSets: 3, TargetReps: 8, TargetWeightKg: 80},
		{GroupID: gA.ID, ExerciseID: uuid.New(), ExerciseName: "Incline Press",
			Position: "V", FlatPosition: "F.V", TargetSets: 3, TargetReps: 10, TargetWeightKg: 60,
			RestSecondsOverride: &override},
		{GroupID: gB.ID, ExerciseID: uuid.New(), ExerciseName: "Row",
			Position: "F", FlatPosition: "V.F", TargetSets: 4, TargetReps: 12, TargetWeightKg: 50},
	}
	return []snapshotGroup{gA, gB}, items
}

// TestPlanSnapshotRemapsGroupIDs verifies every copied row gets a fresh id
// and items point at their group's new id, never a template id.
func TestPlanSnapshotRemapsGroupIDs(t *testing.T) {
	sessionID := uuid.New()
	groups, items := snapshotFixture()

	sg, si := planSnapshot(sessionID, groups, items)
	if len(sg) != 2 || len(si) != 3 {
		t.Fatalf("got %d groups, %d items, want 2 and 3", len(sg), len(si))
	}

	templateIDs := map[uuid.UUID]bool{groups[0].ID: true, groups[1].ID: true}
	newGroupIDs := map[uuid.UUID]bool{}
	for i, g := range sg {
		if templateIDs[g.ID] {
			t.Errorf("group %d reuses a template id", i)
		}
		if g.SessionID != sessionID {
			t.Errorf("group %d session id = %s, want %s", i, g.SessionID, sessionID)
		}
		newGroupIDs[g.ID] = true
	}

	// Items 0 and 1 belong to the first copied group, item 2 to the second.
	if si[0].SessionGroupID != sg[0].ID || si[1].SessionGroupID != sg[0].ID {
		t.Error("first group's items not remapped to its new id")
	}
	if si[2].SessionGroupID != sg[1].ID {
		t.Error("second group's item not remapped to its new id")
	}
	for i, it := range si {
		if !newGroupIDs[it.SessionGroupID] {
			t.Errorf("item %d points outside the copied groups", i)
		}
	}
}

// TestPlanSnapshotTwiceIndependent verifies that copying the same template
// twice yields structurally identical trees with disjoint id sets, so edits
// to one instance can never touch the other.
func TestPlanSnapshotTwiceIndependent(t *testing.T) {
	groups, items := snapshotFixture()

	g1, i1 := planSnapshot(uuid.New(), groups, items)
	g2, i2 := planSnapshot(uuid.New(), groups, items)

	if len(g1) != len(g2) || len(i1) != len(i2) {
		t.Fatalf("copies differ in shape: %d/%d groups, %d/%d items",
			len(g1), len(g2), len(i1), len(i2))
	}
	for k := range g1 {
		if g1[k].Name != g2[k].Name || g1[k].Kind != g2[k].Kind ||
			g1[k].RestSeconds != g2[k].RestSeconds || g1[k].Position != g2[k].Position {
			t.Errorf("group %d structurally differs between copies", k)
		}
		if g1[k].ID == g2[k].ID {
			t.Errorf("group %d shares an id between copies", k)
		}
	}
	for k := range i1 {
		if i1[k].ExerciseName != i2[k].ExerciseName || i1[k].FlatPosition != i2[k].FlatPosition ||
			i1[k].TargetSets != i2[k].TargetSets || i1[k].RestSeconds != i2[k].RestSeconds {
			t.Errorf("item %d structurally differs between copies", k)
		}
		if i1[k].ID == i2[k].ID {
			t.Errorf("item %d shares an id between copies", k)
		}
	}
}

// TestPlanSnapshotResolvesRestAndName verifies effective rest is collapsed
// (override wins, group default otherwise) and the exercise name rides on
// the copied item.
func TestPlanSnapshotResolvesRestAndName(t *testing.T) {
	groups, items := snapshotFixture()
	_, si := planSnapshot(uuid.New(), groups, items)

	if si[0].RestSeconds != 90 {
		t.Errorf("item without override: rest = %d, want group default 90", si[0].RestSeconds)
	}
	if si[1].RestSeconds != 45 {
		t.Errorf("item with override: rest = %d, want 45", si[1].RestSeconds)
	}
	if si[2].RestSeconds != 60 {
		t.Errorf("item in second group: rest = %d, want 60", si[2].RestSeconds)
	}
	if si[0].ExerciseName != "Bench Press" {
		t.Errorf("exercise name = %q, want %q", si[0].ExerciseName, "Bench Press")
	}
}

// TestPlanSnapshotPreservesOrder verifies rows come out in input order, so
// the flat-key ordering of the read carries through to the inserts.
func TestPlanSnapshotPreservesOrder(t *testing.T) {
	groups, items := snapshotFixture()
	sg, si := planSnapshot(uuid.New(), groups, items)

	if sg[0].Name != "A" || sg[1].Name != "B" {
		t.Errorf("group order = [%s %s], want [A B]", sg[0].Name, sg[1].Name)
	}
	for k := 1; k < len(si); k++ {
		if si[k-1].FlatPosition >= si[k].FlatPosition {
			t.Errorf("items out of flat order: %q then %q", si[k-1].FlatPosition, si[k].FlatPosition)
		}
	}
}

// TestSnapshotWriteErr verifies that a template deleted while the copy is in
// flight maps to ErrSourceNotFound: under repeatable read the delete shows
// up as a foreign-key violation or serialization failure on our writes, and
// callers must see the same typed error as when the template was already
// gone at the first read.
func TestSnapshotWriteErr(t *testing.T) {
	templateID := uuid.New()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"fk violation", &pgconn.PgError{Code: "23503"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"wrapped fk violation", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23503"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := snapshotWriteErr(tt.err, templateID)
			if errors.Is(got, ErrSourceNotFound) != tt.want {
				t.Errorf("snapshotWriteErr(%v): ErrSourceNotFound = %v, want %v",
					tt.err, !tt.want, tt.want)
			}
			if !tt.want && !errors.Is(got, tt.err) && got.Error() != tt.err.Error() {
				t.Errorf("non-matching error was rewritten: %v", got)
			}
		})
	}
}
