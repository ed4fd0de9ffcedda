package client

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/meltforce/repstack/internal/models"
	"github.com/meltforce/repstack/internal/ordering"
)

// ErrUnknownNode means a prediction referenced a node the cached tree does
// not contain; the caller should refetch instead of predicting.
var ErrUnknownNode = errors.New("node not in cached tree")

// predictGroupMove returns a copy of tree with one group repositioned before
// beforeID (nil means to the end), using the same midpoint allocation the
// server uses so the predicted positions sort identically. If allocation
// runs out of precision the server will compact, which the client cannot
// predict; the moved group then keeps its old key and only the slice order
// is predicted, to be corrected by the settle read.
func predictGroupMove(tree *models.TemplateTree, groupID uuid.UUID, beforeID *uuid.UUID) (*models.TemplateTree, error) {
	out := cloneTree(tree)

	from := -1
	for i := range out.Groups {
		if out.Groups[i].ID == groupID {
			from = i
			break
		}
	}
	if from < 0 {
		return nil, fmt.Errorf("group %s: %w", groupID, ErrUnknownNode)
	}
	if beforeID != nil && *beforeID == groupID {
		return nil, fmt.Errorf("group %s relative to itself: %w", groupID, ErrUnknownNode)
	}

	moved := out.Groups[from]
	rest := append(out.Groups[:from:from], out.Groups[from+1:]...)

	to := len(rest)
	if beforeID != nil {
		to = -1
		for i := range rest {
			if rest[i].ID == *beforeID {
				to = i
				break
			}
		}
		if to < 0 {
			return nil, fmt.Errorf("before-group %s: %w", *beforeID, ErrUnknownNode)
		}
	}

	var prevKey, nextKey string
	if to > 0 {
		prevKey = rest[to-1].Position
	}
	if to < len(rest) {
		nextKey = rest[to].Position
	}
	if key, err := ordering.Between(prevKey, nextKey); err == nil {
		moved.Position = key
	}

	out.Groups = append(rest[:to:to], append([]models.TreeGroup{moved}, rest[to:]...)...)
	return out, nil
}

// predictItemMove returns a copy of tree with one item repositioned inside
// targetGroupID before beforeItemID (nil means to the end of that group).
func predictItemMove(tree *models.TemplateTree, itemID, targetGroupID uuid.UUID, beforeItemID *uuid.UUID) (*models.TemplateTree, error) {
	out := cloneTree(tree)

	fromGroup, fromIdx := -1, -1
	toGroup := -1
	for gi := range out.Groups {
		if out.Groups[gi].ID == targetGroupID {
			toGroup = gi
		}
		for ii := range out.Groups[gi].Items {
			if out.Groups[gi].Items[ii].ID == itemID {
				fromGroup, fromIdx = gi, ii
			}
		}
	}
	if fromGroup < 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrUnknownNode)
	}
	if toGroup < 0 {
		return nil, fmt.Errorf("target group %s: %w", targetGroupID, ErrUnknownNode)
	}
	if beforeItemID != nil && *beforeItemID == itemID {
		return nil, fmt.Errorf("item %s relative to itself: %w", itemID, ErrUnknownNode)
	}

	moved := out.Groups[fromGroup].Items[fromIdx]
	src := out.Groups[fromGroup].Items
	out.Groups[fromGroup].Items = append(src[:fromIdx:fromIdx], src[fromIdx+1:]...)

	dst := out.Groups[toGroup].Items
	to := len(dst)
	if beforeItemID != nil {
		to = -1
		for i := range dst {
			if dst[i].ID == *beforeItemID {
				to = i
				break
			}
		}
		if to < 0 {
			return nil, fmt.Errorf("before-item %s: %w", *beforeItemID, ErrUnknownNode)
		}
	}

	var prevKey, nextKey string
	if to > 0 {
		prevKey = dst[to-1].Position
	}
	if to < len(dst) {
		nextKey = dst[to].Position
	}
	if key, err := ordering.Between(prevKey, nextKey); err == nil {
		moved.Position = key
	}

	out.Groups[toGroup].Items = append(dst[:to:to], append([]models.TreeItem{moved}, dst[to:]...)...)
	return out, nil
}

// cloneTree deep-copies a tree so predictions and rollback points never
// alias live cache state.
func cloneTree(tree *models.TemplateTree) *models.TemplateTree {
	if tree == nil {
		return nil
	}
	out := &models.TemplateTree{ID: tree.ID, Name: tree.Name}
	out.Groups = make([]models.TreeGroup, len(tree.Groups))
	for i, g := range tree.Groups {
		cg := g
		cg.Items = make([]models.TreeItem, len(g.Items))
		copy(cg.Items, g.Items)
		out.Groups[i] = cg
	}
	return out
}
