// Package droptarget maps a drag gesture's pointer intersections to the
// container and index the dragged item would land in if released now.
package droptarget

import (
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

// RegionKind is the type of a rendered droppable region.
type RegionKind string

const (
	// RegionList is a whole list column, used when reordering lists.
	RegionList RegionKind = "list"
	// RegionCard is a single card; dropping inserts next to it.
	RegionCard RegionKind = "card"
	// RegionCardsContainer is a list body or empty-list placeholder;
	// dropping appends to the end.
	RegionCardsContainer RegionKind = "cards_container"
	// RegionIgnored never accepts drops (for example an "add card" button).
	RegionIgnored RegionKind = "ignored"
)

// specificity ranks region kinds; higher wins.
func (k RegionKind) specificity() int {
	switch k {
	case RegionCard:
		return 3
	case RegionCardsContainer:
		return 2
	case RegionList:
		return 1
	default:
		return 0
	}
}

// Region is one droppable area the pointer currently intersects.
type Region struct {
	Kind RegionKind
	// ID is the list id for list and cards-container regions and the card id
	// for card regions.
	ID uuid.UUID
	// Overlap is the share of the dragged element covering the region. It
	// breaks ties between regions of the same kind.
	Overlap float64
	// Below is set when the pointer is in the lower half of a card region.
	Below bool
}

// Target is a resolved destination. Index counts the destination's children
// with the dragged item excluded.
type Target struct {
	Parent domain.Ref
	Index  int
}

// Board is the read side of the board store the resolver needs.
type Board interface {
	Children(parent domain.Ref) ([]uuid.UUID, []float64, bool)
	ParentOf(item domain.Ref) (domain.Ref, bool)
}

// Resolver maps the regions under the pointer to a drop target.
type Resolver struct {
	board Board
}

// NewResolver creates a resolver reading parents and siblings from board.
func NewResolver(board Board) *Resolver {
	return &Resolver{board: board}
}

// Resolve returns the destination for dragged given the regions under the
// pointer. It reports false when nothing acceptable is hit or when the most
// specific hit is the dragged item itself.
func (r *Resolver) Resolve(dragged domain.Ref, hits []Region) (Target, bool) {
	best, ok := pickRegion(dragged.Kind, hits)
	if !ok {
		return Target{}, false
	}
	if best.ID == dragged.ID && (best.Kind == RegionCard || best.Kind == RegionList) {
		return Target{}, false
	}

	switch best.Kind {
	case RegionList:
		return r.overSibling(dragged, domain.ListRef(best.ID), best.Below)
	case RegionCard:
		return r.overSibling(dragged, domain.CardRef(best.ID), best.Below)
	case RegionCardsContainer:
		parent := domain.ListRef(best.ID)
		ids, _, found := r.board.Children(parent)
		if !found {
			return Target{}, false
		}
		return Target{Parent: parent, Index: len(without(ids, dragged.ID))}, true
	default:
		return Target{}, false
	}
}

// overSibling resolves a hit on another item of the same kind as dragged.
// Within one parent the result follows array-move semantics: the dragged item
// takes the hovered item's index. Across parents it lands before the hovered
// item, or after it when the pointer is in its lower half.
func (r *Resolver) overSibling(dragged, over domain.Ref, below bool) (Target, bool) {
	parent, found := r.board.ParentOf(over)
	if !found {
		return Target{}, false
	}
	ids, _, found := r.board.Children(parent)
	if !found {
		return Target{}, false
	}

	if slices.Contains(ids, dragged.ID) {
		return Target{Parent: parent, Index: slices.Index(ids, over.ID)}, true
	}

	idx := slices.Index(ids, over.ID)
	if below {
		idx++
	}
	return Target{Parent: parent, Index: idx}, true
}

func pickRegion(kind domain.ItemKind, hits []Region) (Region, bool) {
	var (
		best  Region
		found bool
	)
	for _, h := range hits {
		if !accepts(kind, h.Kind) {
			continue
		}
		if !found ||
			h.Kind.specificity() > best.Kind.specificity() ||
			(h.Kind == best.Kind && h.Overlap > best.Overlap) {
			best, found = h, true
		}
	}
	return best, found
}

// accepts reports whether a dragged item of kind may land on a region.
// Lists only reorder against lists; cards land on cards or list bodies.
func accepts(kind domain.ItemKind, region RegionKind) bool {
	switch kind {
	case domain.KindList:
		return region == RegionList
	case domain.KindCard:
		return region == RegionCard || region == RegionCardsContainer
	default:
		return false
	}
}

func without(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	return slices.DeleteFunc(slices.Clone(ids), func(x uuid.UUID) bool { return x == id })
}
