package droptarget_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/board"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/droptarget"
)

type fixture struct {
	store    *board.Store
	resolver *droptarget.Resolver
	listA    uuid.UUID
	listB    uuid.UUID
	empty    uuid.UUID
	c1, c2   uuid.UUID
	c3       uuid.UUID
}

// newFixture builds: A = [c1, c2], B = [c3], Empty = [].
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: board.New(uuid.New()),
		listA: uuid.New(), listB: uuid.New(), empty: uuid.New(),
		c1: uuid.New(), c2: uuid.New(), c3: uuid.New(),
	}
	f.store.InsertList(domain.List{ID: f.listA, Position: 1})
	f.store.InsertList(domain.List{ID: f.listB, Position: 2})
	f.store.InsertList(domain.List{ID: f.empty, Position: 3})
	require.NoError(t, f.store.InsertCard(f.listA, domain.Card{ID: f.c1, Position: 1}))
	require.NoError(t, f.store.InsertCard(f.listA, domain.Card{ID: f.c2, Position: 2}))
	require.NoError(t, f.store.InsertCard(f.listB, domain.Card{ID: f.c3, Position: 1}))
	f.resolver = droptarget.NewResolver(f.store)
	return f
}

func TestResolve_CardOverCard(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name    string
		dragged uuid.UUID
		hit     droptarget.Region
		want    droptarget.Target
	}{
		{
			name:    "same list moving down takes the hovered index",
			dragged: f.c1,
			hit:     droptarget.Region{Kind: droptarget.RegionCard, ID: f.c2},
			want:    droptarget.Target{Parent: domain.ListRef(f.listA), Index: 1},
		},
		{
			name:    "same list moving up takes the hovered index",
			dragged: f.c2,
			hit:     droptarget.Region{Kind: droptarget.RegionCard, ID: f.c1, Below: true},
			want:    droptarget.Target{Parent: domain.ListRef(f.listA), Index: 0},
		},
		{
			name:    "other list upper half inserts before",
			dragged: f.c1,
			hit:     droptarget.Region{Kind: droptarget.RegionCard, ID: f.c3},
			want:    droptarget.Target{Parent: domain.ListRef(f.listB), Index: 0},
		},
		{
			name:    "other list lower half inserts after",
			dragged: f.c1,
			hit:     droptarget.Region{Kind: droptarget.RegionCard, ID: f.c3, Below: true},
			want:    droptarget.Target{Parent: domain.ListRef(f.listB), Index: 1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := f.resolver.Resolve(domain.CardRef(tc.dragged), []droptarget.Region{tc.hit})
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolve_CardsContainerAppends(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	got, ok := f.resolver.Resolve(domain.CardRef(f.c3), []droptarget.Region{
		{Kind: droptarget.RegionCardsContainer, ID: f.empty},
	})
	require.True(t, ok)
	assert.Equal(t, droptarget.Target{Parent: domain.ListRef(f.empty), Index: 0}, got)

	got, ok = f.resolver.Resolve(domain.CardRef(f.c3), []droptarget.Region{
		{Kind: droptarget.RegionCardsContainer, ID: f.listA},
	})
	require.True(t, ok)
	assert.Equal(t, droptarget.Target{Parent: domain.ListRef(f.listA), Index: 2}, got)

	got, ok = f.resolver.Resolve(domain.CardRef(f.c1), []droptarget.Region{
		{Kind: droptarget.RegionCardsContainer, ID: f.listA},
	})
	require.True(t, ok)
	assert.Equal(t, 1, got.Index, "dragged card is excluded from its own list's count")
}

func TestResolve_PrefersMostSpecificRegion(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	got, ok := f.resolver.Resolve(domain.CardRef(f.c1), []droptarget.Region{
		{Kind: droptarget.RegionList, ID: f.listB, Overlap: 1},
		{Kind: droptarget.RegionCardsContainer, ID: f.listB, Overlap: 0.9},
		{Kind: droptarget.RegionCard, ID: f.c3, Overlap: 0.1},
	})
	require.True(t, ok)
	assert.Equal(t, droptarget.Target{Parent: domain.ListRef(f.listB), Index: 0}, got)
}

func TestResolve_OverlapBreaksTies(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	got, ok := f.resolver.Resolve(domain.CardRef(f.c3), []droptarget.Region{
		{Kind: droptarget.RegionCard, ID: f.c1, Overlap: 0.2},
		{Kind: droptarget.RegionCard, ID: f.c2, Overlap: 0.7, Below: true},
	})
	require.True(t, ok)
	assert.Equal(t, droptarget.Target{Parent: domain.ListRef(f.listA), Index: 2}, got)
}

func TestResolve_ListsOnlyResolveAgainstLists(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, ok := f.resolver.Resolve(domain.ListRef(f.listA), []droptarget.Region{
		{Kind: droptarget.RegionCard, ID: f.c3},
		{Kind: droptarget.RegionCardsContainer, ID: f.listB},
	})
	assert.False(t, ok)

	got, ok := f.resolver.Resolve(domain.ListRef(f.listA), []droptarget.Region{
		{Kind: droptarget.RegionCard, ID: f.c3},
		{Kind: droptarget.RegionList, ID: f.listB},
	})
	require.True(t, ok)
	assert.Equal(t, droptarget.Target{Parent: domain.WorkspaceRef(f.store.WorkspaceID()), Index: 1}, got)
}

func TestResolve_CardsNeverLandOnListRegions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, ok := f.resolver.Resolve(domain.CardRef(f.c1), []droptarget.Region{
		{Kind: droptarget.RegionList, ID: f.listB},
	})
	assert.False(t, ok)
}

func TestResolve_NoTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name    string
		dragged domain.Ref
		hits    []droptarget.Region
	}{
		{name: "no hits", dragged: domain.CardRef(f.c1)},
		{name: "ignored region", dragged: domain.CardRef(f.c1), hits: []droptarget.Region{{Kind: droptarget.RegionIgnored, ID: f.listA}}},
		{name: "card over itself", dragged: domain.CardRef(f.c1), hits: []droptarget.Region{
			{Kind: droptarget.RegionCardsContainer, ID: f.listA},
			{Kind: droptarget.RegionCard, ID: f.c1},
		}},
		{name: "list over itself", dragged: domain.ListRef(f.listA), hits: []droptarget.Region{{Kind: droptarget.RegionList, ID: f.listA}}},
		{name: "stale card region", dragged: domain.CardRef(f.c1), hits: []droptarget.Region{{Kind: droptarget.RegionCard, ID: uuid.New()}}},
		{name: "stale container", dragged: domain.CardRef(f.c1), hits: []droptarget.Region{{Kind: droptarget.RegionCardsContainer, ID: uuid.New()}}},
		{name: "tasks are not draggable", dragged: domain.TaskRef(uuid.New()), hits: []droptarget.Region{{Kind: droptarget.RegionCard, ID: f.c1}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, ok := f.resolver.Resolve(tc.dragged, tc.hits)
			assert.False(t, ok)
		})
	}
}
