package mapview_test

import (
	"testing"

	"github.com/samirrijal/archmap/internal/core/mapview"
)

func TestResolveMarkerState(t *testing.T) {
	tests := []struct {
		name string
		id   string
		ctx  mapview.Context
		want mapview.MarkerState
	}{
		{"nothing set", "a", mapview.Context{}, mapview.MarkerNormal},
		{"hovered", "a", mapview.Context{HoveredID: "a"}, mapview.MarkerHovered},
		{"other hovered", "a", mapview.Context{HoveredID: "b"}, mapview.MarkerNormal},
		{"selected beats hovered", "a", mapview.Context{SelectedID: "a", HoveredID: "a"}, mapview.MarkerSelected},
		{"viewed beats selected", "a", mapview.Context{SelectedID: "a", ViewedRoute: []string{"a"}}, mapview.MarkerInViewedRoute},
		{"creation beats viewed", "a", mapview.Context{RouteCreation: []string{"a", "b"}, ViewedRoute: []string{"a"}}, mapview.MarkerInRouteCreation},
		{"creation beats everything", "a", mapview.Context{
			SelectedID: "a", HoveredID: "a", RouteCreation: []string{"a"}, ViewedRoute: []string{"a"},
		}, mapview.MarkerInRouteCreation},
		{"empty id never matches empty selection", "", mapview.Context{}, mapview.MarkerNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapview.ResolveMarkerState(tt.id, tt.ctx); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestResolveMarkerState_OrderIndependent(t *testing.T) {
	forward := mapview.Context{RouteCreation: []string{"a", "b", "c"}, ViewedRoute: []string{"c", "d"}}
	reverse := mapview.Context{RouteCreation: []string{"c", "b", "a"}, ViewedRoute: []string{"d", "c"}}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if f, r := mapview.ResolveMarkerState(id, forward), mapview.ResolveMarkerState(id, reverse); f != r {
			t.Errorf("%s: %s vs %s", id, f, r)
		}
	}
}

// Every combination of memberships resolves to the highest-priority state.
func TestResolveMarkerState_Priority(t *testing.T) {
	priority := []mapview.MarkerState{
		mapview.MarkerInRouteCreation,
		mapview.MarkerInViewedRoute,
		mapview.MarkerSelected,
		mapview.MarkerHovered,
	}
	for mask := 0; mask < 16; mask++ {
		var ctx mapview.Context
		if mask&1 != 0 {
			ctx.RouteCreation = []string{"x", "p"}
		}
		if mask&2 != 0 {
			ctx.ViewedRoute = []string{"p"}
		}
		if mask&4 != 0 {
			ctx.SelectedID = "p"
		}
		if mask&8 != 0 {
			ctx.HoveredID = "p"
		}

		want := mapview.MarkerNormal
		for bit, st := range priority {
			if mask&(1<<bit) != 0 {
				want = st
				break
			}
		}
		if got := mapview.ResolveMarkerState("p", ctx); got != want {
			t.Errorf("mask %04b: expected %s, got %s", mask, want, got)
		}
	}
}

func TestBadgeFor(t *testing.T) {
	ctx := mapview.Context{RouteCreation: []string{"a", "b"}, ViewedRoute: []string{"c", "a", "d"}}
	for id, want := range map[string]int{"a": 1, "b": 2, "c": 1, "d": 3, "e": 0} {
		if got := mapview.BadgeFor(id, ctx); got != want {
			t.Errorf("%s: expected badge %d, got %d", id, want, got)
		}
	}
}

func TestStyleFor_MonotonicWithPriority(t *testing.T) {
	order := []mapview.MarkerState{
		mapview.MarkerNormal,
		mapview.MarkerHovered,
		mapview.MarkerSelected,
		mapview.MarkerInViewedRoute,
		mapview.MarkerInRouteCreation,
	}
	for i := 1; i < len(order); i++ {
		lo, hi := mapview.StyleFor(order[i-1]), mapview.StyleFor(order[i])
		if hi.Size <= lo.Size || hi.ZIndex <= lo.ZIndex {
			t.Errorf("%s should outrank %s: %+v vs %+v", order[i], order[i-1], hi, lo)
		}
	}
	if got := mapview.StyleFor("bogus"); got != mapview.StyleFor(mapview.MarkerNormal) {
		t.Errorf("unknown state should fall back to normal, got %+v", got)
	}
}
