package notify

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func item(id, title string) Item {
	return Item{"_id": id, "title": title}
}

func TestReduce(t *testing.T) {
	base := []Item{item("a", "A"), item("b", "B")}

	tests := []struct {
		name string
		ev   Event
		want []Item
	}{
		{
			name: "created appends",
			ev:   Event{Success: true, Action: ActionCreated, Data: []Item{item("c", "C")}},
			want: []Item{item("a", "A"), item("b", "B"), item("c", "C")},
		},
		{
			name: "created with known id replaces",
			ev:   Event{Success: true, Action: ActionCreated, Data: []Item{item("a", "A2")}},
			want: []Item{item("a", "A2"), item("b", "B")},
		},
		{
			name: "updated replaces in place",
			ev:   Event{Success: true, Action: ActionUpdated, Data: []Item{item("b", "B2")}},
			want: []Item{item("a", "A"), item("b", "B2")},
		},
		{
			name: "updated with unknown id appends",
			ev:   Event{Success: true, Action: ActionUpdated, Data: []Item{item("z", "Z")}},
			want: []Item{item("a", "A"), item("b", "B"), item("z", "Z")},
		},
		{
			name: "updated without id is ignored",
			ev:   Event{Success: true, Action: ActionUpdated, Data: []Item{{"title": "orphan"}}},
			want: base,
		},
		{
			name: "deleted removes",
			ev:   Event{Success: true, Action: ActionDeleted, Data: []Item{{"_id": "a"}}},
			want: []Item{item("b", "B")},
		},
		{
			name: "deleted unknown id keeps list",
			ev:   Event{Success: true, Action: ActionDeleted, Data: []Item{{"_id": "nope"}}},
			want: base,
		},
		{
			name: "unsuccessful event is ignored",
			ev:   Event{Success: false, Action: ActionCreated, Data: []Item{item("c", "C")}},
			want: base,
		},
		{
			name: "unknown action is ignored",
			ev:   Event{Success: true, Action: "archived", Data: []Item{item("a", "A")}},
			want: base,
		},
		{
			name: "refresh is not a list change",
			ev:   Event{Success: true, Action: ActionRefresh},
			want: base,
		},
		{
			name: "numeric id falls back to id",
			ev:   Event{Success: true, Action: ActionDeleted, Data: []Item{{"id": float64(7)}}},
			want: base,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(base, tt.ev)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Reduce() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestItemID(t *testing.T) {
	tests := []struct {
		item Item
		want string
	}{
		{Item{"_id": "x", "id": "y"}, "x"},
		{Item{"_id": "", "id": "y"}, "y"},
		{Item{"id": float64(42)}, "42"},
		{Item{"id": int64(9)}, "9"},
		{Item{"id": uint64(3)}, "3"},
		{Item{"title": "no id"}, ""},
	}
	for _, tt := range tests {
		if got := tt.item.ID(); got != tt.want {
			t.Errorf("%v.ID() = %q, want %q", tt.item, got, tt.want)
		}
	}
}

func itemsFromIDs(ids []int) []Item {
	out := make([]Item, len(ids))
	for i, id := range ids {
		out[i] = Item{"_id": fmt.Sprint(id), "n": i}
	}
	return out
}

func TestReduceProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	actions := gen.OneConstOf(ActionCreated, ActionUpdated, ActionDeleted)
	ids := gen.SliceOf(gen.IntRange(0, 15))

	properties.Property("input list is never mutated", prop.ForAll(
		func(listIDs, dataIDs []int, action Action) bool {
			list := itemsFromIDs(listIDs)
			before := itemsFromIDs(listIDs)
			Reduce(list, Event{Success: true, Action: action, Data: itemsFromIDs(dataIDs)})
			return cmp.Equal(before, list)
		},
		ids, ids, actions,
	))

	properties.Property("deleted ids are absent afterwards", prop.ForAll(
		func(listIDs, dataIDs []int) bool {
			out := Reduce(itemsFromIDs(listIDs), Event{Success: true, Action: ActionDeleted, Data: itemsFromIDs(dataIDs)})
			gone := make(map[string]bool)
			for _, it := range itemsFromIDs(dataIDs) {
				gone[it.ID()] = true
			}
			for _, it := range out {
				if gone[it.ID()] {
					return false
				}
			}
			return true
		},
		ids, ids,
	))

	properties.Property("every upserted id is present afterwards", prop.ForAll(
		func(listIDs, dataIDs []int, action Action) bool {
			if action == ActionDeleted {
				return true
			}
			out := Reduce(itemsFromIDs(listIDs), Event{Success: true, Action: action, Data: itemsFromIDs(dataIDs)})
			have := make(map[string]bool)
			for _, it := range out {
				have[it.ID()] = true
			}
			for _, id := range dataIDs {
				if !have[fmt.Sprint(id)] {
					return false
				}
			}
			return true
		},
		ids, ids, actions,
	))

	properties.Property("upserts never shrink the list", prop.ForAll(
		func(listIDs, dataIDs []int) bool {
			list := itemsFromIDs(listIDs)
			out := Reduce(list, Event{Success: true, Action: ActionCreated, Data: itemsFromIDs(dataIDs)})
			return len(out) >= len(list)
		},
		ids, ids,
	))

	properties.TestingRun(t)
}
