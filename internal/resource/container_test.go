package resource

import "testing"

type testEntity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

func (e testEntity) GetID() string { return e.ID }

func entities(ids ...string) []testEntity {
	items := make([]testEntity, len(ids))
	for i, id := range ids {
		items[i] = testEntity{ID: id, Name: "name-" + id}
	}
	return items
}

func TestContainerFetchLifecycle(t *testing.T) {
	c := NewContainer[testEntity]("clients")
	c.SetError("stale error")

	c.FetchInit()
	state := c.Snapshot()
	if !state.IsLoading {
		t.Error("FetchInit must set IsLoading")
	}
	if state.Error != "" {
		t.Error("FetchInit must clear the previous error")
	}

	c.FetchSuccess(entities("1", "2", "3"), 42, true)
	state = c.Snapshot()
	if state.IsLoading {
		t.Error("FetchSuccess must clear IsLoading")
	}
	if len(state.Items) != 3 {
		t.Errorf("Items = %d, want 3", len(state.Items))
	}
	if state.TotalCount != 42 {
		t.Errorf("TotalCount = %d, want 42", state.TotalCount)
	}
	if !state.HasMore {
		t.Error("HasMore not carried through")
	}

	c.FetchInit()
	c.FetchFailure("server unavailable")
	state = c.Snapshot()
	if state.IsLoading {
		t.Error("FetchFailure must clear IsLoading")
	}
	if state.Error != "server unavailable" {
		t.Errorf("Error = %q", state.Error)
	}
	if len(state.Items) != 3 {
		t.Error("FetchFailure must keep the previous page visible")
	}
}

func TestContainerAddPrependsAndCounts(t *testing.T) {
	c := NewContainer[testEntity]("clients")
	c.FetchSuccess(entities("1", "2"), 2, false)

	c.AddSuccess(testEntity{ID: "3", Name: "newest"})
	state := c.Snapshot()
	if state.Items[0].ID != "3" {
		t.Errorf("new item at position %q, want front", state.Items[0].ID)
	}
	if state.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", state.TotalCount)
	}
}

func TestContainerRemoveManyCountInvariant(t *testing.T) {
	c := NewContainer[testEntity]("clients")
	c.FetchSuccess(entities("1", "2", "3", "4", "5"), 10, true)

	c.RemoveManySuccess([]string{"2", "4", "5"})
	state := c.Snapshot()
	if len(state.Items) != 2 {
		t.Errorf("Items = %d, want 2", len(state.Items))
	}
	if state.TotalCount != 7 {
		t.Errorf("TotalCount = %d, want 7 (10 - 3 removed)", state.TotalCount)
	}
}

func TestContainerRemoveClampsTotalAtZero(t *testing.T) {
	c := NewContainer[testEntity]("clients")
	c.FetchSuccess(entities("1"), 1, false)

	c.RemoveSuccess("1")
	c.RemoveSuccess("1") // second dispatch for an already-gone id
	if got := c.Snapshot().TotalCount; got != 0 {
		t.Errorf("TotalCount = %d, want 0", got)
	}
}

func TestContainerRemoveClearsSelection(t *testing.T) {
	c := NewContainer[testEntity]("clients")
	c.FetchSuccess(entities("1", "2"), 2, false)
	selected := testEntity{ID: "2", Name: "name-2"}
	c.Select(&selected)

	c.RemoveSuccess("2")
	if c.Snapshot().Selected != nil {
		t.Error("removing the selected item must clear the selection")
	}
}

func TestContainerUpdateTouchesPageAndSelection(t *testing.T) {
	c := NewContainer[testEntity]("clients")
	c.FetchSuccess(entities("1", "2"), 2, false)
	selected := testEntity{ID: "2", Name: "name-2"}
	c.Select(&selected)

	c.UpdateSuccess(testEntity{ID: "2", Name: "renamed"})
	state := c.Snapshot()
	if state.Items[1].Name != "renamed" {
		t.Errorf("page item name = %q, want renamed", state.Items[1].Name)
	}
	if state.Selected == nil || state.Selected.Name != "renamed" {
		t.Error("selection not updated alongside the page")
	}
}

func TestContainerReplaceItemKeepsPosition(t *testing.T) {
	c := NewContainer[testEntity]("clients")
	c.FetchSuccess(entities("1", "temp-2", "3"), 3, false)

	c.ReplaceItem("temp-2", testEntity{ID: "srv-9", Name: "confirmed"})
	state := c.Snapshot()
	if state.Items[1].ID != "srv-9" {
		t.Errorf("replaced item id = %q at position 1, want srv-9", state.Items[1].ID)
	}
	if len(state.Items) != 3 {
		t.Errorf("Items = %d, want 3", len(state.Items))
	}
	if state.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want unchanged 3", state.TotalCount)
	}
}

func TestContainerFindChecksPageThenSelection(t *testing.T) {
	c := NewContainer[testEntity]("clients")
	c.FetchSuccess(entities("1"), 1, false)
	detail := testEntity{ID: "9", Name: "detail-only"}
	c.Select(&detail)

	if item, ok := c.Find("1"); !ok || item.ID != "1" {
		t.Errorf("Find(1) = (%v, %v)", item, ok)
	}
	if item, ok := c.Find("9"); !ok || item.Name != "detail-only" {
		t.Errorf("Find(9) = (%v, %v), want the selection", item, ok)
	}
	if _, ok := c.Find("missing"); ok {
		t.Error("Find must report absence")
	}
}

func TestContainerSnapshotIsolation(t *testing.T) {
	c := NewContainer[testEntity]("clients")
	c.FetchSuccess(entities("1", "2"), 2, false)

	snap := c.Snapshot()
	snap.Items[0].Name = "mutated"

	if c.Snapshot().Items[0].Name != "name-1" {
		t.Error("mutating a snapshot leaked into container state")
	}
}
