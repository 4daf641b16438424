package planstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/voyago/travelcore/internal/db"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestCreateRoot(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	root, errCreate := store.CreateRoot(ctx, "user-1", "query-1", FieldUpdates{
		"destination": raw(`{"name":"Tokyo"}`),
		"overview":    raw(`"a week in Tokyo"`),
	})
	if errCreate != nil {
		t.Fatalf("create root: %v", errCreate)
	}
	if root.Version != 1 {
		t.Fatalf("expected version=1, got %d", root.Version)
	}
	if root.ParentID != nil {
		t.Fatalf("expected nil parent, got %v", *root.ParentID)
	}
	if root.Overview != "a week in Tokyo" {
		t.Fatalf("expected overview set, got %q", root.Overview)
	}
}

func TestCreateRootValidation(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	if _, errCreate := store.CreateRoot(ctx, "", "query-1", nil); !errors.Is(errCreate, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing owner, got %v", errCreate)
	}
	if _, errCreate := store.CreateRoot(ctx, "user-1", "", nil); !errors.Is(errCreate, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing query, got %v", errCreate)
	}
	if _, errCreate := store.CreateRoot(ctx, "user-1", "query-1", FieldUpdates{"bogus": raw(`1`)}); !errors.Is(errCreate, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown field, got %v", errCreate)
	}
	if _, errCreate := store.CreateRoot(ctx, "user-1", "query-1", FieldUpdates{"budget": raw(`{broken`)}); !errors.Is(errCreate, ErrValidation) {
		t.Fatalf("expected ErrValidation for malformed JSON, got %v", errCreate)
	}
}

func TestCreateVersionMergePatch(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	root, errRoot := store.CreateRoot(ctx, "user-1", "query-1", FieldUpdates{
		"destination": raw(`{"name":"Tokyo"}`),
		"flights":     raw(`{"outbound":"NRT123"}`),
	})
	if errRoot != nil {
		t.Fatalf("create root: %v", errRoot)
	}

	v2, errV2 := store.CreateVersion(ctx, root.ID, "swap destination", FieldUpdates{
		"destination": raw(`{"name":"Kyoto"}`),
	})
	if errV2 != nil {
		t.Fatalf("create version: %v", errV2)
	}
	if v2.Version != 2 {
		t.Fatalf("expected version=2, got %d", v2.Version)
	}
	if v2.ParentID == nil || *v2.ParentID != root.ID {
		t.Fatalf("expected parent_id=%d, got %v", root.ID, v2.ParentID)
	}

	var destination struct {
		Name string `json:"name"`
	}
	if errUnmarshal := json.Unmarshal(v2.Destination, &destination); errUnmarshal != nil {
		t.Fatalf("unmarshal destination: %v", errUnmarshal)
	}
	if destination.Name != "Kyoto" {
		t.Fatalf("expected destination replaced with Kyoto, got %q", destination.Name)
	}
	if string(v2.Flights) != `{"outbound":"NRT123"}` {
		t.Fatalf("expected flights carried over, got %s", v2.Flights)
	}
	if v2.ModificationReason == nil || *v2.ModificationReason != "swap destination" {
		t.Fatalf("expected modification reason recorded")
	}
}

func TestCreateVersionDisjointUpdatesUnion(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	root, _ := store.CreateRoot(ctx, "user-1", "query-1", nil)

	v2, errV2 := store.CreateVersion(ctx, root.ID, "", FieldUpdates{"budget": raw(`{"total":5000}`)})
	if errV2 != nil {
		t.Fatalf("create v2: %v", errV2)
	}
	v3, errV3 := store.CreateVersion(ctx, v2.ID, "", FieldUpdates{"activities": raw(`["museum"]`)})
	if errV3 != nil {
		t.Fatalf("create v3: %v", errV3)
	}

	if string(v3.Budget) != `{"total":5000}` {
		t.Fatalf("expected budget carried into v3, got %s", v3.Budget)
	}
	if string(v3.Activities) != `["museum"]` {
		t.Fatalf("expected activities set in v3, got %s", v3.Activities)
	}

	// Patching the same key again keeps only the most recent value.
	v4, errV4 := store.CreateVersion(ctx, v3.ID, "", FieldUpdates{"budget": raw(`{"total":7000}`)})
	if errV4 != nil {
		t.Fatalf("create v4: %v", errV4)
	}
	if string(v4.Budget) != `{"total":7000}` {
		t.Fatalf("expected budget overwritten, got %s", v4.Budget)
	}
}

func TestCreateVersionNullClearsField(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	root, _ := store.CreateRoot(ctx, "user-1", "query-1", FieldUpdates{
		"alerts":   raw(`["strike warning"]`),
		"overview": raw(`"original"`),
	})

	v2, errV2 := store.CreateVersion(ctx, root.ID, "clear alerts", FieldUpdates{
		"alerts":   raw(`null`),
		"overview": raw(`null`),
	})
	if errV2 != nil {
		t.Fatalf("create version: %v", errV2)
	}
	if len(v2.Alerts) != 0 {
		t.Fatalf("expected alerts cleared, got %s", v2.Alerts)
	}
	if v2.Overview != "" {
		t.Fatalf("expected overview cleared, got %q", v2.Overview)
	}
}

func TestCreateVersionParentNotFound(t *testing.T) {
	store := NewStore(newTestDB(t))

	_, errCreate := store.CreateVersion(context.Background(), 9999, "", nil)
	if !errors.Is(errCreate, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errCreate)
	}
}

func TestCreateVersionConflictOnSharedParent(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	root, _ := store.CreateRoot(ctx, "user-1", "query-1", nil)
	if _, errFirst := store.CreateVersion(ctx, root.ID, "", nil); errFirst != nil {
		t.Fatalf("first child: %v", errFirst)
	}
	if _, errSecond := store.CreateVersion(ctx, root.ID, "", nil); !errors.Is(errSecond, ErrConflict) {
		t.Fatalf("expected ErrConflict for second child, got %v", errSecond)
	}
}

func TestGetHistoryAnchorIndependent(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	root, _ := store.CreateRoot(ctx, "user-1", "query-1", nil)
	v2, _ := store.CreateVersion(ctx, root.ID, "second", nil)
	v3, _ := store.CreateVersion(ctx, v2.ID, "third", nil)

	for _, anchor := range []uint64{root.ID, v2.ID, v3.ID} {
		history, errHistory := store.GetHistory(ctx, anchor)
		if errHistory != nil {
			t.Fatalf("history from %d: %v", anchor, errHistory)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 entries from anchor %d, got %d", anchor, len(history))
		}
		for i, entry := range history {
			if entry.Version != i+1 {
				t.Fatalf("expected version %d at index %d, got %d", i+1, i, entry.Version)
			}
		}
		if history[0].ParentID != nil {
			t.Fatalf("expected root first, got parent %v", *history[0].ParentID)
		}
	}
}

func TestGetHistoryNotFound(t *testing.T) {
	store := NewStore(newTestDB(t))

	_, errHistory := store.GetHistory(context.Background(), 424242)
	if !errors.Is(errHistory, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errHistory)
	}
}

func TestGetLatest(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	root, _ := store.CreateRoot(ctx, "user-1", "query-1", nil)
	v2, _ := store.CreateVersion(ctx, root.ID, "", nil)
	v3, _ := store.CreateVersion(ctx, v2.ID, "", nil)

	for _, anchor := range []uint64{root.ID, v2.ID, v3.ID} {
		latest, errLatest := store.GetLatest(ctx, anchor)
		if errLatest != nil {
			t.Fatalf("latest from %d: %v", anchor, errLatest)
		}
		if latest.ID != v3.ID {
			t.Fatalf("expected leaf %d from anchor %d, got %d", v3.ID, anchor, latest.ID)
		}
	}
}
