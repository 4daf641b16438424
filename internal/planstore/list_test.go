package planstore

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/voyago/travelcore/internal/models"
	"gorm.io/gorm"
)

// seedPlanRow inserts a root version row with a fixed creation time.
func seedPlanRow(t *testing.T, conn *gorm.DB, ownerID string, createdAt time.Time) *models.PlanVersion {
	t.Helper()
	row := models.PlanVersion{
		OwnerID:   ownerID,
		QueryRef:  "query-" + ownerID,
		Version:   1,
		CreatedAt: createdAt,
	}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed row: %v", errCreate)
	}
	return &row
}

func TestListPlansFirstPage(t *testing.T) {
	conn := newTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var rows []*models.PlanVersion
	for i := 0; i < 5; i++ {
		rows = append(rows, seedPlanRow(t, conn, "user-a", base.Add(time.Duration(i)*time.Minute)))
	}

	page, errList := store.ListPlans(ctx, "user-a", "", DirectionNext, 2)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	// Newest first.
	if page.Items[0].ID != rows[4].ID || page.Items[1].ID != rows[3].ID {
		t.Fatalf("unexpected first page order: %d, %d", page.Items[0].ID, page.Items[1].ID)
	}
	if page.TotalCount != 5 {
		t.Fatalf("expected total_count=5, got %d", page.TotalCount)
	}
	if page.NextCursor == "" {
		t.Fatalf("expected next cursor on first page")
	}
	if page.PrevCursor != "" {
		t.Fatalf("expected no prev cursor on first page, got %q", page.PrevCursor)
	}
}

func TestListPlansWalkForwardAndBack(t *testing.T) {
	conn := newTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var rows []*models.PlanVersion
	for i := 0; i < 6; i++ {
		rows = append(rows, seedPlanRow(t, conn, "user-a", base.Add(time.Duration(i)*time.Minute)))
	}

	first, errFirst := store.ListPlans(ctx, "user-a", "", DirectionNext, 2)
	if errFirst != nil {
		t.Fatalf("first page: %v", errFirst)
	}
	second, errSecond := store.ListPlans(ctx, "user-a", first.NextCursor, DirectionNext, 2)
	if errSecond != nil {
		t.Fatalf("second page: %v", errSecond)
	}
	if len(second.Items) != 2 || second.Items[0].ID != rows[3].ID || second.Items[1].ID != rows[2].ID {
		t.Fatalf("unexpected second page")
	}
	if second.PrevCursor == "" {
		t.Fatalf("expected prev cursor on second page")
	}

	back, errBack := store.ListPlans(ctx, "user-a", second.PrevCursor, DirectionPrev, 2)
	if errBack != nil {
		t.Fatalf("back page: %v", errBack)
	}
	if len(back.Items) != 2 || back.Items[0].ID != rows[5].ID || back.Items[1].ID != rows[4].ID {
		t.Fatalf("expected back page to equal first page")
	}
}

func TestListPlansCursorStableUnderForeignInserts(t *testing.T) {
	conn := newTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var rows []*models.PlanVersion
	for i := 0; i < 4; i++ {
		rows = append(rows, seedPlanRow(t, conn, "user-a", base.Add(time.Duration(i)*time.Minute)))
	}

	first, errFirst := store.ListPlans(ctx, "user-a", "", DirectionNext, 2)
	if errFirst != nil {
		t.Fatalf("first page: %v", errFirst)
	}

	// A different owner's insert between paginated calls must not shift
	// owner A's cursor chain.
	seedPlanRow(t, conn, "user-b", base.Add(10*time.Minute))

	second, errSecond := store.ListPlans(ctx, "user-a", first.NextCursor, DirectionNext, 2)
	if errSecond != nil {
		t.Fatalf("second page: %v", errSecond)
	}
	if len(second.Items) != 2 || second.Items[0].ID != rows[1].ID || second.Items[1].ID != rows[0].ID {
		t.Fatalf("cursor chain shifted under foreign insert")
	}
	if second.NextCursor != "" {
		t.Fatalf("expected end of listing, got next cursor %q", second.NextCursor)
	}
}

func TestListPlansCountsVersionsNotChains(t *testing.T) {
	conn := newTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	root, _ := store.CreateRoot(ctx, "user-a", "query-1", nil)
	v2, _ := store.CreateVersion(ctx, root.ID, "", nil)
	if _, errV3 := store.CreateVersion(ctx, v2.ID, "", nil); errV3 != nil {
		t.Fatalf("create v3: %v", errV3)
	}

	page, errList := store.ListPlans(ctx, "user-a", "", DirectionNext, 10)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if page.TotalCount != 3 {
		t.Fatalf("expected every version counted, got %d", page.TotalCount)
	}
}

func TestListPlansInvalidCursor(t *testing.T) {
	conn := newTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	if _, errList := store.ListPlans(ctx, "user-a", "not-a-cursor", DirectionNext, 2); !errors.Is(errList, ErrValidation) {
		t.Fatalf("expected ErrValidation for garbage cursor, got %v", errList)
	}

	if _, errList := store.ListPlans(ctx, "user-a", "9999", DirectionNext, 2); !errors.Is(errList, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown cursor, got %v", errList)
	}

	// A cursor pointing at another owner's row is rejected too.
	foreign := seedPlanRow(t, conn, "user-b", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	if _, errList := store.ListPlans(ctx, "user-a", strconv.FormatUint(foreign.ID, 10), DirectionNext, 2); !errors.Is(errList, ErrValidation) {
		t.Fatalf("expected ErrValidation for foreign cursor, got %v", errList)
	}
}

func TestSearchPlansByDestination(t *testing.T) {
	conn := newTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	if _, errCreate := store.CreateRoot(ctx, "user-a", "query-1", FieldUpdates{
		"destination": raw(`{"name":"Tokyo"}`),
	}); errCreate != nil {
		t.Fatalf("create tokyo plan: %v", errCreate)
	}
	if _, errCreate := store.CreateRoot(ctx, "user-a", "query-2", FieldUpdates{
		"destination": raw(`{"name":"Lisbon"}`),
	}); errCreate != nil {
		t.Fatalf("create lisbon plan: %v", errCreate)
	}

	matches, errSearch := store.SearchPlans(ctx, "user-a", "tok")
	if errSearch != nil {
		t.Fatalf("search: %v", errSearch)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	all, errAll := store.SearchPlans(ctx, "user-a", "")
	if errAll != nil {
		t.Fatalf("search all: %v", errAll)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows without filter, got %d", len(all))
	}
}
