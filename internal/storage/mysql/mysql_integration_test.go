//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"eatpoint/internal/domain"
	"eatpoint/internal/geo"
	mysqlrepo "eatpoint/internal/storage/mysql"
)

// ---------- small helpers ----------

func pfloat(f float64) *float64 { return &f }

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/migrations)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=eatpoint",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	// clientFoundRows makes RowsAffected report matched rows, which the
	// repo's compare-and-set contract depends on.
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&clientFoundRows=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "eatpoint")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func seedDraft(id, partnerID string, created time.Time) domain.Establishment {
	return domain.Establishment{
		ID:         id,
		PartnerID:  partnerID,
		Name:       "listing " + id,
		City:       "minsk",
		Address:    "addr " + id,
		Latitude:   pfloat(53.9006),
		Longitude:  pfloat(27.5590),
		Categories: []string{"restaurant"},
		Cuisines:   []string{"belarusian", "european"},
		PriceRange: "medium",
		WorkingHours: map[string]domain.HoursInterval{
			"mon": {Open: "09:00", Close: "21:00"},
		},
		Attributes: map[string]bool{"wifi": true},
		Status:     domain.StatusDraft,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

// ---------- the tests ----------

func TestRepo_MySQL_Lifecycle(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	e := seedDraft("11111111-1111-1111-1111-111111111111", "partner-1", now)
	if err := repo.Insert(ctx, e); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Round trip, JSON columns included.
	got, err := repo.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != e.Name || got.Status != domain.StatusDraft {
		t.Fatalf("unexpected row: %+v", got)
	}
	if len(got.Cuisines) != 2 || got.Cuisines[1] != "european" {
		t.Fatalf("cuisines did not round-trip: %v", got.Cuisines)
	}
	if got.WorkingHours["mon"].Open != "09:00" || !got.Attributes["wifi"] {
		t.Fatalf("JSON columns did not round-trip: %+v", got)
	}
	if got.Latitude == nil || *got.Latitude != 53.9006 {
		t.Fatalf("latitude did not round-trip: %v", got.Latitude)
	}

	// Guarded field update: wrong partner does not write.
	ok, err := repo.UpdateFields(ctx, e.ID, "partner-2", domain.FieldPatch{Name: strPtr("hijacked")})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if ok {
		t.Fatal("foreign partner must not match the update guard")
	}

	ok, err = repo.UpdateFields(ctx, e.ID, "partner-1", domain.FieldPatch{Name: strPtr("renamed")})
	if err != nil || !ok {
		t.Fatalf("owner update: ok=%v err=%v", ok, err)
	}
	got, _ = repo.Get(ctx, e.ID)
	if got.Name != "renamed" {
		t.Fatalf("name = %q", got.Name)
	}

	// Compare-and-set transition.
	ok, err = repo.Transition(ctx, e.ID, domain.StatusDraft, domain.StatusPending, domain.TransitionSet{})
	if err != nil || !ok {
		t.Fatalf("draft->pending: ok=%v err=%v", ok, err)
	}

	// Same guard again: the row is no longer draft, so the CAS misses.
	ok, err = repo.Transition(ctx, e.ID, domain.StatusDraft, domain.StatusPending, domain.TransitionSet{})
	if err != nil {
		t.Fatalf("stale transition: %v", err)
	}
	if ok {
		t.Fatal("stale compare-and-set must not match")
	}

	// Field updates are locked out of pending by the status guard.
	ok, err = repo.UpdateFields(ctx, e.ID, "partner-1", domain.FieldPatch{Name: strPtr("frozen?")})
	if err != nil {
		t.Fatalf("UpdateFields while pending: %v", err)
	}
	if ok {
		t.Fatal("pending row must not accept field updates")
	}

	// Approval stamps published_at once.
	modAt := time.Now().UTC().Truncate(time.Microsecond)
	ok, err = repo.Transition(ctx, e.ID, domain.StatusPending, domain.StatusActive, domain.TransitionSet{
		SetModerator: true, ModeratedBy: "mod-1", ModeratedAt: modAt,
		MarkPublished: true,
	})
	if err != nil || !ok {
		t.Fatalf("pending->active: ok=%v err=%v", ok, err)
	}
	got, _ = repo.Get(ctx, e.ID)
	if got.PublishedAt == nil || got.ModeratedBy != "mod-1" {
		t.Fatalf("approve columns missing: %+v", got)
	}
	firstPublished := *got.PublishedAt

	// Suspend writes the reason; unsuspend clears it and leaves
	// published_at where it was.
	ok, err = repo.Transition(ctx, e.ID, domain.StatusActive, domain.StatusSuspended, domain.TransitionSet{
		SetSuspendReason: true, SuspendReason: "complaints",
	})
	if err != nil || !ok {
		t.Fatalf("suspend: ok=%v err=%v", ok, err)
	}
	got, _ = repo.Get(ctx, e.ID)
	if got.SuspendReason != "complaints" {
		t.Fatalf("suspend_reason = %q", got.SuspendReason)
	}

	ok, err = repo.Transition(ctx, e.ID, domain.StatusSuspended, domain.StatusActive, domain.TransitionSet{
		SetSuspendReason: true, MarkPublished: true,
	})
	if err != nil || !ok {
		t.Fatalf("unsuspend: ok=%v err=%v", ok, err)
	}
	got, _ = repo.Get(ctx, e.ID)
	if got.SuspendReason != "" {
		t.Fatalf("suspend_reason not cleared: %q", got.SuspendReason)
	}
	if !got.PublishedAt.Equal(firstPublished) {
		t.Fatalf("published_at moved: %v -> %v", firstPublished, got.PublishedAt)
	}

	// Aggregates land and a missing id reports false.
	agg := domain.Aggregates{ViewCount: 7, FavoriteCount: 1, ReviewCount: 3, AverageRating: 4.2}
	ok, err = repo.UpdateAggregates(ctx, e.ID, agg)
	if err != nil || !ok {
		t.Fatalf("UpdateAggregates: ok=%v err=%v", ok, err)
	}
	got, _ = repo.Get(ctx, e.ID)
	if got.Aggregates != agg {
		t.Fatalf("aggregates = %+v", got.Aggregates)
	}
	ok, err = repo.UpdateAggregates(ctx, "99999999-9999-9999-9999-999999999999", agg)
	if err != nil {
		t.Fatalf("UpdateAggregates missing: %v", err)
	}
	if ok {
		t.Fatal("missing id must report false")
	}

	// Moderation notes + history survive the JSON round trip.
	notes := map[string]string{"address": "cannot verify"}
	ok, err = repo.Transition(ctx, e.ID, domain.StatusActive, domain.StatusSuspended, domain.TransitionSet{
		SetNotes: true, Notes: notes,
		SetHistory: true, History: []domain.NotesEntry{{Notes: notes, ModeratedBy: "mod-1", ModeratedAt: modAt}},
		SetSuspendReason: true, SuspendReason: "review",
	})
	if err != nil || !ok {
		t.Fatalf("notes transition: ok=%v err=%v", ok, err)
	}
	got, _ = repo.Get(ctx, e.ID)
	if got.ModerationNotes["address"] != "cannot verify" {
		t.Fatalf("notes lost: %+v", got.ModerationNotes)
	}
	if len(got.NotesHistory) != 1 || got.NotesHistory[0].ModeratedBy != "mod-1" {
		t.Fatalf("history lost: %+v", got.NotesHistory)
	}

	if _, err := repo.Get(ctx, "no-such-id"); err == nil {
		t.Fatal("missing row must error")
	}
}

func TestRepo_MySQL_ListsAndBounds(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond).Add(-time.Hour)

	mk := func(id string, partner string, lat, lon float64, st domain.Status, created time.Time) {
		t.Helper()
		e := seedDraft(id, partner, created)
		e.Latitude, e.Longitude = pfloat(lat), pfloat(lon)
		e.Status = st
		if err := repo.Insert(ctx, e); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	mk("00000000-0000-0000-0000-000000000001", "partner-1", 53.90, 27.50, domain.StatusActive, base)
	mk("00000000-0000-0000-0000-000000000002", "partner-1", 53.95, 27.55, domain.StatusActive, base.Add(10*time.Minute))
	mk("00000000-0000-0000-0000-000000000003", "partner-1", 53.99, 27.59, domain.StatusSuspended, base.Add(20*time.Minute))
	mk("00000000-0000-0000-0000-000000000004", "partner-2", 55.19, 30.20, domain.StatusActive, base.Add(30*time.Minute))
	mk("00000000-0000-0000-0000-000000000005", "partner-2", 53.90, 27.60, domain.StatusPending, base.Add(40*time.Minute))

	// Partner listing pages newest first with a full count.
	items, total, err := repo.ListByPartner(ctx, "partner-1", domain.PageQuery{Limit: 2})
	if err != nil {
		t.Fatalf("ListByPartner: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("total=%d len=%d", total, len(items))
	}
	if items[0].ID[len(items[0].ID)-1:] != "3" {
		t.Fatalf("newest first, got %s", items[0].ID)
	}

	// Status listing: oldest updated first.
	items, total, err = repo.ListByStatus(ctx, domain.StatusPending, domain.PageQuery{Limit: 10})
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("ListByStatus: total=%d len=%d err=%v", total, len(items), err)
	}

	// Bounds scan keeps only active rows, edges inclusive.
	got, err := repo.ActiveInBounds(ctx, geo.Bounds{MinLat: 53.90, MaxLat: 53.99, MinLon: 27.50, MaxLon: 27.60})
	if err != nil {
		t.Fatalf("ActiveInBounds: %v", err)
	}
	ids := map[string]bool{}
	for _, e := range got {
		ids[e.ID[len(e.ID)-1:]] = true
	}
	if len(got) != 2 || !ids["1"] || !ids["2"] {
		t.Fatalf("bounds scan = %v", ids)
	}
}

func strPtr(s string) *string { return &s }
