package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aiguardian/remediator/internal/config"
	"github.com/aiguardian/remediator/models"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestInsertSelectUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := models.Remediation{
		ID:              "rem-1",
		VulnerabilityID: "vuln-1",
		Status:          models.StatusStarted,
		CreatedAt:       "2026-08-28T00:00:00Z",
		UpdatedAt:       "2026-08-28T00:00:00Z",
	}
	if _, err := db.Insert(ctx, "remediations", rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Duplicate primary key is rejected.
	if _, err := db.Insert(ctx, "remediations", rec); err == nil {
		t.Error("duplicate insert accepted")
	}

	var got models.Remediation
	err := db.Get(ctx, &got, `SELECT * FROM remediations WHERE id = ?`, "rem-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusStarted || got.VulnerabilityID != "vuln-1" {
		t.Errorf("got %+v", got)
	}

	if err := db.Exec(ctx,
		`UPDATE remediations SET status = ?, pr_link = ? WHERE id = ?`,
		string(models.StatusPRRaised), "https://github.com/acme/shop/pull/3", "rem-1"); err != nil {
		t.Fatalf("update: %v", err)
	}

	var all []models.Remediation
	if err := db.Select(ctx, &all, `SELECT * FROM remediations`); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(all) != 1 || all[0].Status != models.StatusPRRaised {
		t.Errorf("all = %+v", all)
	}
	if all[0].PRLink != "https://github.com/acme/shop/pull/3" {
		t.Errorf("pr_link = %q", all[0].PRLink)
	}
}

func TestUpdateViaTags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := models.Remediation{
		ID:              "rem-1",
		VulnerabilityID: "vuln-1",
		Status:          models.StatusStarted,
		CreatedAt:       "2026-08-28T00:00:00Z",
		UpdatedAt:       "2026-08-28T00:00:00Z",
	}
	if _, err := db.Insert(ctx, "remediations", rec); err != nil {
		t.Fatal(err)
	}

	rec.Status = models.StatusFixGenerated
	rec.FixBranch = "fix/CVE-2024-0001-lodash-abcdefghij"
	if err := db.Update(ctx, "remediations", rec, "id = ?", "rem-1"); err != nil {
		t.Fatalf("update: %v", err)
	}

	var got models.Remediation
	if err := db.Get(ctx, &got, `SELECT * FROM remediations WHERE id = ?`, "rem-1"); err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusFixGenerated || got.FixBranch != rec.FixBranch {
		t.Errorf("got %+v", got)
	}
	// The id column is excluded from tag-driven updates.
	if got.ID != "rem-1" {
		t.Errorf("id changed to %q", got.ID)
	}
}

func TestEventSequencing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := models.Remediation{
		ID:              "rem-1",
		VulnerabilityID: "vuln-1",
		Status:          models.StatusStarted,
		CreatedAt:       "2026-08-28T00:00:00Z",
		UpdatedAt:       "2026-08-28T00:00:00Z",
	}
	if _, err := db.Insert(ctx, "remediations", rec); err != nil {
		t.Fatal(err)
	}

	for seq, payload := range []string{`{"type":"debug"}`, `{"type":"done"}`} {
		err := db.Exec(ctx,
			`INSERT INTO remediation_events (remediation_id, seq, payload, created_at) VALUES (?, ?, ?, ?)`,
			"rem-1", seq+1, payload, "2026-08-28T00:00:00Z")
		if err != nil {
			t.Fatalf("insert event: %v", err)
		}
	}

	type eventRow struct {
		Seq     int    `db:"seq"`
		Payload string `db:"payload"`
	}
	var events []eventRow
	err := db.Select(ctx, &events,
		`SELECT seq, payload FROM remediation_events WHERE remediation_id = ? ORDER BY seq`, "rem-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Seq != 1 || events[1].Payload != `{"type":"done"}` {
		t.Errorf("events = %+v", events)
	}
}
