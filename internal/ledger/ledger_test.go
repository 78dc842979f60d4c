package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aiguardian/remediator/internal/config"
	"github.com/aiguardian/remediator/internal/database"
	"github.com/aiguardian/remediator/models"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func status(s models.Status) *models.Status { return &s }

func TestSaveCreatesWithExplicitID(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.Save(ctx, "rem-1", "vuln-1", status(models.StatusStarted), Fields{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, err := l.Get(ctx, "rem-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != models.StatusStarted || rec.VulnerabilityID != "vuln-1" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.CreatedAt == "" || rec.UpdatedAt == "" {
		t.Errorf("timestamps not set: %+v", rec)
	}
}

func TestSaveDuplicateCreateKeepsFirst(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.Save(ctx, "rem-1", "vuln-1", status(models.StatusStarted), Fields{}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	// A concurrent generate for the same id must not fail the run.
	if err := l.Save(ctx, "rem-1", "vuln-1", status(models.StatusStarted), Fields{}); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	recs, err := l.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d records, want 1", len(recs))
	}
}

func TestSaveUpdateRequiresExistingID(t *testing.T) {
	l := newTestLedger(t)
	err := l.Save(context.Background(), "ghost", "vuln-1", status(models.StatusFixGenerated), Fields{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveByVulnerabilityID(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// No id, STARTED, nothing stored yet: creates with a generated id.
	if err := l.Save(ctx, "", "vuln-7", status(models.StatusStarted), Fields{}); err != nil {
		t.Fatalf("Save create: %v", err)
	}
	recs, err := l.ByVulnerability(ctx, "vuln-7")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID == "" {
		t.Fatalf("unexpected records: %+v", recs)
	}

	// No id, non-STARTED: updates the existing record.
	err = l.Save(ctx, "", "vuln-7", status(models.StatusFixGenerated), Fields{FixBranch: Ptr("fix/x")})
	if err != nil {
		t.Fatalf("Save update: %v", err)
	}
	rec, err := l.Get(ctx, recs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != models.StatusFixGenerated || rec.FixBranch != "fix/x" {
		t.Errorf("update not applied: %+v", rec)
	}

	// No id, non-STARTED, unknown vulnerability: not found.
	err = l.Save(ctx, "", "vuln-missing", status(models.StatusFixGenerated), Fields{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveNilStatusUpdatesFieldsOnly(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.Save(ctx, "rem-1", "vuln-1", status(models.StatusStarted), Fields{}); err != nil {
		t.Fatal(err)
	}
	err := l.Save(ctx, "rem-1", "vuln-1", nil, Fields{
		Transcript: []string{`{"type":"debug","data":"cloning"}`, `{"type":"done"}`},
	})
	if err != nil {
		t.Fatalf("Save transcript: %v", err)
	}

	rec, err := l.Get(ctx, "rem-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != models.StatusStarted {
		t.Errorf("status changed by field-only update: %s", rec.Status)
	}

	transcript, err := l.Transcript(ctx, "rem-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(transcript) != 2 || transcript[1] != `{"type":"done"}` {
		t.Errorf("transcript = %v", transcript)
	}
}

func TestTranscriptAppendsAcrossRuns(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.Save(ctx, "rem-1", "vuln-1", status(models.StatusStarted), Fields{}); err != nil {
		t.Fatal(err)
	}
	if err := l.Save(ctx, "rem-1", "vuln-1", nil, Fields{Transcript: []string{"a", "b"}}); err != nil {
		t.Fatal(err)
	}
	if err := l.Save(ctx, "rem-1", "vuln-1", nil, Fields{Transcript: []string{"c"}}); err != nil {
		t.Fatal(err)
	}

	transcript, err := l.Transcript(ctx, "rem-1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c"}
	if len(transcript) != len(want) {
		t.Fatalf("transcript = %v, want %v", transcript, want)
	}
	for i := range want {
		if transcript[i] != want[i] {
			t.Errorf("transcript[%d] = %q, want %q", i, transcript[i], want[i])
		}
	}
}

func TestCompleteLifecycle(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.Save(ctx, "rem-1", "vuln-1", status(models.StatusStarted), Fields{}); err != nil {
		t.Fatal(err)
	}

	// Completing before a PR exists is rejected.
	if _, err := l.Complete(ctx, "rem-1"); err == nil {
		t.Fatal("Complete accepted a STARTED remediation")
	}

	err := l.Save(ctx, "rem-1", "vuln-1", status(models.StatusPRRaised), Fields{
		PRLink:    Ptr("https://github.com/acme/app/pull/7"),
		FixBranch: Ptr("fix/CVE-1-pkg-abc123"),
	})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := l.Complete(ctx, "rem-1")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rec.Status != models.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", rec.Status)
	}
	if rec.CompletedAt == "" {
		t.Error("completed_at not stamped")
	}
	if rec.PRLink != "https://github.com/acme/app/pull/7" {
		t.Errorf("pr_link lost on completion: %q", rec.PRLink)
	}

	if _, err := l.Complete(ctx, "rem-1"); err == nil {
		t.Error("Complete accepted an already-completed remediation")
	}
}
