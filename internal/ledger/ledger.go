// Package ledger persists remediation lifecycle records and their
// event transcripts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aiguardian/remediator/internal/database"
	"github.com/aiguardian/remediator/models"
)

// ErrNotFound is returned when a save or read targets a remediation
// that does not exist.
var ErrNotFound = errors.New("remediation not found")

// ErrNotRaised is returned when a remediation is marked complete before
// its PR has been raised.
var ErrNotRaised = errors.New("remediation has no raised PR")

// Fields carries the optional columns of a save. Nil pointers leave
// the stored value untouched.
type Fields struct {
	PRLink    *string
	FixBranch *string

	// Transcript events to append to the remediation's event log.
	Transcript []string
}

// Ledger reads and writes remediation records.
type Ledger struct {
	db database.DB
}

// New wraps a database handle in a Ledger.
func New(db database.DB) *Ledger {
	return &Ledger{db: db}
}

// Save creates or updates a remediation.
//
// With an explicit id: STARTED creates the record, any other status
// updates it and requires it to exist. Without an id the most recent
// record for vulnerabilityID is updated, or created when none exists
// and the status is STARTED. A nil status updates fields only.
// COMPLETED stamps completed_at.
func (l *Ledger) Save(ctx context.Context, id, vulnerabilityID string, status *models.Status, fields Fields) error {
	if id != "" {
		if status != nil && *status == models.StatusStarted {
			return l.create(ctx, id, vulnerabilityID)
		}
		rec, err := l.Get(ctx, id)
		if err != nil {
			return err
		}
		return l.update(ctx, rec.ID, status, fields)
	}

	recs, err := l.ByVulnerability(ctx, vulnerabilityID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		if status != nil && *status == models.StatusStarted {
			return l.create(ctx, uuid.NewString(), vulnerabilityID)
		}
		return fmt.Errorf("%w: vulnerability %s", ErrNotFound, vulnerabilityID)
	}
	return l.update(ctx, recs[0].ID, status, fields)
}

func (l *Ledger) create(ctx context.Context, id, vulnerabilityID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	rec := models.Remediation{
		ID:              id,
		VulnerabilityID: vulnerabilityID,
		Status:          models.StatusStarted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := l.db.Insert(ctx, "remediations", rec); err != nil {
		// Two generate requests for the same remediation can race on
		// the create; the existing record wins and the run proceeds.
		if isDuplicateKey(err) {
			slog.Debug("Remediation already exists, keeping first record", "id", id)
			return nil
		}
		return fmt.Errorf("creating remediation: %w", err)
	}
	return nil
}

func (l *Ledger) update(ctx context.Context, id string, status *models.Status, fields Fields) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC().Format(time.RFC3339)}

	if status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*status))
		if *status == models.StatusCompleted {
			sets = append(sets, "completed_at = ?")
			args = append(args, time.Now().UTC().Format(time.RFC3339))
		}
	}
	if fields.PRLink != nil {
		sets = append(sets, "pr_link = ?")
		args = append(args, *fields.PRLink)
	}
	if fields.FixBranch != nil {
		sets = append(sets, "fix_branch = ?")
		args = append(args, *fields.FixBranch)
	}

	args = append(args, id)
	query := "UPDATE remediations SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if err := l.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("updating remediation %s: %w", id, err)
	}

	if len(fields.Transcript) > 0 {
		if err := l.appendTranscript(ctx, id, fields.Transcript); err != nil {
			return err
		}
	}
	return nil
}

type eventRow struct {
	ID            int64  `db:"id"`
	RemediationID string `db:"remediation_id"`
	Seq           int64  `db:"seq"`
	Payload       string `db:"payload"`
	CreatedAt     string `db:"created_at"`
}

func (l *Ledger) appendTranscript(ctx context.Context, id string, events []string) error {
	var next []struct {
		Seq int64 `db:"seq"`
	}
	err := l.db.Select(ctx, &next,
		`SELECT COALESCE(MAX(seq), 0) AS seq FROM remediation_events WHERE remediation_id = ?`, id)
	if err != nil {
		return fmt.Errorf("reading transcript position: %w", err)
	}
	seq := int64(0)
	if len(next) > 0 {
		seq = next[0].Seq
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, payload := range events {
		seq++
		row := eventRow{
			RemediationID: id,
			Seq:           seq,
			Payload:       payload,
			CreatedAt:     now,
		}
		if _, err := l.db.Insert(ctx, "remediation_events", row); err != nil {
			return fmt.Errorf("appending transcript event: %w", err)
		}
	}
	return nil
}

// Get returns the remediation with the given id.
func (l *Ledger) Get(ctx context.Context, id string) (*models.Remediation, error) {
	var recs []models.Remediation
	err := l.db.Select(ctx, &recs, `SELECT * FROM remediations WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("reading remediation %s: %w", id, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &recs[0], nil
}

// List returns all remediations, newest first.
func (l *Ledger) List(ctx context.Context) ([]models.Remediation, error) {
	var recs []models.Remediation
	err := l.db.Select(ctx, &recs, `SELECT * FROM remediations ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing remediations: %w", err)
	}
	return recs, nil
}

// ByVulnerability returns all remediations for a vulnerability,
// newest first.
func (l *Ledger) ByVulnerability(ctx context.Context, vulnerabilityID string) ([]models.Remediation, error) {
	var recs []models.Remediation
	err := l.db.Select(ctx, &recs,
		`SELECT * FROM remediations WHERE vulnerability_id = ? ORDER BY created_at DESC, id`, vulnerabilityID)
	if err != nil {
		return nil, fmt.Errorf("reading remediations for %s: %w", vulnerabilityID, err)
	}
	return recs, nil
}

// Transcript returns the stored event payloads for a remediation, in
// emission order.
func (l *Ledger) Transcript(ctx context.Context, id string) ([]string, error) {
	var rows []eventRow
	err := l.db.Select(ctx, &rows,
		`SELECT * FROM remediation_events WHERE remediation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("reading transcript for %s: %w", id, err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Payload)
	}
	return out, nil
}

// Complete marks a remediation COMPLETED. The record must exist and
// have reached PR_RAISED.
func (l *Ledger) Complete(ctx context.Context, id string) (*models.Remediation, error) {
	rec, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusPRRaised {
		return nil, fmt.Errorf("%w: remediation %s is %s, only PR_RAISED can be completed", ErrNotRaised, id, rec.Status)
	}
	status := models.StatusCompleted
	if err := l.update(ctx, id, &status, Fields{}); err != nil {
		return nil, err
	}
	return l.Get(ctx, id)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "primary key")
}

// Ptr returns a pointer to v. Convenience for building Fields.
func Ptr[T any](v T) *T { return &v }
