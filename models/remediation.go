package models

import (
	"strconv"
	"time"
)

// Status is the lifecycle state of a remediation record.
//
// Transitions:
//
//	STARTED --(diff empty)-----> FIX_PENDING
//	STARTED --(diff produced)--> FIX_GENERATED
//	FIX_PENDING --(regenerate, diff produced)--> FIX_GENERATED
//	FIX_GENERATED --(commit + PR)--> PR_RAISED
//	PR_RAISED --(explicit completion)--> COMPLETED
//
// Errors never force a transition; the record stays at its last
// successful status so the caller can retry.
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusFixPending   Status = "FIX_PENDING"
	StatusFixGenerated Status = "FIX_GENERATED"
	StatusPRRaised     Status = "PR_RAISED"
	StatusCompleted    Status = "COMPLETED"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusStarted, StatusFixPending, StatusFixGenerated, StatusPRRaised, StatusCompleted:
		return true
	}
	return false
}

// Remediation is the persisted record for one remediation lifecycle.
// Looked up by ID when the caller supplies one, otherwise by
// VulnerabilityID (most recent record for that vulnerability).
type Remediation struct {
	ID              string `db:"id" json:"id"`
	VulnerabilityID string `db:"vulnerability_id" json:"vulnerability_id"`
	Status          Status `db:"status" json:"status"`
	FixBranch       string `db:"fix_branch" json:"fix_branch,omitempty"`
	PRLink          string `db:"pr_link" json:"pr_link,omitempty"`
	CreatedAt       string `db:"created_at" json:"created_at"`
	UpdatedAt       string `db:"updated_at" json:"updated_at"`
	CompletedAt     string `db:"completed_at" json:"completed_at,omitempty"`
}

// TargetKind distinguishes the two classes of security finding this
// engine remediates.
type TargetKind string

const (
	TargetCVE  TargetKind = "cve"
	TargetSAST TargetKind = "sast"
)

// Target identifies what is being fixed. Immutable for the life of a
// remediation. Exactly one of the two field groups is populated,
// selected by Kind.
type Target struct {
	Kind TargetKind `json:"kind"`

	// CVE dependency vulnerability.
	CVEID   string `json:"cve_id,omitempty"`
	Package string `json:"package,omitempty"`

	// Static-analysis finding.
	Rule        string `json:"rule,omitempty"`
	RuleMessage string `json:"rule_message,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	LineNumber  int    `json:"line_number,omitempty"`
}

// Slug returns the branch-name fragment for the target, e.g.
// "CVE-2024-0001-lodash" or "go-sec-101-42".
func (t Target) Slug() string {
	if t.Kind == TargetSAST {
		return sanitizeSlug(t.Rule) + "-" + strconv.Itoa(t.LineNumber)
	}
	return sanitizeSlug(t.CVEID) + "-" + sanitizeSlug(t.Package)
}

func sanitizeSlug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}

// PullRequest describes a pull request opened by an SCM provider.
type PullRequest struct {
	ID         int64     `json:"id"`
	Number     int       `json:"number"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	HeadBranch string    `json:"head_branch"`
	BaseBranch string    `json:"base_branch"`
	CreatedAt  time.Time `json:"created_at"`
}
