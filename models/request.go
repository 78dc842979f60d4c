package models

import (
	"fmt"
	"strings"
)

// MessageType selects what a generate-mode request means for the
// conversation with the fix-generating agent.
type MessageType string

const (
	// MessageStartGenerate begins a fresh remediation: clone, then a
	// first agent turn.
	MessageStartGenerate MessageType = "start_generate"
	// MessageStartApply asks for the generated fix to be committed and
	// raised as a PR. The agent is not consulted.
	MessageStartApply MessageType = "start_apply"
	// MessageFollowup continues an existing agent conversation in the
	// already-cloned workspace.
	MessageFollowup MessageType = "followup"
)

// FixMode is the ?mode= query parameter of the fix endpoints.
type FixMode string

const (
	ModeGenerate FixMode = "generate"
	ModeApply    FixMode = "apply"
)

// ParseFixMode validates a raw mode value.
func ParseFixMode(s string) (FixMode, error) {
	switch FixMode(s) {
	case ModeGenerate, ModeApply:
		return FixMode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q (expected generate or apply)", s)
}

// FixRequest is the request body of the CVE and SAST fix endpoints.
// The SAST-only fields are ignored for CVE requests and vice versa.
type FixRequest struct {
	ID              string      `json:"id,omitempty"`
	VulnerabilityID string      `json:"vulnerability_id,omitempty"`
	SessionID       string      `json:"session_id,omitempty"`
	Token           string      `json:"token"`
	Platform        string      `json:"platform"`
	Organization    string      `json:"organization"`
	Repository      string      `json:"repository"`
	Branch          string      `json:"branch,omitempty"`
	MessageType     MessageType `json:"message_type"`
	UserMessage     string      `json:"user_message,omitempty"`
	UserEmail       string      `json:"user_email,omitempty"`

	// CVE target.
	CVEID   string `json:"cve_id,omitempty"`
	Package string `json:"package,omitempty"`

	// SAST target.
	Rule        string `json:"rule,omitempty"`
	RuleMessage string `json:"rule_message,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	LineNo      int    `json:"line_no,omitempty"`
}

// Validate checks the request for the given target kind.
func (r FixRequest) Validate(kind TargetKind) error {
	switch r.MessageType {
	case MessageStartGenerate, MessageStartApply, MessageFollowup:
	default:
		return fmt.Errorf("invalid message_type %q", r.MessageType)
	}
	if r.MessageType == MessageFollowup && strings.TrimSpace(r.UserMessage) == "" {
		return fmt.Errorf("user_message is required for followup")
	}
	if r.Token == "" {
		return fmt.Errorf("token is required")
	}
	if r.Platform == "" || r.Organization == "" || r.Repository == "" {
		return fmt.Errorf("platform, organization and repository are required")
	}
	switch kind {
	case TargetCVE:
		if r.CVEID == "" || r.Package == "" {
			return fmt.Errorf("cve_id and package are required")
		}
	case TargetSAST:
		if r.Rule == "" || r.FilePath == "" {
			return fmt.Errorf("rule and file_path are required")
		}
		if r.Branch == "" {
			return fmt.Errorf("branch is required for sast remediation")
		}
	default:
		return fmt.Errorf("unknown target kind %q", kind)
	}
	return nil
}

// Target builds the remediation target for the given kind.
func (r FixRequest) Target(kind TargetKind) Target {
	if kind == TargetSAST {
		return Target{
			Kind:        TargetSAST,
			Rule:        r.Rule,
			RuleMessage: r.RuleMessage,
			FilePath:    r.FilePath,
			LineNumber:  r.LineNo,
		}
	}
	return Target{Kind: TargetCVE, CVEID: r.CVEID, Package: r.Package}
}

// Repo builds the repository reference for the request.
func (r FixRequest) Repo() RepoRef {
	return RepoRef{
		Platform:     r.Platform,
		Organization: r.Organization,
		Repository:   r.Repository,
		Branch:       r.Branch,
	}
}
