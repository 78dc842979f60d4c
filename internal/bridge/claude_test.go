package bridge

import (
	"strings"
	"testing"

	"github.com/aiguardian/remediator/models"
)

func TestParseStreamLineAssistantText(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"Upgrading lodash to 4.17.21"},{"type":"tool_use","name":"Edit"}]}}`
	events := parseStreamLine(line)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 (tool_use blocks are not relayed)", len(events))
	}
	if events[0].Type != "content" || events[0].Content != "Upgrading lodash to 4.17.21" {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestParseStreamLineMultipleTextBlocks(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"first"},{"type":"text","text":"second"}]}}`
	events := parseStreamLine(line)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Content != "first" || events[1].Content != "second" {
		t.Errorf("events out of order: %+v", events)
	}
}

func TestParseStreamLineSystem(t *testing.T) {
	line := `{"type":"system","subtype":"init","data":{"cwd":"/tmp/ws"}}`
	events := parseStreamLine(line)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != "system" || ev.Subtype != "init" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Data["cwd"] != "/tmp/ws" {
		t.Errorf("system data not carried: %+v", ev.Data)
	}
}

func TestParseStreamLineResult(t *testing.T) {
	line := `{"type":"result","total_cost_usd":0.0421,"duration_ms":95210,"num_turns":7,"session_id":"sess-123","is_error":false}`
	events := parseStreamLine(line)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != "result" || ev.SessionID != "sess-123" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.CostUSD != 0.0421 || ev.DurationMS != 95210 || ev.NumTurns != 7 || ev.IsError {
		t.Errorf("result fields not carried: %+v", ev)
	}
}

func TestParseStreamLineGarbage(t *testing.T) {
	for _, line := range []string{"not json", `{"type":"user"}`, `{"type":"assistant"}`, "{}"} {
		if events := parseStreamLine(line); len(events) != 0 {
			t.Errorf("line %q produced events: %+v", line, events)
		}
	}
}

func TestInitialPromptCVE(t *testing.T) {
	target := models.Target{Kind: models.TargetCVE, CVEID: "CVE-2024-0001", Package: "lodash"}
	p := InitialPrompt(target)
	if !strings.Contains(p, "CVE-2024-0001") || !strings.Contains(p, "lodash") {
		t.Errorf("prompt missing target details: %q", p)
	}
}

func TestInitialPromptSAST(t *testing.T) {
	target := models.Target{
		Kind:        models.TargetSAST,
		Rule:        "go-sec-101",
		RuleMessage: "use of weak hash",
		FilePath:    "internal/auth/token.go",
		LineNumber:  42,
	}
	p := InitialPrompt(target)
	for _, want := range []string{"go-sec-101", "use of weak hash", "internal/auth/token.go", "line 42"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestSystemPromptForbidsGit(t *testing.T) {
	for _, kind := range []models.TargetKind{models.TargetCVE, models.TargetSAST} {
		p := strings.ToLower(SystemPrompt(models.Target{Kind: kind}))
		if !strings.Contains(p, "git") {
			t.Errorf("%s system prompt does not mention the git restriction", kind)
		}
	}
}
