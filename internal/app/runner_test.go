package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestTrimRootPath(t *testing.T) {
	if got := trimRootPath("agentexec plan validate"); got != "plan validate" {
		t.Fatalf("unexpected trim result: %s", got)
	}
}

func writePlanFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write plan file: %v", err)
	}
	return path
}

func TestRunnerPlanValidateAcceptsValidPlan(t *testing.T) {
	path := writePlanFile(t, `{
		"initial_token": "eth",
		"initial_amount": "1.5",
		"steps": [
			{"step_id": 1, "type": "onchainkit", "action": "swap_eth_to_usdc", "parameters": {"amount": "1.5"}}
		]
	}`)

	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"plan", "validate", "-f", path, "--results-only"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var report map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	if report["is_valid"] != true {
		t.Fatalf("expected valid plan, got %s", stdout.String())
	}
}

func TestRunnerPlanValidateReportsInvalidPlan(t *testing.T) {
	path := writePlanFile(t, `{"initial_token": "eth", "initial_amount": "1", "steps": []}`)

	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"plan", "validate", "-f", path, "--results-only"})
	if code != 0 {
		t.Fatalf("expected exit 0 for validate, got %d stderr=%s", code, stderr.String())
	}
	var report map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	if report["is_valid"] != false {
		t.Fatalf("expected invalid plan, got %s", stdout.String())
	}
	if report["error"] != "plan has no steps" {
		t.Fatalf("unexpected validation error: %v", report["error"])
	}
}

func TestRunnerErrorEnvelopeOnBlockedCommand(t *testing.T) {
	path := writePlanFile(t, `{"steps": []}`)

	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"plan", "validate", "-f", path, "--enable-commands", "version"})
	if code != 16 {
		t.Fatalf("expected exit 16, got %d stderr=%s", code, stderr.String())
	}
	var env map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse error envelope: %v output=%s", err, stderr.String())
	}
	if env["success"] != false {
		t.Fatalf("expected success=false, got %v", env["success"])
	}
}

func TestRunnerPlanRunRejectsInvalidPlan(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	path := writePlanFile(t, `{"initial_token": "eth", "initial_amount": "1", "steps": []}`)

	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"plan", "run", "-f", path})
	if code != 20 {
		t.Fatalf("expected invalid plan exit code, got %d stderr=%s", code, stderr.String())
	}
}

func TestRunnerVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	if code := r.Run([]string{"version"}); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	if stdout.Len() == 0 {
		t.Fatal("expected version output")
	}
}
