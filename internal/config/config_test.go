package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("output: plain\nrpc_url: https://file.example\nchain:\n  step_timeout: 1m\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("AGENTEXEC_OUTPUT", "json")
	t.Setenv("AGENTEXEC_RPC_URL", "https://env.example")
	flags := GlobalFlags{ConfigPath: configPath, Plain: true, RPCURL: "https://flag.example", StepTimeout: "3m"}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.RPCURL != "https://flag.example" {
		t.Fatalf("expected rpc url from flags, got %s", settings.RPCURL)
	}
	if settings.StepTimeout != 3*time.Minute {
		t.Fatalf("expected step timeout from flags, got %v", settings.StepTimeout)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("chain:\n  poll_interval: 10s\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("AGENTEXEC_POLL_INTERVAL", "5s")
	settings, err := Load(GlobalFlags{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.PollInterval != 5*time.Second {
		t.Fatalf("expected poll interval from env, got %v", settings.PollInterval)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	_, err := Load(GlobalFlags{JSON: true, Plain: true})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadDefaults(t *testing.T) {
	tmp := t.TempDir()
	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(tmp, "missing.yaml")})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.StepTimeout != 2*time.Minute || settings.PollInterval != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", settings)
	}
	if !settings.Simulate {
		t.Fatal("expected simulation enabled by default")
	}
	if settings.ExecutionStorePath == "" || settings.ExecutionLockPath == "" {
		t.Fatal("expected default store paths")
	}
}
