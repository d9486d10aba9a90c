// Package config layers settings from defaults, the YAML config file,
// environment variables and CLI flags, in that precedence order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	RPCURL         string
	StepTimeout    string
	PollInterval   string
	NoSimulate     bool
	LogLevel       string
}

type Settings struct {
	OutputMode         string
	SelectFields       []string
	ResultsOnly        bool
	EnableCommands     []string
	RPCURL             string
	StepTimeout        time.Duration
	PollInterval       time.Duration
	GasMultiplier      float64
	Simulate           bool
	ExecutionStorePath string
	ExecutionLockPath  string
	LogLevel           string
}

type fileConfig struct {
	Output string `yaml:"output"`
	RPCURL string `yaml:"rpc_url"`
	Chain  struct {
		StepTimeout   string   `yaml:"step_timeout"`
		PollInterval  string   `yaml:"poll_interval"`
		GasMultiplier *float64 `yaml:"gas_multiplier"`
		Simulate      *bool    `yaml:"simulate"`
	} `yaml:"chain"`
	Execution struct {
		StorePath string `yaml:"store_path"`
		LockPath  string `yaml:"lock_path"`
	} `yaml:"execution"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.StepTimeout <= 0 {
		settings.StepTimeout = 2 * time.Minute
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = 2 * time.Second
	}
	if settings.GasMultiplier < 1 {
		settings.GasMultiplier = 1.2
	}
	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	storePath, lockPath, err := defaultStorePaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:         "json",
		StepTimeout:        2 * time.Minute,
		PollInterval:       2 * time.Second,
		GasMultiplier:      1.2,
		Simulate:           true,
		ExecutionStorePath: storePath,
		ExecutionLockPath:  lockPath,
		LogLevel:           "info",
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "agentexec", "config.yaml"), nil
}

func defaultStorePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "agentexec")
	return filepath.Join(dir, "executions.db"), filepath.Join(dir, "executions.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.RPCURL != "" {
		settings.RPCURL = cfg.RPCURL
	}
	if cfg.Chain.StepTimeout != "" {
		d, err := time.ParseDuration(cfg.Chain.StepTimeout)
		if err != nil {
			return fmt.Errorf("config chain.step_timeout: %w", err)
		}
		settings.StepTimeout = d
	}
	if cfg.Chain.PollInterval != "" {
		d, err := time.ParseDuration(cfg.Chain.PollInterval)
		if err != nil {
			return fmt.Errorf("config chain.poll_interval: %w", err)
		}
		settings.PollInterval = d
	}
	if cfg.Chain.GasMultiplier != nil {
		settings.GasMultiplier = *cfg.Chain.GasMultiplier
	}
	if cfg.Chain.Simulate != nil {
		settings.Simulate = *cfg.Chain.Simulate
	}
	if cfg.Execution.StorePath != "" {
		settings.ExecutionStorePath = cfg.Execution.StorePath
	}
	if cfg.Execution.LockPath != "" {
		settings.ExecutionLockPath = cfg.Execution.LockPath
	}
	if cfg.Log.Level != "" {
		settings.LogLevel = strings.ToLower(cfg.Log.Level)
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("AGENTEXEC_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("AGENTEXEC_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("AGENTEXEC_STEP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.StepTimeout = d
		}
	}
	if v := os.Getenv("AGENTEXEC_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.PollInterval = d
		}
	}
	if v := os.Getenv("AGENTEXEC_GAS_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.GasMultiplier = f
		}
	}
	if v := os.Getenv("AGENTEXEC_SIMULATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Simulate = b
		}
	}
	if v := os.Getenv("AGENTEXEC_EXECUTIONS_PATH"); v != "" {
		settings.ExecutionStorePath = v
	}
	if v := os.Getenv("AGENTEXEC_EXECUTIONS_LOCK_PATH"); v != "" {
		settings.ExecutionLockPath = v
	}
	if v := os.Getenv("AGENTEXEC_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		parts := strings.Split(flags.Select, ",")
		fields := make([]string, 0, len(parts))
		for _, part := range parts {
			f := strings.TrimSpace(part)
			if f != "" {
				fields = append(fields, f)
			}
		}
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if strings.TrimSpace(flags.EnableCommands) != "" {
		parts := strings.Split(flags.EnableCommands, ",")
		allowed := make([]string, 0, len(parts))
		for _, part := range parts {
			v := strings.TrimSpace(part)
			if v != "" {
				allowed = append(allowed, v)
			}
		}
		settings.EnableCommands = allowed
	}

	if flags.RPCURL != "" {
		settings.RPCURL = flags.RPCURL
	}
	if flags.StepTimeout != "" {
		d, err := time.ParseDuration(flags.StepTimeout)
		if err != nil {
			return fmt.Errorf("parse --step-timeout: %w", err)
		}
		settings.StepTimeout = d
	}
	if flags.PollInterval != "" {
		d, err := time.ParseDuration(flags.PollInterval)
		if err != nil {
			return fmt.Errorf("parse --poll-interval: %w", err)
		}
		settings.PollInterval = d
	}
	if flags.NoSimulate {
		settings.Simulate = false
	}
	if flags.LogLevel != "" {
		settings.LogLevel = strings.ToLower(flags.LogLevel)
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
