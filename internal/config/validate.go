package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateGrading(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateGrading() error {
	for name, floor := range map[string]float64{
		"grading.no_evidence_floor": c.Grading.NoEvidenceFloor,
		"grading.effort_floor":      c.Grading.EffortFloor,
	} {
		if floor < 0 || floor > 100 {
			return fmt.Errorf("%s must be between 0 and 100", name)
		}
	}
	if c.Grading.EffortFloor < c.Grading.NoEvidenceFloor {
		return errors.New("grading.effort_floor must not be below grading.no_evidence_floor")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

// RequireAnalyzer reports an actionable error when the analysis service is unconfigured.
func (c *Config) RequireAnalyzer() error {
	if c.Analyzer.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/gradescan/config.toml"
		}
		return fmt.Errorf("analyzer.api_key is required. Set GRADESCAN_ANALYZER_API_KEY or edit %s (create with 'gradescan config init')", defaultPath)
	}
	return nil
}

// RequireRoster reports an actionable error when the identification service is unconfigured.
func (c *Config) RequireRoster() error {
	if c.Roster.BaseURL == "" {
		return errors.New("roster.base_url is required for identification. Edit the config file (create with 'gradescan config init')")
	}
	return nil
}
