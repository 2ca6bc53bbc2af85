package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	if c.Analyzer.APIKey == "" {
		if value, ok := os.LookupEnv("GRADESCAN_ANALYZER_API_KEY"); ok {
			c.Analyzer.APIKey = value
		}
	}
	c.Analyzer.APIKey = strings.TrimSpace(c.Analyzer.APIKey)
	c.Analyzer.BaseURL = strings.TrimSpace(c.Analyzer.BaseURL)
	c.Analyzer.Model = strings.TrimSpace(c.Analyzer.Model)
	if c.Analyzer.Model == "" {
		c.Analyzer.Model = defaultAnalyzerModel
	}
	if c.Analyzer.TimeoutSeconds <= 0 {
		c.Analyzer.TimeoutSeconds = defaultAnalyzerTimeoutSeconds
	}

	c.Roster.BaseURL = strings.TrimSpace(c.Roster.BaseURL)
	c.Roster.APIKey = strings.TrimSpace(c.Roster.APIKey)
	if c.Roster.TimeoutSeconds <= 0 {
		c.Roster.TimeoutSeconds = defaultRosterTimeoutSeconds
	}

	c.Gradebook.URL = strings.TrimSpace(c.Gradebook.URL)
	if c.Gradebook.TimeoutSeconds <= 0 {
		c.Gradebook.TimeoutSeconds = defaultGradebookTimeoutSeconds
	}
	c.Remediation.URL = strings.TrimSpace(c.Remediation.URL)
	if c.Remediation.TimeoutSeconds <= 0 {
		c.Remediation.TimeoutSeconds = defaultRemediationTimeoutSeconds
	}

	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
