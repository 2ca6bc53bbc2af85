package config

const (
	defaultDataDir                   = "~/.local/share/gradescan"
	defaultLogDir                    = "~/.local/share/gradescan/logs"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultAnalyzerModel             = "gpt-4o"
	defaultAnalyzerTimeoutSeconds    = 120
	defaultRosterTimeoutSeconds      = 30
	defaultGradebookTimeoutSeconds   = 30
	defaultRemediationTimeoutSeconds = 30
	defaultNoEvidenceFloor           = 55
	defaultEffortFloor               = 65
	defaultHeartbeatInterval         = 15
	defaultHeartbeatTimeout          = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Roster: Roster{
			TimeoutSeconds: defaultRosterTimeoutSeconds,
		},
		Analyzer: Analyzer{
			Model:          defaultAnalyzerModel,
			TimeoutSeconds: defaultAnalyzerTimeoutSeconds,
		},
		Grading: Grading{
			NoEvidenceFloor: defaultNoEvidenceFloor,
			EffortFloor:     defaultEffortFloor,
		},
		Gradebook: Gradebook{
			TimeoutSeconds: defaultGradebookTimeoutSeconds,
		},
		Remediation: Remediation{
			TimeoutSeconds: defaultRemediationTimeoutSeconds,
		},
		Workflow: Workflow{
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
