package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gradescan/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the gradescan configuration file",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			expanded, err := config.ExpandPath(path)
			if err != nil {
				return err
			}
			if !force {
				if _, _, found, _ := config.Load(expanded); found {
					return fmt.Errorf("config already exists at %s (use --force to overwrite)", expanded)
				}
			}
			if err := config.CreateSample(expanded); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", expanded)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Data dir:        %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "Log dir:         %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Queue database:  %s\n", cfg.QueueDatabasePath())
			fmt.Fprintf(out, "Analyzer model:  %s\n", cfg.Analyzer.Model)
			fmt.Fprintf(out, "Analyzer key:    %s\n", maskSecret(cfg.Analyzer.APIKey))
			fmt.Fprintf(out, "Roster URL:      %s\n", valueOrUnset(cfg.Roster.BaseURL))
			fmt.Fprintf(out, "Gradebook URL:   %s\n", valueOrUnset(cfg.Gradebook.URL))
			fmt.Fprintf(out, "Remediation URL: %s\n", valueOrUnset(cfg.Remediation.URL))
			fmt.Fprintf(out, "Grade floors:    no-evidence %.0f, effort %.0f\n",
				cfg.Grading.NoEvidenceFloor, cfg.Grading.EffortFloor)
			fmt.Fprintf(out, "Logging:         %s/%s\n", cfg.Logging.Format, cfg.Logging.Level)
			return nil
		},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration, including external service settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			var warnings []string
			if err := cfg.RequireAnalyzer(); err != nil {
				warnings = append(warnings, err.Error())
			}
			if err := cfg.RequireRoster(); err != nil {
				warnings = append(warnings, err.Error())
			}
			if len(warnings) > 0 {
				for _, warning := range warnings {
					fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", warning)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}
}

func maskSecret(secret string) string {
	if strings.TrimSpace(secret) == "" {
		return "(unset)"
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func valueOrUnset(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(unset)"
	}
	return value
}
