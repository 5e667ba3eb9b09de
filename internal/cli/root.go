// Package cli implements the spriteforge command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/spriteforge/internal/config"
	"github.com/dshills/spriteforge/internal/logging"
)

// app carries what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logFile    string

	cfg config.Config
	log *logging.Logger
}

// NewRootCmd creates the root cobra command
func NewRootCmd(version string) *cobra.Command {
	a := &app{log: logging.Discard()}

	rootCmd := &cobra.Command{
		Use:   "spriteforge",
		Short: "Build and inspect sprite project archives",
		Long: `spriteforge turns Aseprite files into sprite project archives.

Each imported file becomes a sprite with its layers, frames and animation
tags; pixel data is stored once per distinct content.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.log.Close()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a TOML or YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Also write JSON logs to this rotating file")

	rootCmd.AddCommand(newImportCmd(a))
	rootCmd.AddCommand(newInspectCmd(a))
	rootCmd.AddCommand(newConvertCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = a.logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	l, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.cfg = cfg
	a.log = l
	a.log.Debug("configuration loaded", "path", a.configPath, "command", cmd.Name())
	return nil
}
