// Package cli implements the devlaunch command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/config"
)

var (
	// Version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	// Configuration
	cfgFile      string
	verbose      bool
	noColor      bool
	outputFormat string

	// Colors
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)

	// For testing - allows redirecting output
	colorOutput io.Writer = os.Stdout
	errOutput   io.Writer = os.Stderr
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "devlaunch",
	Short: "devlaunch - development stacks from a sentence",
	Long: `devlaunch finds a docker compose template for the technologies you name,
fetches it from the shared catalog, renders it into a project and starts it.
When the catalog has nothing suitable it can ask an LLM to write one.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute runs the root command and reports a failure the way the user
// should see it.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		Error("%v", err)
		if fix := apperr.FixOf(err); fix != "" {
			Info("Fix: %s", fix)
		}
	}
	return err
}

// SetVersion sets the version information
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./devlaunch.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.AddCommand(
		newListCmd(),
		newGenerateCmd(),
		newUpCmd(),
		newDownCmd(),
		newNewCmd(),
		newResolveCmd(),
		newIndexCmd(),
		newServeCmd(),
		newMCPCmd(),
		newConfigCmd(),
	)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	used, err := config.Init(viper.GetViper(), cfgFile)
	if err != nil {
		Warn("%v", err)
		return
	}
	if used != "" {
		Debug("Using config file: %s", used)
	}
}

// loadConfig returns the effective settings.
func loadConfig() *config.Config {
	return config.FromViper(viper.GetViper())
}

// newLogger builds the structured logger handed to services. CLI commands
// log warnings only unless --verbose is set; long-running commands pass a
// lower floor.
func newLogger(floor slog.Level) *slog.Logger {
	level := floor
	if IsVerbose() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(errOutput, &slog.HandlerOptions{Level: level}))
}

// Helper functions for consistent output

// Success prints a success message
func Success(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(colorOutput, successColor.Sprintf("✓ "+format, args...))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(errOutput, errorColor.Sprintf("✗ "+format, args...))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(colorOutput, infoColor.Sprintf("ℹ "+format, args...))
}

// Warn prints a warning message
func Warn(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(errOutput, warnColor.Sprintf("⚠ "+format, args...))
}

// Debug prints a debug message if verbose mode is enabled
func Debug(format string, args ...interface{}) {
	if IsVerbose() {
		_, _ = fmt.Fprintln(errOutput, color.New(color.FgMagenta).Sprintf("» "+format, args...))
	}
}

// IsVerbose returns true if verbose mode is enabled
func IsVerbose() bool {
	return viper.GetBool("verbose")
}
