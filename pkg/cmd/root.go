package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
)

var (
	appName     = "updatectl"
	appLongName = "Switch fleet security updates on/off"
)

var (
	configFile string
	encDir     string
	lockFile   string
	historyDB  string
	logFile    string
	quiet      bool
	debug      bool
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         appLongName,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// newLogger builds the process logger. With --debug, detail messages at
// verbosity 1 become visible. With --logfile, log lines go to the file as
// well as stderr.
func newLogger() (logr.Logger, error) {
	if debug {
		stdr.SetVerbosity(1)
	}

	var w io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return logr.Discard(), fmt.Errorf("unable to open logfile: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
	}
	return stdr.New(log.New(w, "", log.LstdFlags)), nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/usr/local/etc/updates.conf", "Path of the configuration file")
	rootCmd.PersistentFlags().StringVarP(&encDir, "enc-dir", "y", "", "Directory with per-host ENC YAML files (overrides config)")
	rootCmd.PersistentFlags().StringVar(&lockFile, "lock-file", "", "Path of the single-instance lock file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&historyDB, "history-db", "", "Path of the run-history SQLite DB (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&logFile, "logfile", "l", "", "Path of the logfile, in addition to stderr")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode, do not print statistics")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Compute transitions but do not write any ENC file")
}
