package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/encops/updatectl/pkg/config"
	"github.com/encops/updatectl/pkg/enc"
	"github.com/encops/updatectl/pkg/lock"
	"github.com/encops/updatectl/pkg/policy"
	"github.com/encops/updatectl/pkg/run"
	"github.com/encops/updatectl/pkg/store"
	"github.com/encops/updatectl/pkg/types"
)

var (
	onCmd = &cobra.Command{
		Use:   string(types.ModeOn),
		Short: "Switch security updates on for all hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSwitch(types.ModeOn)
		},
	}
	offCmd = &cobra.Command{
		Use:   string(types.ModeOff),
		Short: "Switch updates off for all hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSwitch(types.ModeOff)
		},
	}
	updateCmd = &cobra.Command{
		Use:   string(types.ModeUpdate),
		Short: "Suspend security updates during a downtime and resume after it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSwitch(types.ModeUpdate)
		},
	}
	statusCmd = &cobra.Command{
		Use:   string(types.ModeStatus),
		Short: "Report the updates policy of all hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSwitch(types.ModeStatus)
		},
	}
)

func runSwitch(mode types.Mode) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return NewErrWithCode(err, exitLoad)
	}
	if encDir != "" {
		cfg.ENCDir = encDir
	}
	if lockFile != "" {
		cfg.LockFile = lockFile
	}
	if historyDB != "" {
		cfg.HistoryDB = historyDB
	}

	l, err := lock.Acquire(cfg.LockFile)
	if err != nil {
		return err
	}
	defer l.Release()

	logger = logger.WithValues("run_id", uuid.NewString(), "mode", mode)
	logger.V(1).Info("starting run", "enc_dir", cfg.ENCDir, "dry_run", dryRun)

	runner := run.Runner{
		Dir: enc.NewDir(cfg.ENCDir, logger),
		Log: logger,
	}
	if cfg.HistoryDB != "" {
		history, err := store.NewHistoryStore(cfg.HistoryDB)
		if err != nil {
			return NewErrWithCode(err, exitLoad)
		}
		defer history.CloseDB()
		runner.History = history
	}

	result, err := runner.Execute(run.Context{
		Mode:      mode,
		Today:     time.Now(),
		Downtimes: cfg.Downtimes(),
		DryRun:    dryRun,
	})
	if result != nil {
		render(result, logger)
	}
	if err != nil {
		if errors.Is(err, policy.ErrRefused) {
			return err
		}
		return NewErrWithCode(err, exitCodeForRunError(err))
	}
	return nil
}

func exitCodeForRunError(err error) int {
	if code := exitCode(err); code != exitGeneric {
		return code
	}
	return exitLoad
}

// render reports per-host state through the logger and, unless quiet, the
// histogram on stdout.
func render(result *run.Result, logger logr.Logger) {
	for _, d := range result.Decisions {
		value := d.Old
		if d.Changed {
			value = d.New
		}
		if value == types.PolicyAbsent {
			continue
		}
		logger.Info("host updates", "host", d.Host, "updates", value)
	}

	if quiet {
		return
	}
	for _, b := range result.Histogram.Buckets() {
		fmt.Printf("Hosts with %20s: %3d\n", policy.Label(b.Value), b.Count)
	}
}

func init() {
	rootCmd.AddCommand(onCmd)
	rootCmd.AddCommand(offCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(statusCmd)
}
