package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/hotbundle/internal/config"
	"github.com/l3aro/hotbundle/internal/control"
	"github.com/l3aro/hotbundle/internal/daemon"
	"github.com/l3aro/hotbundle/internal/log"
	"github.com/l3aro/hotbundle/pkg/bundler"
	"github.com/l3aro/hotbundle/pkg/cache"
	"github.com/l3aro/hotbundle/pkg/dirty"
	"github.com/l3aro/hotbundle/pkg/engine"
	"github.com/l3aro/hotbundle/pkg/harness"
	"github.com/l3aro/hotbundle/pkg/runloop"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the live-reload loop",
	Long: `Bundles the entry file, invokes its entry point and repeats every interval.
Edits to any reachable source are picked up on the next iteration. The loop
listens on a unix socket so "hotbundle ctl" can pause, resume or halt it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if socket, _ := cmd.Flags().GetString("socket"); socket != "" {
			cfg.SocketPath = socket
		}
		paused, _ := cmd.Flags().GetBool("paused")
		noControl, _ := cmd.Flags().GetBool("no-control")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runLoop(ctx, cfg, paused, !noControl)
	},
}

func init() {
	runCmd.Flags().String("socket", "", "Control socket path")
	runCmd.Flags().Bool("paused", false, "Start paused until \"hotbundle ctl start\"")
	runCmd.Flags().Bool("no-control", false, "Do not listen on the control socket")
	RootCmd.AddCommand(runCmd)
}

func runLoop(ctx context.Context, cfg *config.Config, paused, withControl bool) error {
	logger := newLogger(cfg)

	var mirror io.Writer
	if cfg.LogFile != "" {
		file := log.NewRotatingFile(log.FileConfig{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
		})
		defer file.Close()
		mirror = file
	}
	diagnostics := log.NewDiagnostics(os.Stdout, mirror)

	b, err := bundler.New(cfg.Root, cfg.Entry, bundler.WithLogger(logger))
	if err != nil {
		return err
	}

	sandbox := engine.NewGojaSandbox(
		engine.WithEntryPoint(cfg.EntryPoint),
		engine.WithCache(cache.New(cache.Options{MaxSize: cfg.CacheSize})),
		engine.WithLogger(logger),
		engine.WithConsole(os.Stdout),
	)

	recorder := harness.NewRecorder(func(line string) {
		fmt.Fprintln(os.Stdout, line)
	})

	session, err := runloop.New(runloop.Options{
		Bundler:     b,
		Sandbox:     sandbox,
		Harness:     recorder,
		Diagnostics: diagnostics,
		Logger:      logger,
		Tracker:     dirty.New(),
		Fixtures:    cfg.Fixtures,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return err
	}
	if withControl {
		release, err := daemon.Acquire(daemon.RunStatus{
			SocketPath: cfg.SocketPath,
			Entry:      b.Entry(),
			Version:    RootCmd.Version,
		})
		if err != nil {
			return err
		}
		defer release()
	}

	if !paused {
		session.DoStart()
	}

	logger.Info("hot reload started", "entry", b.Entry(), "entry_point", cfg.EntryPoint, "paused", paused)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		return session.Run(gctx)
	})
	if withControl {
		srv := control.NewServer(cfg.SocketPath, session, logger)
		g.Go(func() error {
			return srv.Serve(gctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("hot reload interrupted", "iterations", session.Iteration())
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("hot reload finished", "iterations", session.Iteration(), "evaluations", sandbox.Evaluations())
	return nil
}
