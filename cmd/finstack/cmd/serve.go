package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"finstack/internal/launcher"
	"finstack/internal/metrics"
	"finstack/internal/probe"
	"finstack/internal/stack"
	"finstack/internal/watcher"
	"finstack/pkg/logging"
	"finstack/pkg/shutdown"
	"finstack/pkg/store"
)

var (
	serveMetricsPort int
	serveKillTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve <service>",
	Short: "Launch a stack service process",
	Long: `Launch one of the platform's service processes:

  session   gunicorn serving the session-auth app (config.wsgi) on port 8000
  wallet    uvicorn serving the wallet API (app.main:app) on port 8001
  beat      celery beat under a file watcher that restarts it on .py changes

session and wallet replace the finstack process entirely, the way a shell
exec does; their servers handle reload-on-change themselves. beat stays
supervised: finstack watches the source tree and restarts the scheduler.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: stack.Names(),
	RunE:      runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&serveMetricsPort, "metrics-port", 0, "serve supervisor metrics on this port (beat only, 0=disabled)")
	serveCmd.Flags().DurationVar(&serveKillTimeout, "kill-timeout", watcher.DefaultKillTimeout, "grace period between SIGTERM and SIGKILL on restart (beat only)")
}

func runServe(cmd *cobra.Command, args []string) error {
	spec, err := stack.Lookup(args[0])
	if err != nil {
		return err
	}

	if spec.Kind == stack.KindScheduler {
		return runServeBeat(spec)
	}
	return runServeWeb(spec)
}

// runServeWeb validates and execs the server binary. On success it never
// returns: the server process takes over.
func runServeWeb(spec *stack.Spec) error {
	recordHistory(&store.Record{
		Kind: "exec",
		Name: string(spec.Name),
		Argv: store.FormatArgv(spec.Command()),
	})

	return launcher.New(spec, newLogger()).Exec()
}

// runServeBeat supervises the scheduler under the source watcher
func runServeBeat(spec *stack.Spec) error {
	logger, err := logging.NewFileLogger("beat", logging.ParseLevel(logLevel), false)
	if err != nil {
		logger = newLogger()
	}
	defer logger.Close()

	w, err := watcher.New(watcher.Config{
		Paths:    viper.GetStringSlice("watch.paths"),
		Exts:     spec.WatchExts,
		Debounce: watchDebounce(),
	}, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	hist := openHistory(logger)
	supMetrics := metrics.NewSupervisor(string(spec.Name))

	config := watcher.SupervisorConfig{
		KillTimeout: serveKillTimeout,
		OnRestart: func(cause watcher.RestartCause, result *launcher.Result) {
			supMetrics.RecordRestart(string(cause))
			if hist != nil {
				hist.Append(&store.Record{
					Kind:       "launch",
					Name:       string(spec.Name),
					Argv:       store.FormatArgv(spec.Command()),
					StartedAt:  result.StartTime,
					FinishedAt: result.EndTime,
					ExitCode:   result.ExitCode,
					Reason:     string(result.Reason),
				})
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sd := shutdown.New(15 * time.Second)
	if hist != nil {
		sd.Register(shutdown.CloseResource(hist, "history store"))
	}

	if serveMetricsPort > 0 {
		supMetrics.SetProcessUp(true)
		server := metrics.NewServer(serveMetricsPort, supMetrics, func() interface{} {
			return probe.CheckAll(stack.All(), probe.DefaultTimeout)
		}, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("metrics server failed", map[string]interface{}{"error": err.Error()})
			}
		}()
		sd.Register(shutdown.StopHTTPServer(server, "metrics"))
	}

	go w.Run(ctx)
	go func() {
		sd.Wait()
		cancel()
	}()

	supervisor := watcher.NewSupervisor(spec, w, config, logger)
	runErr := supervisor.Run(ctx)
	sd.Shutdown()
	return runErr
}
