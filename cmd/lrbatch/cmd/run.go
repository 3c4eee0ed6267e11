package cmd

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ab180/lrbatch/internal/util"
	"github.com/ab180/lrbatch/job"
	"github.com/ab180/lrbatch/metric"
	"github.com/ab180/lrbatch/repository"
	"github.com/ab180/lrbatch/test"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <job> [key=value...]",
		Short: "Runs a job",
		Long: "Runs a job with the given parameters and waits until it finishes.\n" +
			"With --schedule, the job runs on every tick of the cron expression until interrupted,\n" +
			"each time as a new instance identified by a run.id parameter.",
		Example: `  lrbatch run metrics
  lrbatch run metrics date=2021-01-01 --store etcd
  lrbatch run metrics --schedule "@every 10s" --metrics-addr :9090`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, args[0], args[1:])
		},
	}
	cmd.Flags().String("metrics-addr", "", "address to serve /metrics on (disabled if empty)")
	cmd.Flags().String("schedule", "", "cron expression to run the job repeatedly")
	cobra.CheckErr(viper.BindPFlag("metrics-addr", cmd.Flags().Lookup("metrics-addr")))
	cobra.CheckErr(viper.BindPFlag("schedule", cmd.Flags().Lookup("schedule")))

	return cmd
}

func runJob(cmd *cobra.Command, name string, args []string) error {
	factory, err := lookupJob(name)
	if err != nil {
		return err
	}
	params, err := parseParameters(args)
	if err != nil {
		return err
	}

	crd, err := openStore()
	if err != nil {
		return err
	}
	defer crd.Close()
	repo := repository.New(crd)
	launcher := job.NewLauncher(repo, job.WithMeterPrefix(viper.GetString("meter-prefix")))

	ctx, stop := util.ContextWithSignal(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := viper.GetString("metrics-addr"); addr != "" {
		shutdown := serveMetrics(addr)
		defer shutdown()
	}

	r := &runner{
		name:     name,
		launcher: launcher,
		repo:     repo,
		factory:  factory,
		out:      cmd.OutOrStdout(),
	}
	if spec := viper.GetString("schedule"); spec != "" {
		return r.schedule(ctx, spec, params)
	}
	e, err := r.launch(ctx, params)
	if err != nil {
		return err
	}
	if e.Status != job.Completed {
		return errors.Errorf("job %s finished with status %s", name, e.ExitStatus)
	}
	return nil
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metric.Global, promhttp.HandlerOpts{}))
	return mux
}

// serveMetrics exposes the global registry on /metrics until the returned function is called.
func serveMetrics(addr string) (shutdown func()) {
	srv := &http.Server{Addr: addr, Handler: metricsHandler()}

	go func() {
		log.Info("Serving metrics on {}/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics server stopped", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("Failed to shut down metrics server: {}", err)
		}
	}
}

type runner struct {
	name     string
	launcher *job.Launcher
	repo     *repository.Repository
	factory  test.JobFactory
	out      io.Writer
}

func (r *runner) launch(ctx context.Context, params job.Parameters) (*job.Execution, error) {
	j, err := r.factory(r.out)
	if err != nil {
		return nil, errors.Wrap(err, "build job")
	}
	return r.launcher.Run(ctx, j, params)
}

// schedule runs the job on every tick until the context is done. A tick is skipped while
// the former run is still in progress. Run IDs come from the store, so a restarted
// scheduler never runs an instance again.
func (r *runner) schedule(ctx context.Context, spec string, params job.Parameters) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		runID, err := r.repo.NextRunID(ctx, r.name)
		if err != nil {
			log.Error("Unable to start a scheduled run", err)
			return
		}
		runParams := job.Parameters{"run.id": strconv.FormatInt(runID, 10)}
		for k, v := range params {
			runParams[k] = v
		}
		if _, err := r.launch(ctx, runParams); err != nil {
			log.Error("Scheduled run failed", err)
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid schedule %q", spec)
	}

	log.Info("Running jobs on schedule {}", spec)
	c.Start()
	<-ctx.Done()
	log.Info("Waiting for the running job to finish")
	<-c.Stop().Done()
	return nil
}

// parseParameters parses key=value arguments.
func parseParameters(args []string) (job.Parameters, error) {
	params := make(job.Parameters, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("invalid parameter %q: expected key=value", arg)
		}
		params[k] = v
	}
	return params, nil
}
