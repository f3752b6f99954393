package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/aggregator"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/hub"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/output"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/parser"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/server"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/sink"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/situation"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/tailer"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/watcher"
)

// sinkFlushInterval is how often watched records are written to the sinks.
const sinkFlushInterval = time.Second

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Follow log files and parse new lines",
	Long: `Watch one or more ecFlow log files (or glob patterns) and stream the
parsed records to the terminal in real time. Read offsets survive restarts
through a checkpoint file. With --serve a JSON dashboard API is started.

Examples:
  time-line watch /home/nwp/ecflow/ecflow.log
  time-line watch "/data/logs/**/*.log" --output json
  time-line watch ecflow.log --serve --port 9090 --badger ./records`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.Bool("serve", false, "serve the dashboard API")
	f.String("port", "", "dashboard port (default from server.port)")
	f.Int("memory-limit", 100000, "records kept in memory for the dashboard without a Badger store")
	f.Bool("quiet", false, "do not print records")
	cobra.CheckErr(viper.BindPFlag("server.port", f.Lookup("port")))
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	// --- Initialize watcher ---
	w, err := watcher.New(args, log)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	watchedPaths := w.Paths()
	if len(watchedPaths) == 0 {
		return fmt.Errorf("no files matched the given patterns: %v", args)
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "time-line watching %d file(s):\n", len(watchedPaths))
	for _, p := range watchedPaths {
		fmt.Fprintf(stderr, "   • %s\n", p)
	}
	fmt.Fprintln(stderr)

	// --- Initialize checkpoint and tailer ---
	ckpt, err := tailer.NewCheckpoint(viper.GetString("checkpoint"))
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	t := tailer.New(w, ckpt, log)

	// --- Parse hub and subscribers ---
	h := hub.New(t.Lines(), newParser(), parserContext(), log)
	renderSub := h.Subscribe()
	sinkSub := h.SubscribeBlocking()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	agg := aggregator.New(h.Subscribe(), h.Dropped, func() int { return len(w.Paths()) }, aggregator.NewMetrics(reg))

	// --- Sinks ---
	sinks, source, err := openSinks(log)
	if err != nil {
		return err
	}
	defer sinks.Close()

	serve, _ := cmd.Flags().GetBool("serve")
	if serve && source == nil {
		limit, _ := cmd.Flags().GetInt("memory-limit")
		mem := sink.NewMemory(limit)
		sinks = append(sinks, mem)
		source = mem
	}

	// --- Start pipeline ---
	go w.Start(ctx)
	go t.Start(ctx)
	go h.Start(ctx)
	go agg.Start(ctx)

	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		writeRecords(ctx, sinkSub, sinks, log)
	}()

	if serve {
		states, err := stopStates()
		if err != nil {
			return err
		}
		srv := server.New(server.Config{
			Hub:        h,
			Aggregator: agg,
			Source:     source,
			Calculator: situation.NewCalculator(states, situation.WithLogger(log)),
			Gatherer:   reg,
			Log:        log,
			Port:       viper.GetString("server.port"),
		})
		go func() {
			fmt.Fprintf(stderr, "dashboard API on http://localhost:%s\n\n", viper.GetString("server.port"))
			if err := srv.Start(); err != nil {
				log.Error("server stopped", zap.Error(err))
				cancel()
			}
		}()
	}

	// --- Render output ---
	quiet, _ := cmd.Flags().GetBool("quiet")
	renderer := output.New(viper.GetString("output"), cmd.OutOrStdout())
	for res := range renderSub {
		if quiet {
			continue
		}
		if err := renderer.Render(res); err != nil {
			log.Warn("render error", zap.Error(err))
		}
	}

	<-sinkDone
	fmt.Fprintln(stderr, "\ntime-line shutting down gracefully...")
	return nil
}

// writeRecords batches records from results and writes them to sinks every
// sinkFlushInterval until results is closed.
func writeRecords(ctx context.Context, results <-chan parser.Result, sinks sink.Multi, log *zap.Logger) {
	ticker := time.NewTicker(sinkFlushInterval)
	defer ticker.Stop()

	var batch []model.Record
	flush := func(ctx context.Context) {
		if len(batch) == 0 || len(sinks) == 0 {
			batch = batch[:0]
			return
		}
		if err := sinks.Write(ctx, batch); err != nil {
			log.Error("write records", zap.Int("records", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case res, ok := <-results:
			if !ok {
				// ctx is already done here; give the last batch its own deadline.
				final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				flush(final)
				cancel()
				return
			}
			if res.Record != nil {
				batch = append(batch, *res.Record)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
