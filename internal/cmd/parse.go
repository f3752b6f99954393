package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/filter"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/hub"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/output"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/parser"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/tailer"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/watcher"
)

var parseCmd = &cobra.Command{
	Use:   "parse [paths...]",
	Short: "Parse log files into records",
	Long: `Parse one or more ecFlow log files (or glob patterns) and print the
records. With --begin-date/--end-date only records from the day before
begin up to end are kept. Records are written to the configured sinks.

Examples:
  time-line parse ecflow.log
  time-line parse "logs/**/*.log" --begin-date 2018-10-10 --end-date 2018-10-12
  time-line parse ecflow.log --output json --badger ./records`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	addDateFlags(parseCmd)
	parseCmd.Flags().Bool("diagnostics", false, "also print lines that produced no record")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	begin, end, err := dateRange(cmd)
	if err != nil {
		return err
	}
	showDiagnostics, _ := cmd.Flags().GetBool("diagnostics")

	results, err := parseFiles(ctx, args, log)
	if err != nil {
		return err
	}

	window := filter.CollectionWindow(begin, end)
	renderer := output.New(viper.GetString("output"), cmd.OutOrStdout())
	var records []model.Record
	counts := make(map[model.DiagnosticKind]int)
	for _, res := range results {
		if res.Diagnostic != nil {
			counts[res.Diagnostic.Kind]++
		}
		switch {
		case res.Record != nil && !window.Contains(res.Record.Timestamp):
			continue
		case res.Record != nil:
			records = append(records, *res.Record)
		case !showDiagnostics:
			continue
		}
		if err := renderer.Render(res); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	printDiagnosticSummary(cmd, len(results), counts)

	sinks, _, err := openSinks(log)
	if err != nil {
		return err
	}
	defer sinks.Close()
	if err := sinks.Write(ctx, records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// parseFiles expands the patterns, reads every matched file and parses the
// lines on a worker pool. Results keep file and line order.
func parseFiles(ctx context.Context, patterns []string, log *zap.Logger) ([]parser.Result, error) {
	paths := watcher.Expand(patterns, log)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files matched the given patterns: %v", patterns)
	}

	lines, err := readLines(ctx, paths)
	if err != nil {
		return nil, err
	}
	log.Info("read log files", zap.Int("files", len(paths)), zap.Int("lines", len(lines)))

	pc := parserContext()
	return hub.ParseAll(ctx, newParser(), pc, lines, viper.GetInt("parser.workers"))
}

func readLines(ctx context.Context, paths []string) ([]model.RawLine, error) {
	out := make(chan model.RawLine, 1024)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		errc <- tailer.ReadAll(ctx, paths, out)
	}()

	var lines []model.RawLine
	for l := range out {
		lines = append(lines, l)
	}
	if err := <-errc; err != nil {
		return nil, err
	}
	return lines, nil
}

func printDiagnosticSummary(cmd *cobra.Command, total int, counts map[model.DiagnosticKind]int) {
	if len(counts) == 0 {
		return
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "%d lines parsed, diagnostics:\n", total)
	for _, k := range kinds {
		fmt.Fprintf(w, "   %-28s %d\n", k, counts[model.DiagnosticKind(k)])
	}
}
