package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/automaton"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/filter"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/hub"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/output"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/presenter"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/situation"
)

var situationCmd = &cobra.Command{
	Use:   "situation --node PATH --begin-date DATE --end-date DATE [paths...]",
	Short: "Compute the daily situations of a node",
	Long: `Compute the daily running situation of one node over [begin, end).

Records are read from the given log files, or from the Badger store when
no file is given. With --present the time the node reached a status is
summarised over the days it finished in --present-state.

Examples:
  time-line situation --node /grapes_meso_3km_post/18/tograph \
      --begin-date 2018-10-10 --end-date 2018-10-14 ecflow.log
  time-line situation --node /suite/task --begin-date 2018-10-01 \
      --end-date 2018-11-01 --badger ./records --present complete`,
	RunE: runSituation,
}

func init() {
	addDateFlags(situationCmd)
	f := situationCmd.Flags()
	f.String("node", "", "node path")
	f.String("present", "", "report the time of this status (queued, submitted, active, complete, aborted)")
	f.String("present-state", string(automaton.Complete), "only report days ending in this state")
	f.Float64("trim-ratio", presenter.DefaultTrimRatio, "share cut from each end for the trimmed mean")
	cobra.CheckErr(situationCmd.MarkFlagRequired("node"))
	cobra.CheckErr(situationCmd.MarkFlagRequired("begin-date"))
	cobra.CheckErr(situationCmd.MarkFlagRequired("end-date"))
	rootCmd.AddCommand(situationCmd)
}

func runSituation(cmd *cobra.Command, args []string) error {
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
	node, _ := cmd.Flags().GetString("node")

	report, err := presenterFromFlags(cmd, log)
	if err != nil {
		return err
	}
	states, err := stopStates()
	if err != nil {
		return err
	}

	window := filter.CollectionWindow(begin, end)
	var records []model.Record
	if len(args) > 0 {
		results, err := parseFiles(ctx, args, log)
		if err != nil {
			return err
		}
		records, _ = hub.Split(results)
		records = filter.Apply(records, filter.InWindow(window))
	} else {
		store, err := openStore(log)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("no log files given and no Badger store configured")
		}
		defer store.Close()
		records, err = store.Records(ctx, window)
		if err != nil {
			return fmt.Errorf("load records: %w", err)
		}
	}

	start := time.Now()
	calc := situation.NewCalculator(states, situation.WithLogger(log))
	situations, err := calc.GetSituations(ctx, records, node, begin, end)
	if err != nil {
		return err
	}
	log.Info("situations computed",
		zap.String("node", node),
		zap.Int("days", len(situations)),
		zap.Duration("took", time.Since(start)),
	)

	renderer := output.New(viper.GetString("output"), cmd.OutOrStdout())
	if err := renderer.RenderSituations(node, situations); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if report == nil {
		return nil
	}
	if err := renderer.RenderReport(report.Present(situations)); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// presenterFromFlags returns nil when --present is not set.
func presenterFromFlags(cmd *cobra.Command, log *zap.Logger) (*presenter.TimePoint, error) {
	name, _ := cmd.Flags().GetString("present")
	if name == "" {
		return nil, nil
	}
	status := model.ParseNodeStatus(name)
	if status == model.StatusUnknown {
		return nil, fmt.Errorf("--present: unknown status %q", name)
	}
	stateName, _ := cmd.Flags().GetString("present-state")
	state, err := automaton.ParseState(stateName)
	if err != nil {
		return nil, fmt.Errorf("--present-state: %w", err)
	}
	ratio, _ := cmd.Flags().GetFloat64("trim-ratio")
	if ratio < 0 || ratio >= 0.5 {
		return nil, fmt.Errorf("--trim-ratio: must be in [0, 0.5), got %g", ratio)
	}
	return &presenter.TimePoint{Status: status, State: state, TrimRatio: ratio, Log: log}, nil
}
