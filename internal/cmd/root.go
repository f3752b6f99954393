package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/automaton"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/parser"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/sink"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "time-line",
	Short: "time-line: workflow log time line tool",
	Long: `time-line parses ecFlow/SMS server logs into structured records and
derives the daily running situation of workflow nodes from them.

It reads logs in batch (parse, situation) or follows them live (watch),
optionally storing records in Badger and publishing them to NATS.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.time-line.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "development logging")
	flags.StringP("output", "o", "text", "output format: text, json")
	flags.String("owner", "", "repository owner attached to every record")
	flags.String("repo", "", "repository name attached to every record")
	flags.Bool("drop-partial", false, "drop partial records of lines with a recoverable diagnostic")
	flags.String("badger", "", "directory of a Badger record store")
	flags.String("nats-url", "", "NATS server to publish records to")

	cobra.CheckErr(viper.BindPFlag("output", flags.Lookup("output")))
	cobra.CheckErr(viper.BindPFlag("owner", flags.Lookup("owner")))
	cobra.CheckErr(viper.BindPFlag("repo", flags.Lookup("repo")))
	cobra.CheckErr(viper.BindPFlag("parser.drop_partial", flags.Lookup("drop-partial")))
	cobra.CheckErr(viper.BindPFlag("sink.badger.path", flags.Lookup("badger")))
	cobra.CheckErr(viper.BindPFlag("sink.nats.url", flags.Lookup("nats-url")))

	viper.SetDefault("parser.workers", 0)
	viper.SetDefault("situation.stop_states", []string{string(automaton.Complete), string(automaton.Aborted)})
	viper.SetDefault("sink.nats.subject", sink.DefaultSubject)
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("checkpoint", ".time-line-state.json")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".time-line")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("time_line")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			cobra.CheckErr(fmt.Errorf("read config: %w", err))
		}
	}
}

// newLogger builds the CLI logger: production JSON by default, console
// output with --verbose. Logs go to stderr so stdout stays clean for output.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func parserContext() parser.Context {
	return parser.Context{
		Owner: viper.GetString("owner"),
		Repo:  viper.GetString("repo"),
	}
}

func newParser() *parser.EcflowParser {
	return parser.NewEcflowParser(parser.Options{DropPartial: viper.GetBool("parser.drop_partial")})
}

func stopStates() ([]automaton.State, error) {
	var states []automaton.State
	for _, name := range viper.GetStringSlice("situation.stop_states") {
		s, err := automaton.ParseState(name)
		if err != nil {
			return nil, fmt.Errorf("situation.stop_states: %w", err)
		}
		states = append(states, s)
	}
	return states, nil
}

// openSinks opens the configured record sinks. The returned Multi is empty
// when none is configured; the Source is the Badger store, if any.
func openSinks(log *zap.Logger) (sink.Multi, sink.Source, error) {
	var (
		sinks  sink.Multi
		source sink.Source
	)
	store, err := openStore(log)
	if err != nil {
		return nil, nil, err
	}
	if store != nil {
		sinks = append(sinks, store)
		source = store
	}
	if url := viper.GetString("sink.nats.url"); url != "" {
		pub, err := sink.NewNATSPublisher(url, viper.GetString("sink.nats.subject"), log)
		if err != nil {
			_ = sinks.Close()
			return nil, nil, err
		}
		sinks = append(sinks, pub)
	}
	return sinks, source, nil
}

// openStore opens the Badger store at sink.badger.path, or returns nil when
// the key is unset.
func openStore(log *zap.Logger) (*sink.BadgerStore, error) {
	path := viper.GetString("sink.badger.path")
	if path == "" {
		return nil, nil
	}
	store, err := sink.NewBadgerStore(path)
	if err != nil {
		return nil, err
	}
	log.Info("badger store opened", zap.String("path", path))
	return store, nil
}

// dateRange reads the --begin-date/--end-date flags (YYYY-MM-DD). An unset
// flag is returned as the zero time.
func dateRange(cmd *cobra.Command) (begin, end time.Time, err error) {
	for _, f := range []struct {
		name string
		dst  *time.Time
	}{{"begin-date", &begin}, {"end-date", &end}} {
		v, _ := cmd.Flags().GetString(f.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", f.name, v)
		}
		*f.dst = t
	}
	return begin, end, nil
}

func addDateFlags(cmd *cobra.Command) {
	cmd.Flags().String("begin-date", "", "first day, YYYY-MM-DD")
	cmd.Flags().String("end-date", "", "day after the last day, YYYY-MM-DD")
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
