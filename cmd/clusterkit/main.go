package main

import (
	"fmt"
	"log"
	"os"

	"clusterkit/internal"
	"clusterkit/internal/config"
	"clusterkit/internal/metrics"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// env bundles what every command needs after startup.
type env struct {
	cfg      *config.Config
	logger   *internal.Logger
	registry *prometheus.Registry
	recorder *metrics.Recorder
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}
	rootCmd := &cobra.Command{
		Use:           "clusterkit",
		Short:         "Scan coefficient spaces, cluster the results and test their stability",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init()
		},
	}

	rootCmd.AddCommand(
		newScanCmd(e),
		newStabilityCmd(e),
		newShowCmd(e),
		newListCmd(e),
		newDeleteCmd(e),
		newVersionCmd(),
	)
	return rootCmd
}

func (e *env) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.logger = internal.NewLogger(cfg.Log.Level)

	if cfg.Metrics.Enabled {
		e.registry = prometheus.NewRegistry()
		e.recorder, err = metrics.NewRecorder(e.registry)
		if err != nil {
			return err
		}
	}
	return nil
}

// reportMetrics writes every collected counter and histogram count to the log.
func (e *env) reportMetrics() {
	if e.registry == nil {
		return
	}
	families, err := e.registry.Gather()
	if err != nil {
		e.logger.Warn("failed to gather metrics: %v", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				e.logger.Info("metric %s%s: %g", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				e.logger.Info("metric %s%s: %d observations, %.3fs total",
					mf.GetName(), labels, m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum())
			}
		}
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// no configuration needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "clusterkit", version)
		},
	}
}
