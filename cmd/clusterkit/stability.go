package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"clusterkit/adapters/benchmark"
	"clusterkit/adapters/cluster"
	"clusterkit/adapters/stability"
	"clusterkit/app"
	"clusterkit/domain/data"
	"clusterkit/domain/stage"
	"clusterkit/internal/errors"

	"github.com/spf13/cobra"
)

type stabilityFlags struct {
	strategy    string
	experiments int
	noise       float64
	fraction    float64
	seed        int64
	parallel    int
	clusters    int
	clusterBin  int
	asJSON      bool
}

func newStabilityCmd(e *env) *cobra.Command {
	var f scanFlags
	var sf stabilityFlags

	cmd := &cobra.Command{
		Use:   "stability",
		Short: "Test how stable the clustering of a scan is under perturbation",
		Long: `Scan a grid, cluster the outputs and repeat the process under perturbation.

Strategies:
  noisy      re-scan the grid with gaussian jitter of width --noise on every coordinate
  subsample  cluster random subsets holding --fraction of the scanned rows

Every experiment is scored against the unperturbed reference with the
matching_clusters, delta_n_clusters and average_bm_proximity figures of merit
(plus output_distance for the noisy strategy).

Example:
  clusterkit stability --range x=-2:2:21 --model polynomial --bins 3 --strategy noisy --experiments 20 --noise 0.05`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.newScanner(&f)
			if err != nil {
				return err
			}
			e.applyStabilityDefaults(cmd, &sf)

			newWorker := func() stage.Worker {
				c := cluster.New()
				c.SetLogger(e.logger)
				c.SetAlgorithm(cluster.Binning{K: sf.clusters, Bin: sf.clusterBin})
				bm := benchmark.New()
				bm.SetLogger(e.logger)
				return stage.NewChain(c, bm)
			}

			tester := stability.NewTester(stability.Config{
				Parallelism: sf.parallel,
				Seed:        sf.seed,
				Metrics:     e.recorder,
			}, e.logger)
			tester.AddFOM(stability.NewMatchingClusters(""))
			tester.AddFOM(stability.NewDeltaNClusters(""))
			tester.AddFOM(stability.NewAverageBMProximity(""))

			var plan *stage.StagePlan
			switch sf.strategy {
			case stability.StrategyNoisySample, "noisy":
				tester.AddFOM(stability.NewOutputDistance(""))
				tester.SetStrategy(&stability.NoisySample{
					Scanner:   s,
					Sigma:     sf.noise,
					Repeat:    sf.experiments,
					NewWorker: newWorker,
				})
				plan = stage.NewStagePlan(stage.StageSpec{Name: stage.StageStability, Worker: tester})
			case stability.StrategySubSample:
				tester.SetStrategy(&stability.SubSample{
					Fraction:  sf.fraction,
					Repeat:    sf.experiments,
					NewWorker: newWorker,
				})
				plan = stage.NewStagePlan(
					stage.StageSpec{Name: stage.StageScan, Worker: s},
					stage.StageSpec{Name: stage.StageStability, Worker: tester},
				)
			default:
				return errors.ConfigInvalid("unknown --strategy " + sf.strategy)
			}

			runner := app.NewStageRunner(e.logger, e.recorder)
			pr, err := runner.RunPlan(cmd.Context(), plan, data.New())
			if err != nil {
				return errors.Wrap(err, "stability test failed")
			}
			res := pr.Results[len(pr.Results)-1].Result.(*stability.Result)

			if sf.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(struct {
					*stability.Result
					Summary []stability.FOMSummary `json:"summary"`
				}{res, res.Summary()}); err != nil {
					return err
				}
			} else {
				printSummary(cmd.OutOrStdout(), res)
			}
			e.reportMetrics()
			return nil
		},
	}

	addScanFlags(cmd, &f)
	cmd.Flags().StringVar(&sf.strategy, "strategy", stability.StrategyNoisySample, "Perturbation: noisy|subsample")
	cmd.Flags().IntVar(&sf.experiments, "experiments", 0, "Number of experiments (default STABILITY_EXPERIMENTS)")
	cmd.Flags().Float64Var(&sf.noise, "noise", 0, "Jitter width of the noisy strategy (default STABILITY_NOISE)")
	cmd.Flags().Float64Var(&sf.fraction, "fraction", 0, "Row fraction of the subsample strategy (default STABILITY_FRACTION)")
	cmd.Flags().Int64Var(&sf.seed, "seed", 0, "Base random seed (default STABILITY_SEED)")
	cmd.Flags().IntVar(&sf.parallel, "parallel", 0, "Experiments running at once (default STABILITY_WORKERS)")
	cmd.Flags().IntVar(&sf.clusters, "clusters", 3, "Equal-width intervals of the binning clusterer")
	cmd.Flags().IntVar(&sf.clusterBin, "cluster-bin", 0, "Output bin the clusterer splits on")
	cmd.Flags().BoolVar(&sf.asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

// applyStabilityDefaults fills every flag the user did not set from the
// configuration.
func (e *env) applyStabilityDefaults(cmd *cobra.Command, sf *stabilityFlags) {
	c := e.cfg.Stability
	if !cmd.Flags().Changed("experiments") {
		sf.experiments = c.Experiments
	}
	if !cmd.Flags().Changed("noise") {
		sf.noise = c.Noise
	}
	if !cmd.Flags().Changed("fraction") {
		sf.fraction = c.Fraction
	}
	if !cmd.Flags().Changed("seed") {
		sf.seed = c.Seed
	}
	if !cmd.Flags().Changed("parallel") {
		sf.parallel = c.Workers
	}
}

func printSummary(w io.Writer, res *stability.Result) {
	fmt.Fprintf(w, "run %s: strategy %s, %d experiments, %d not evaluable\n\n",
		res.RunID, res.Strategy, len(res.Experiments), len(res.NotEvaluable()))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FOM\tN\tMISSING\tMEAN\tSTD\tMEDIAN\tMIN\tMAX")
	for _, s := range res.Summary() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\n",
			s.Name, s.N, s.Missing, s.Mean, s.StdDev, s.Median, s.Min, s.Max)
	}
	tw.Flush()

	for _, warning := range res.Warnings() {
		fmt.Fprintln(w, "warning:", warning)
	}
}
