package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"clusterkit/adapters/model"
	"clusterkit/adapters/scan"
	"clusterkit/app"
	"clusterkit/domain/core"
	"clusterkit/domain/data"
	"clusterkit/domain/stage"
	"clusterkit/internal/errors"
	"clusterkit/internal/profiling"

	"github.com/spf13/cobra"
)

func addScanFlags(cmd *cobra.Command, f *scanFlags) {
	cmd.Flags().StringArrayVar(&f.axes, "axis", nil, "Grid axis name=v1,v2,... (repeatable, declared order kept)")
	cmd.Flags().StringArrayVar(&f.ranges, "range", nil, "Equidistant axis name=start:stop:count (repeatable)")
	cmd.Flags().StringVar(&f.model, "model", model.NameNorm, "Model function: zero|norm|polynomial")
	cmd.Flags().IntVar(&f.bins, "bins", 1, "Output bins of the polynomial model")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel model evaluations (default SCAN_WORKERS)")
	cmd.Flags().StringVar(&f.imagPrefix, "imaginary-prefix", "", "Prefix marking imaginary axes (default IMAGINARY_PREFIX)")
}

// newScanner builds a scanner from the flags, falling back to configuration.
func (e *env) newScanner(f *scanFlags) (*scan.Scanner, error) {
	s := scan.New()
	s.SetLogger(e.logger)
	s.SetMetrics(e.recorder)

	workers := f.workers
	if workers == 0 {
		workers = e.cfg.Scan.Workers
	}
	s.SetWorkers(workers)

	prefix := f.imagPrefix
	if prefix == "" {
		prefix = e.cfg.Scan.ImaginaryPrefix
	}
	s.SetImaginaryPrefix(prefix)

	fn, err := model.Lookup(f.model, f.bins)
	if err != nil {
		return nil, err
	}
	s.SetDFunction(fn)

	if err := f.configure(s); err != nil {
		return nil, err
	}
	return s, nil
}

func newScanCmd(e *env) *cobra.Command {
	var f scanFlags
	var save string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Evaluate a model on a grid of sample points",
		Long: `Evaluate a model function on every sample point of a grid and print the rows.

Examples:
  clusterkit scan --axis a=0,1 --axis b=1i,2i --model norm
  clusterkit scan --range x=-1:1:5 --range im_x=0:1:3 --model polynomial --bins 4 --save demo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.newScanner(&f)
			if err != nil {
				return err
			}

			d := data.New()
			runner := app.NewStageRunner(e.logger, e.recorder)
			sr, err := runner.RunStage(cmd.Context(), stage.StageSpec{Name: stage.StageScan, Worker: s}, d)
			if err != nil {
				return errors.Wrap(err, "scan failed")
			}
			if err := printScan(cmd.OutOrStdout(), sr.Result.(*scan.ScanResult)); err != nil {
				return err
			}

			if save != "" {
				if err := e.save(cmd, save, d); err != nil {
					return err
				}
			}
			e.reportMetrics()
			return nil
		},
	}

	addScanFlags(cmd, &f)
	cmd.Flags().StringVar(&save, "save", "", "Persist the container under this name (needs STORE_DRIVER)")
	return cmd
}

func (e *env) save(cmd *cobra.Command, name string, d *data.Data) error {
	ds, err := core.ParseDatasetName(name)
	if err != nil {
		return errors.Wrap(err, "invalid --save")
	}
	store, closeStore, err := e.requireStore(cmd.Context(), "--save")
	if err != nil {
		return err
	}
	defer closeStore()
	if err := store.Save(cmd.Context(), ds, d); err != nil {
		return errors.Wrapf(err, "failed to save %s", name)
	}
	e.logger.Info("saved %d rows as %s", d.Len(), name)
	return nil
}

type scanRow struct {
	Index  int       `json:"index"`
	Point  []string  `json:"point"`
	Output []float64 `json:"output"`
}

func printScan(w io.Writer, res *scan.ScanResult) error {
	fmt.Fprintf(w, "# coefficients %v, %d points, fingerprint %s\n", res.CoeffNames, len(res.Points), res.Fingerprint)
	enc := json.NewEncoder(w)
	for i := range res.Points {
		row := scanRow{Index: res.Index[i], Output: res.Outputs[i]}
		for _, c := range res.Points[i] {
			row.Point = append(row.Point, fmt.Sprint(c))
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

func printProfiles(w io.Writer, profiles []profiling.BinProfile) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BIN\tN\tMISSING\tMEAN\tSTDDEV\tMEDIAN\tQ25\tQ75\tSKEW\tEXKURT\tNORMAL_P\tOUTLIERS")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\t%.3f\t%.3f\t%.3f\t%d\n",
			p.Bin, p.N, p.Missing, p.Mean, p.StdDev, p.Median, p.Q25, p.Q75, p.Skewness, p.Kurtosis, p.NormalP, p.Outliers)
	}
	return tw.Flush()
}

func newShowCmd(e *env) *cobra.Command {
	var profile bool
	cmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Print a stored container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := core.ParseDatasetName(args[0])
			if err != nil {
				return err
			}
			store, closeStore, err := e.requireStore(cmd.Context(), "show")
			if err != nil {
				return err
			}
			defer closeStore()

			d, err := store.Load(cmd.Context(), name)
			if err != nil {
				return errors.Wrapf(err, "failed to load %s", name)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "# %s: coefficients %v, %d rows, columns %v\n", name, d.CoeffNames(), d.Len(), d.AuxiliaryColumns())
			for _, k := range d.MetaKeys() {
				v, _ := d.Meta(k)
				fmt.Fprintf(w, "# %s = %s\n", k, v)
			}
			if profile {
				profiles, err := profiling.ProfileBins(d)
				if err != nil {
					return err
				}
				return printProfiles(w, profiles)
			}
			return printScan(w, &scan.ScanResult{
				CoeffNames: d.CoeffNames(),
				Index:      d.Index(),
				Points:     d.Points(),
				Outputs:    d.Outputs(),
			})
		},
	}
	cmd.Flags().BoolVar(&profile, "profile", false, "Print per-bin distribution statistics instead of rows")
	return cmd
}
