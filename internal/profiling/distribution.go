package profiling

import (
	"math"
	"sort"

	"clusterkit/domain/core"
	"clusterkit/domain/data"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// BinProfile summarises the distribution of one output bin over the rows
// of a container. NaN values are skipped and counted in Missing.
type BinProfile struct {
	Bin      int     `json:"bin"`
	N        int     `json:"n"`
	Missing  int     `json:"missing"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Median   float64 `json:"median"`
	Q25      float64 `json:"q25"`
	Q75      float64 `json:"q75"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"excess_kurtosis"`
	NormalP  float64 `json:"normal_p"`
	Outliers int     `json:"outliers"`
}

// ProfileBins returns one profile per output bin of d.
func ProfileBins(d *data.Data) ([]BinProfile, error) {
	if d == nil || d.Len() == 0 {
		return nil, core.NewInputError("nothing to profile: container is empty")
	}
	outputs := d.Outputs()
	bins := len(outputs[0])

	profiles := make([]BinProfile, bins)
	for k := 0; k < bins; k++ {
		column := make([]float64, 0, len(outputs))
		for _, o := range outputs {
			if !math.IsNaN(o[k]) {
				column = append(column, o[k])
			}
		}
		p, err := AnalyzeDistribution(column)
		if err != nil {
			return nil, err
		}
		p.Bin = k
		p.Missing = len(outputs) - len(column)
		profiles[k] = p
	}
	return profiles, nil
}

// AnalyzeDistribution computes the summary statistics and shape markers of
// values. Shape markers need at least four values and are 0 otherwise.
func AnalyzeDistribution(values []float64) (BinProfile, error) {
	p := BinProfile{N: len(values)}
	if len(values) == 0 {
		nan := math.NaN()
		p.Mean, p.StdDev, p.Min, p.Max, p.Median, p.Q25, p.Q75, p.NormalP = nan, nan, nan, nan, nan, nan, nan, nan
		return p, nil
	}

	var err error
	if p.Mean, err = stats.Mean(values); err != nil {
		return p, err
	}
	if p.StdDev, err = stats.StandardDeviation(values); err != nil {
		return p, err
	}
	if p.Min, err = stats.Min(values); err != nil {
		return p, err
	}
	if p.Max, err = stats.Max(values); err != nil {
		return p, err
	}
	if p.Median, err = stats.Median(values); err != nil {
		return p, err
	}

	// Quartiles for IQR-based outlier detection
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	p.Q25 = stat.Quantile(0.25, stat.Empirical, sorted, nil)
	p.Q75 = stat.Quantile(0.75, stat.Empirical, sorted, nil)
	p.Outliers = detectOutliers(values, p.Q25, p.Q75)

	p.NormalP = 1
	if len(values) >= 4 && p.StdDev > 0 {
		p.Skewness = stat.Skew(values, nil)
		p.Kurtosis = stat.ExKurtosis(values, nil)
		p.NormalP = jarqueBeraP(len(values), p.Skewness, p.Kurtosis)
	}
	return p, nil
}

// jarqueBeraP returns the p-value of the Jarque-Bera normality statistic,
// which is chi-squared with two degrees of freedom under normality.
func jarqueBeraP(n int, skew, exKurtosis float64) float64 {
	jb := float64(n) / 6 * (skew*skew + exKurtosis*exKurtosis/4)
	return 1 - distuv.ChiSquared{K: 2}.CDF(jb)
}

// detectOutliers counts values outside 1.5 IQR of the quartiles.
func detectOutliers(values []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range values {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}
	return outlierCount
}
