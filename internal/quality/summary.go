package quality

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary counts the qualities of a column's values. Stats is nil when no
// good numeric values were summarized.
type Summary struct {
	Count   int    `json:"count"`
	Good    int    `json:"good"`
	Unusual int    `json:"unusual"`
	Bad     int    `json:"bad"`
	Stats   *Stats `json:"stats,omitempty"`
}

// Stats describes the good values of a column. StdDev is the sample
// standard deviation and is 0 for a single value.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Add counts one quality.
func (s *Summary) Add(q Quality) {
	s.Count++
	switch q {
	case Good:
		s.Good++
	case Unusual:
		s.Unusual++
	default:
		s.Bad++
	}
}

// Summarize classifies values with c and computes the statistics of the
// good ones.
func (c *Classifier) Summarize(values []float64) Summary {
	var s Summary
	good := make([]float64, 0, len(values))
	for _, v := range values {
		q := c.Classify(v)
		s.Add(q)
		if q == Good {
			good = append(good, v)
		}
	}
	switch len(good) {
	case 0:
	case 1:
		s.Stats = &Stats{Mean: good[0], Min: good[0], Max: good[0]}
	default:
		mean, std := stat.MeanStdDev(good, nil)
		s.Stats = &Stats{Mean: mean, StdDev: std, Min: floats.Min(good), Max: floats.Max(good)}
	}
	return s
}

// Summarize summarizes values with the default classifier.
func Summarize(values []float64) Summary { return defaultClassifier.Summarize(values) }

// SummarizeQualities counts a sequence of qualities, such as the result of
// CheckTimeSeqStrict.
func SummarizeQualities(qs []Quality) Summary {
	var s Summary
	for _, q := range qs {
		s.Add(q)
	}
	return s
}
