package table

import (
	"github.com/montanaflynn/stats"

	"idemat/internal/util"
)

// ColumnStats summarises the numeric cells of one column.
type ColumnStats struct {
	Column     string  `json:"column"`
	Count      int     `json:"count"`
	Blank      int     `json:"blank"`
	NonNumeric int     `json:"nonNumeric"`
	Sum        float64 `json:"sum"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	StdDev     float64 `json:"stdDev"`
}

func (t *Table) Describe(column string) (ColumnStats, error) {
	values, err := t.Column(column)
	if err != nil {
		return ColumnStats{}, err
	}

	out := ColumnStats{Column: column}
	data := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if v == "" {
			out.Blank++
			continue
		}
		f, ok := util.ParseFloat(v)
		if !ok {
			out.NonNumeric++
			continue
		}
		data = append(data, f)
	}
	out.Count = len(data)
	if out.Count == 0 {
		return out, nil
	}

	// Errors below only signal empty input, ruled out above.
	out.Sum, _ = stats.Sum(data)
	out.Min, _ = stats.Min(data)
	out.Max, _ = stats.Max(data)
	out.Mean, _ = stats.Mean(data)
	out.Median, _ = stats.Median(data)
	out.StdDev, _ = stats.StandardDeviation(data)
	return out, nil
}
