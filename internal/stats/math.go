package stats

import (
	"math"
	"slices"
)

// CalculateMedianDiscrete finds the median value in a slice of integers.
func CalculateMedianDiscrete(values []int) float64 {
	if len(values) == 0 {
		return 0
	}

	// Work on a copy to avoid mutating the original
	temp := make([]int, len(values))
	copy(temp, values)
	slices.Sort(temp)

	n := len(temp)
	if n%2 == 1 {
		return float64(temp[n/2])
	}
	return float64(temp[n/2-1]+temp[n/2]) / 2.0
}

// NearestRank returns the element of an ascending slice at index floor((n-1)*p).
func NearestRank(sorted []int, p float64) int {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(float64(len(sorted)-1) * p))
	idx = min(max(idx, 0), len(sorted)-1)
	return sorted[idx]
}

// Round1 rounds to one decimal place.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Summary describes a distribution of day counts with Tukey fences.
type Summary struct {
	Count      int     `json:"count"`
	Min        int     `json:"min"`
	Max        int     `json:"max"`
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	Q1         int     `json:"q1"`
	Q3         int     `json:"q3"`
	IQR        int     `json:"iqr"`
	LowerFence float64 `json:"lower_fence"`
	UpperFence float64 `json:"upper_fence"`
}

// Summarize computes the Summary over all values. Empty input yields zeros.
func Summarize(values []int) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	sum := 0
	for _, v := range sorted {
		sum += v
	}

	q1 := NearestRank(sorted, 0.25)
	q3 := NearestRank(sorted, 0.75)
	iqr := q3 - q1

	return Summary{
		Count:      len(sorted),
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		Mean:       Round1(float64(sum) / float64(len(sorted))),
		Median:     CalculateMedianDiscrete(sorted),
		Q1:         q1,
		Q3:         q3,
		IQR:        iqr,
		LowerFence: float64(q1) - 1.5*float64(iqr),
		UpperFence: float64(q3) + 1.5*float64(iqr),
	}
}

// SplitOutliers partitions values into those inside the Summary fences and those outside.
// Both results are ascending and never nil.
func SplitOutliers(values []int, s Summary) (inliers, outliers []int) {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	inliers, outliers = []int{}, []int{}
	for _, v := range sorted {
		f := float64(v)
		if f < s.LowerFence || f > s.UpperFence {
			outliers = append(outliers, v)
		} else {
			inliers = append(inliers, v)
		}
	}
	return inliers, outliers
}
