package report

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// keywordStrip matches every character that is not a CJK ideograph, an
// ASCII letter, a digit, or whitespace.
var keywordStrip = regexp.MustCompile(`[^\x{4e00}-\x{9fa5}a-zA-Z0-9\s]`)

// round2 rounds half-up to two decimal places, away from zero on ties.
func round2(v float64) float64 {
	if v < 0 {
		return -math.Floor(-v*100+0.5) / 100
	}
	return math.Floor(v*100+0.5) / 100
}

func ptr(v float64) *float64 {
	return &v
}

// numberStatistics computes the statistical summary of a trend series.
// Values that fail numeric parsing are excluded, not surfaced as errors.
func numberStatistics(trend []TrendPoint) NumberStatistics {
	values := make([]float64, 0, len(trend))
	for _, p := range trend {
		v, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return NumberStatistics{Count: 0}
	}

	sum := 0.0
	min := values[0]
	max := values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	n := float64(len(values))
	mean := sum / n

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= n

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	var median float64
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	} else {
		median = sorted[len(sorted)/2]
	}

	return NumberStatistics{
		Average:           ptr(round2(mean)),
		Max:               ptr(max),
		Min:               ptr(min),
		Sum:               ptr(sum),
		Count:             int64(len(values)),
		StandardDeviation: ptr(round2(math.Sqrt(variance))),
		Median:            ptr(round2(median)),
	}
}

// enumDistribution counts occurrences per distinct non-empty value and
// derives each value's percentage of the total.
func enumDistribution(values []string) EnumDistribution {
	distribution := make(map[string]int64)
	var total int64
	for _, v := range values {
		if v == "" {
			continue
		}
		distribution[v]++
		total++
	}

	percentages := make(map[string]float64, len(distribution))
	if total > 0 {
		for v, count := range distribution {
			percentages[v] = round2(float64(count) / float64(total) * 100)
		}
	}

	return EnumDistribution{
		Distribution: distribution,
		TotalCount:   total,
		Percentages:  percentages,
	}
}

// countKeywords tokenizes a text value and folds its tokens into the
// running frequency map. Tokens of a single character are discarded.
func countKeywords(freq map[string]int64, text string) {
	normalized := keywordStrip.ReplaceAllString(strings.ToLower(text), " ")
	for _, word := range strings.Fields(normalized) {
		if utf8.RuneCountInString(word) > 1 {
			freq[word]++
		}
	}
}
