package report

// TrendPoint is one (date, raw value) pair of a trend series.
type TrendPoint struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// NumberStatistics summarizes the parseable values of a numeric series.
// All fields except Count are absent when no value parses.
type NumberStatistics struct {
	Average           *float64 `json:"average"`
	Max               *float64 `json:"max"`
	Min               *float64 `json:"min"`
	Sum               *float64 `json:"sum"`
	Count             int64    `json:"count"`
	StandardDeviation *float64 `json:"standard_deviation"`
	Median            *float64 `json:"median"`
}

// NumberReport is the full numeric report: trend plus statistics.
type NumberReport struct {
	Trend      []TrendPoint     `json:"trend"`
	Statistics NumberStatistics `json:"statistics"`
}

// EnumDistribution counts occurrences per observed value in range. Values
// never observed are absent from the maps.
type EnumDistribution struct {
	Distribution map[string]int64   `json:"distribution"`
	TotalCount   int64              `json:"total_count"`
	Percentages  map[string]float64 `json:"percentages"`
}

// EnumTrend nests per-date occurrence counts per value, plus the distinct
// values observed anywhere in range, first-seen from the latest date
// backward.
type EnumTrend struct {
	Trend   map[string]map[string]int64 `json:"trend"`
	Options []string                    `json:"options"`
}

// TextAnalysis reports keyword frequency, per-date raw text, and character
// length statistics over the present text values in range.
type TextAnalysis struct {
	KeywordFrequency map[string]int64  `json:"keyword_frequency"`
	TotalCount       int64             `json:"total_count"`
	AverageLength    float64           `json:"average_length"`
	MaxLength        int               `json:"max_length"`
	MinLength        int               `json:"min_length"`
	Timeline         map[string]string `json:"timeline"`
}
