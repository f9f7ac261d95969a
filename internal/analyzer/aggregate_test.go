package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []PerformanceMetrics {
	return []PerformanceMetrics{
		{Symbol: "LOW", SharpeRatio: 0.5, AnnualReturn: 0.05, TotalReturn: 0.04},
		{Symbol: "HIGH", SharpeRatio: 1.5, AnnualReturn: 0.20, TotalReturn: 0.18},
		{Symbol: "MID", SharpeRatio: 1.0, AnnualReturn: 0.10, TotalReturn: 0.09},
		{Symbol: "BAD", Insufficient: true},
	}
}

func TestRank(t *testing.T) {
	ranked := Rank(sampleRecords())
	require.Len(t, ranked, 3)
	assert.Equal(t, "HIGH", ranked[0].Symbol)
	assert.Equal(t, "MID", ranked[1].Symbol)
	assert.Equal(t, "LOW", ranked[2].Symbol)
}

func TestRankTieBreak(t *testing.T) {
	records := []PerformanceMetrics{
		{Symbol: "A", SharpeRatio: 1.0, AnnualReturn: 0.08},
		{Symbol: "B", SharpeRatio: 1.0, AnnualReturn: 0.12},
	}
	ranked := Rank(records)
	assert.Equal(t, "B", ranked[0].Symbol)
}

func TestRankDoesNotModifyInput(t *testing.T) {
	records := sampleRecords()
	Rank(records)
	assert.Equal(t, "LOW", records[0].Symbol)
}

func TestSummarize(t *testing.T) {
	summary := Summarize(sampleRecords())

	// The insufficient record is excluded from the count and the stats.
	assert.Equal(t, 3, summary.Count)
	assert.InDelta(t, 1.0, summary.SharpeRatio.Mean, 1e-9)
	assert.InDelta(t, 1.0, summary.SharpeRatio.Median, 1e-9)
	assert.InDelta(t, (0.05+0.20+0.10)/3, summary.AnnualReturn.Mean, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, UniverseSummary{}, Summarize(nil))
	assert.Equal(t, UniverseSummary{}, Summarize([]PerformanceMetrics{{Insufficient: true}}))
}

func TestTopSymbols(t *testing.T) {
	top := TopSymbols(sampleRecords(), 2)
	assert.Equal(t, []string{"HIGH", "MID"}, top)

	// Requesting more than available returns everything usable.
	assert.Len(t, TopSymbols(sampleRecords(), 10), 3)
}
