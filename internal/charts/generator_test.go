package charts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/testrunner/dashboard/internal/history"
)

func sampleEntries() []history.Entry {
	base := time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)
	// newest first
	return []history.Entry{
		{ID: "c", RecordedAt: base.Add(2 * time.Hour), Total: 4, Passed: 4},
		{ID: "b", RecordedAt: base.Add(time.Hour), Total: 4, Passed: 2, Failed: 2},
		{ID: "a", RecordedAt: base, Total: 4, Passed: 1, Failed: 3},
	}
}

func TestPassRateChart(t *testing.T) {
	g := NewGenerator()
	assert.Empty(t, g.PassRateChart(nil))

	out := g.PassRateChart(sampleEntries())
	assert.Contains(t, out, "Pass Rate Trend")
	first := strings.Index(out, "Jan 02 03:04")
	last := strings.Index(out, "Jan 02 05:04")
	assert.True(t, first >= 0 && last > first, "x axis should run oldest to newest")
}

func TestStatusChart(t *testing.T) {
	g := NewGenerator()
	assert.Empty(t, g.StatusChart(nil))

	out := g.StatusChart(sampleEntries())
	assert.Contains(t, out, "Results per Run")
	assert.Contains(t, out, "Passed")
	assert.Contains(t, out, "Failed")
}

func TestPassRates(t *testing.T) {
	assert.Equal(t, []float64{25, 50, 100}, PassRates(sampleEntries()))
	assert.Empty(t, PassRates(nil))
}

func TestSparkline(t *testing.T) {
	g := NewGenerator()
	assert.Empty(t, g.Sparkline(nil))

	out := g.Sparkline([]float64{0, 50, 100})
	assert.Contains(t, out, `points="0.0,30.0 50.0,15.0 100.0,0.0"`)

	single := g.Sparkline([]float64{42})
	assert.Contains(t, single, `points="0.0,30.0 100.0,30.0"`)
}
