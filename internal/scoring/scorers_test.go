package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTreasury(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  int
	}{
		{name: "zero", value: 0, want: 0},
		{name: "negative", value: -5, want: 0},
		{name: "NaN", value: math.NaN(), want: 0},
		{name: "below anchor clamps to zero", value: 25_000, want: 0},
		{name: "anchor", value: 100_000, want: 0},
		{name: "one million", value: 1_000_000, want: 25},
		{name: "ten million", value: 10_000_000, want: 50},
		{name: "saturates", value: 1e12, want: 100},
		{name: "half a billion", value: 5e8, want: 92},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Treasury(tt.value))
		})
	}
}

func TestActivity(t *testing.T) {
	assert.Equal(t, 0, Activity(0))
	assert.Equal(t, 0, Activity(-3))
	assert.Equal(t, 1, Activity(5))
	assert.Equal(t, 20, Activity(100))
	assert.Equal(t, 100, Activity(500))
	assert.Equal(t, 100, Activity(10_000))
}

func TestDiversification(t *testing.T) {
	tests := []struct {
		name   string
		assets int
		ratio  float64
		want   int
	}{
		{name: "no assets", assets: 0, ratio: 1, want: 0},
		{name: "native only", assets: 1, ratio: 1.0, want: 0},
		{name: "breadth capped at 60", assets: 10, ratio: 0.7, want: 60},
		{name: "balanced bonus", assets: 3, ratio: 0.5, want: 65},
		{name: "bonus excludes 0.3", assets: 3, ratio: 0.3, want: 45},
		{name: "bonus excludes 0.7", assets: 3, ratio: 0.7, want: 45},
		{name: "over-concentrated", assets: 4, ratio: 0.9, want: 40},
		{name: "no native", assets: 5, ratio: 0, want: 60},
		{name: "full bonus", assets: 4, ratio: 0.4, want: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diversification(tt.assets, tt.ratio))
		})
	}
}

func TestMaturity(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	oneYear := now.Add(-365 * 24 * time.Hour)
	fourYears := now.Add(-4 * 365 * 24 * time.Hour)
	future := now.Add(time.Hour)

	assert.Equal(t, 0, Maturity(nil, now))
	assert.Equal(t, 0, Maturity(&time.Time{}, now))
	assert.Equal(t, 0, Maturity(&future, now))
	assert.Equal(t, 30, Maturity(&oneYear, now))
	assert.Equal(t, 100, Maturity(&fourYears, now))
}

func TestHistory(t *testing.T) {
	assert.Equal(t, 0, History(0))
	assert.Equal(t, 0, History(-1))
	assert.Equal(t, 0, History(1))
	assert.Equal(t, 25, History(10))
	assert.Equal(t, 75, History(1000))
	assert.Equal(t, 100, History(10_000))
	assert.Equal(t, 100, History(1_000_000))
}
