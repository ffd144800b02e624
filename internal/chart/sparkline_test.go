package chart

import (
	"math"
	"strings"
	"testing"

	"github.com/mrcode/hrt-tracker/internal/models"
)

func TestSparkline(t *testing.T) {
	values := []float64{100, 110, 120, 130, 140, 150, 140, 130, 120, 110, 100}

	chart := Sparkline(values, 8)
	if chart == "" {
		t.Fatal("Expected chart to be generated, got empty string")
	}

	lines := strings.Split(chart, "\n")
	if len(lines) != 8+2 {
		t.Fatalf("got %d lines, want 8 rows plus 2 labels", len(lines))
	}
	if lines[0] != "Max: 160" || lines[len(lines)-1] != "Min: 90" {
		t.Errorf("labels = %q / %q, want Max: 160 / Min: 90", lines[0], lines[len(lines)-1])
	}
	for i, row := range lines[1 : len(lines)-1] {
		if len([]rune(row)) != len(values) {
			t.Errorf("row %d width = %d, want %d", i, len([]rune(row)), len(values))
		}
		for _, r := range row {
			if !strings.ContainsRune(string(blocks), r) {
				t.Errorf("row %d: unexpected character %q", i, r)
			}
		}
	}

	t.Logf("Generated Chart:\n%s", chart)
}

func TestSparkline_PeakColumnIsTallest(t *testing.T) {
	values := []float64{100, 150, 100}
	lines := strings.Split(Sparkline(values, 6), "\n")
	rows := lines[1 : len(lines)-1]

	height := func(col int) int {
		n := 0
		for _, row := range rows {
			if []rune(row)[col] != blocks[0] {
				n++
			}
		}
		return n
	}
	if height(1) <= height(0) {
		t.Errorf("peak column height %d, want above %d", height(1), height(0))
	}
}

func TestSparkline_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		height int
	}{
		{"Empty", nil, 5},
		{"Single value", []float64{100}, 5},
		{"Zero height", []float64{1, 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sparkline(tt.values, tt.height); got != "" {
				t.Errorf("Sparkline() = %q, want empty", got)
			}
		})
	}
}

func TestSparkline_SineWave(t *testing.T) {
	var values []float64
	for i := 0; i < 24; i++ {
		values = append(values, 100+50*math.Sin(float64(i)*2*math.Pi/24))
	}

	chart := Sparkline(values, 10)
	if chart == "" {
		t.Fatal("Chart empty")
	}
	t.Logf("Sine Wave Chart:\n%s", chart)
}

func TestResample(t *testing.T) {
	curve := &models.PredictedCurve{
		TimeH:    []float64{0, 10},
		ConcPGmL: []float64{0, 100},
	}

	got := Resample(curve, 5)
	want := []float64{0, 25, 50, 75, 100}
	if len(got) != len(want) {
		t.Fatalf("Resample() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Resample()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if Resample(nil, 5) != nil {
		t.Error("Resample(nil) should be nil")
	}
	if got := Resample(curve, 1); len(got) != 1 || got[0] != 0 {
		t.Errorf("Resample(n=1) = %v, want [0]", got)
	}
}
