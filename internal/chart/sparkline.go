package chart

import (
	"bytes"
	"fmt"
	"math"

	"github.com/mrcode/hrt-tracker/internal/models"
)

// Braille blocks, 4 sub-blocks high: empty, 1/4, 1/2, 3/4, full
var blocks = []rune{'⠀', '⣀', '⣤', '⣶', '⣿'}

const subBlocksPerLine = 4.0

// Sparkline renders values as a multi-line Braille chart with min/max labels.
// It returns an empty string for fewer than two values.
func Sparkline(values []float64, height int) string {
	if len(values) < 2 || height <= 0 {
		return ""
	}

	minVal, maxVal := values[0], values[0]
	for _, v := range values {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	// Dynamic scaling with buffer
	buffer := 10.0
	minVal = math.Max(0, minVal-buffer)
	maxVal += buffer
	rangeVal := maxVal - minVal

	rows := make([][]rune, height)
	for i := range rows {
		rows[i] = make([]rune, len(values))
		for j := range rows[i] {
			rows[i][j] = blocks[0]
		}
	}

	for x, val := range values {
		totalSubBlocks := (val - minVal) / rangeVal * float64(height) * subBlocksPerLine

		// Fill lines from bottom up
		for y := 0; y < height; y++ {
			lineIdx := height - 1 - y
			lineStart := float64(y) * subBlocksPerLine
			lineEnd := float64(y+1) * subBlocksPerLine

			if totalSubBlocks >= lineEnd {
				rows[lineIdx][x] = blocks[len(blocks)-1]
			} else if totalSubBlocks > lineStart {
				remainder := int(math.Round(totalSubBlocks - lineStart))
				remainder = max(0, min(remainder, len(blocks)-1))
				rows[lineIdx][x] = blocks[remainder]
			}
		}
	}

	var result bytes.Buffer
	result.WriteString(fmt.Sprintf("Max: %.0f\n", maxVal))
	for _, row := range rows {
		result.WriteString(string(row))
		result.WriteString("\n")
	}
	result.WriteString(fmt.Sprintf("Min: %.0f", minVal))
	return result.String()
}

// Resample samples a curve at n evenly spaced times across its range
func Resample(curve *models.PredictedCurve, n int) []float64 {
	if curve.Len() == 0 || n <= 0 {
		return nil
	}
	start, end := curve.TimeH[0], curve.TimeH[curve.Len()-1]
	if n == 1 || end <= start {
		return []float64{curve.At(start)}
	}

	values := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range values {
		values[i] = curve.At(start + float64(i)*step)
	}
	return values
}
