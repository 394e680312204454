package dataset

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

const (
	histWidth   = 640
	histHeight  = 480
	histMargin  = 40
	DefaultBins = 20
)

// SaveHist renders a histogram of the named numeric column to a PNG at path.
// Non-numeric cells are skipped; the column must yield at least one numeric
// value. Parent directories are created as needed.
func SaveHist(t *Table, column, path string, bins int) error {
	vals, err := NumericColumn(t, column)
	if err != nil {
		return err
	}
	if bins <= 0 {
		bins = DefaultBins
	}

	counts := binCounts(vals, bins)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create hist dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create hist file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, renderBars(counts)); err != nil {
		return fmt.Errorf("encode hist png: %w", err)
	}
	return nil
}

func binCounts(vals []float64, bins int) []int {
	min, max := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	counts := make([]int, bins)
	span := max - min
	if span == 0 {
		counts[0] = len(vals)
		return counts
	}
	for _, v := range vals {
		b := int(float64(bins) * (v - min) / span)
		if b == bins {
			b = bins - 1
		}
		counts[b]++
	}
	return counts
}

func renderBars(counts []int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, histWidth, histHeight))
	bg := color.RGBA{255, 255, 255, 255}
	bar := color.RGBA{66, 115, 179, 255}
	axis := color.RGBA{40, 40, 40, 255}

	for y := 0; y < histHeight; y++ {
		for x := 0; x < histWidth; x++ {
			img.Set(x, y, bg)
		}
	}

	peak := 0
	for _, c := range counts {
		if c > peak {
			peak = c
		}
	}
	if peak == 0 {
		peak = 1
	}

	plotW := histWidth - 2*histMargin
	plotH := histHeight - 2*histMargin
	barW := plotW / len(counts)

	for i, c := range counts {
		h := int(math.Round(float64(plotH) * float64(c) / float64(peak)))
		x0 := histMargin + i*barW
		for x := x0 + 1; x < x0+barW-1; x++ {
			for y := histHeight - histMargin - h; y < histHeight-histMargin; y++ {
				img.Set(x, y, bar)
			}
		}
	}

	// X and Y axes.
	for x := histMargin; x <= histWidth-histMargin; x++ {
		img.Set(x, histHeight-histMargin, axis)
	}
	for y := histMargin; y <= histHeight-histMargin; y++ {
		img.Set(histMargin, y, axis)
	}
	return img
}
