// Package waveview draws a text waveform of a sample window.
package waveview

// Source is read-only access to a sample buffer. *audio.Engine satisfies it.
type Source interface {
	Len() int
	SampleAt(index int) int16
}

const (
	markSample = '*'
	markAxis   = '-'
	markBlank  = ' '
)

// Render draws samples [offset, offset+width) as height rows of text, one
// column per sample, scaled so the window's peak touches the top or
// bottom row. It returns nil when the window is empty.
func Render(src Source, offset, width, height int) []string {
	if offset < 0 {
		offset = 0
	}
	end := offset + width
	if end > src.Len() {
		end = src.Len()
	}
	if width <= 0 || height <= 0 || offset >= end {
		return nil
	}
	cols := end - offset

	peak := int32(1)
	for i := offset; i < end; i++ {
		if a := abs32(int32(src.SampleAt(i))); a > peak {
			peak = a
		}
	}

	grid := make([][]rune, height)
	mid := (height - 1) / 2
	for r := range grid {
		grid[r] = make([]rune, cols)
		for c := range grid[r] {
			grid[r][c] = markBlank
			if r == mid {
				grid[r][c] = markAxis
			}
		}
	}

	half := int32(height-1) / 2
	for c := 0; c < cols; c++ {
		s := int32(src.SampleAt(offset + c))
		r := int32(mid) - s*half/peak
		if r < 0 {
			r = 0
		}
		if r >= int32(height) {
			r = int32(height) - 1
		}
		grid[r][c] = markSample
	}

	out := make([]string, height)
	for r := range grid {
		out[r] = string(grid[r])
	}
	return out
}

// Peak returns the largest absolute sample in [offset, offset+width),
// or 0 for an empty window.
func Peak(src Source, offset, width int) int32 {
	if offset < 0 {
		offset = 0
	}
	end := offset + width
	if end > src.Len() {
		end = src.Len()
	}
	var peak int32
	for i := offset; i < end; i++ {
		if a := abs32(int32(src.SampleAt(i))); a > peak {
			peak = a
		}
	}
	return peak
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
