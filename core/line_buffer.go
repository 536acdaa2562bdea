package core

import "fmt"

// Line buffer geometry. Rows are azimuth buckets, columns are range cells.
const (
	MaxLines = 1024
	MaxCells = 1024
)

// LineBuffer is the angle-indexed circular store behind point-mode
// rendering. It is laid out row-major exactly like its GPU mirror so a row
// can be uploaded with a single sub-buffer write.
//
// Rows are only ever overwritten, never cleared: a row not written during
// the current revolution keeps the previous revolution's samples, which
// produces the sweep trail.
type LineBuffer struct {
	cells []float32
}

// NewLineBuffer allocates a zeroed MaxLines x MaxCells buffer
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{cells: make([]float32, MaxLines*MaxCells)}
}

// RowForAngle returns the row an azimuth maps to, or -1 if it has none
func RowForAngle(angle float64) int {
	return AzimuthIndex(angle, MaxLines)
}

// Write stores one quantized line at the row for angle and returns the row.
// Only the first len(cells) columns of the row change.
func (lb *LineBuffer) Write(angle float64, cells []byte) (int, error) {
	row := RowForAngle(angle)
	if row < 0 || row >= MaxLines {
		return row, Warn("line buffer write", fmt.Errorf("%w: angle %v", ErrRowOutOfRange, angle))
	}
	if len(cells) > MaxCells {
		return row, Warn("line buffer write", fmt.Errorf("%w: %d > %d", ErrTooManyCells, len(cells), MaxCells))
	}

	line := lb.cells[row*MaxCells : row*MaxCells+len(cells)]
	for i, b := range cells {
		line[i] = Dequantize(b)
	}
	return row, nil
}

// Line returns the full row as a view into the buffer
func (lb *LineBuffer) Line(row int) []float32 {
	return lb.cells[row*MaxCells : (row+1)*MaxCells]
}

// Cell returns a single sample
func (lb *LineBuffer) Cell(row, cell int) float32 {
	return lb.cells[row*MaxCells+cell]
}

// Cells returns the whole buffer, flattened row-major
func (lb *LineBuffer) Cells() []float32 {
	return lb.cells
}

// RowOffset returns the index of a row's first cell in the flattened buffer
func RowOffset(row int) int {
	return row * MaxCells
}
