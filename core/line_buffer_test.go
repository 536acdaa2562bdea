package core

import (
	"errors"
	"math"
	"testing"
)

func TestLineBufferWriteRow(t *testing.T) {
	// angles sit in the middle of their bucket so rounding cannot move them
	center := func(row int) float64 { return (float64(row) + 0.5) / MaxLines * TwoPi }
	tests := []struct {
		name    string
		angle   float64
		wantRow int
	}{
		{"Origin", 0, 0},
		{"Quarter turn", math.Pi / 2, MaxLines / 4},
		{"Half turn", math.Pi, MaxLines / 2},
		{"Last row", center(MaxLines - 1), MaxLines - 1},
		{"Negative wraps", -math.Pi, MaxLines / 2},
		{"Negative bucket", center(100) - TwoPi, 100},
		{"Second revolution", center(700) + TwoPi, 700},
		{"Many revolutions", center(3) + 50*TwoPi, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lb := NewLineBuffer()
			row, err := lb.Write(tc.angle, []byte{255, 0, 51})
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if row != tc.wantRow {
				t.Errorf("row = %d, want %d", row, tc.wantRow)
			}
			if got := lb.Cell(row, 0); got != 1 {
				t.Errorf("cell 0 = %v, want 1", got)
			}
			if got := lb.Cell(row, 2); math.Abs(float64(got)-0.2) > 1e-6 {
				t.Errorf("cell 2 = %v, want 0.2", got)
			}
		})
	}
}

// TestLineBufferPartialOverwrite writes a long line then a short one and
// checks the cells past the short line keep their earlier values
func TestLineBufferPartialOverwrite(t *testing.T) {
	lb := NewLineBuffer()
	angle := 1.0

	long := []byte{10, 20, 30, 40, 50, 60}
	row, err := lb.Write(angle, long)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	if _, err := lb.Write(angle, []byte{255, 255, 255}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	for i := 0; i < 3; i++ {
		if got := lb.Cell(row, i); got != 1 {
			t.Errorf("cell %d = %v, want 1", i, got)
		}
	}
	for i := 3; i < len(long); i++ {
		if got, want := lb.Cell(row, i), Dequantize(long[i]); got != want {
			t.Errorf("cell %d = %v, want retained %v", i, got, want)
		}
	}
}

// TestLineBufferNoImplicitClear checks rows not written keep stale data
func TestLineBufferNoImplicitClear(t *testing.T) {
	lb := NewLineBuffer()
	rowA, _ := lb.Write(0.5, []byte{128})
	rowB, _ := lb.Write(2.5, []byte{64})
	if rowA == rowB {
		t.Fatalf("test angles collided on row %d", rowA)
	}
	if got := lb.Cell(rowA, 0); got != Dequantize(128) {
		t.Errorf("row %d lost its value: %v", rowA, got)
	}
}

func TestLineBufferRejects(t *testing.T) {
	lb := NewLineBuffer()

	t.Run("Too many cells", func(t *testing.T) {
		_, err := lb.Write(0, make([]byte, MaxCells+1))
		if !errors.Is(err, ErrTooManyCells) {
			t.Fatalf("err = %v, want ErrTooManyCells", err)
		}
		if IsFatal(err) {
			t.Error("too many cells must be a runtime warning")
		}
	})

	t.Run("NaN angle", func(t *testing.T) {
		_, err := lb.Write(math.NaN(), []byte{1})
		if !errors.Is(err, ErrRowOutOfRange) {
			t.Fatalf("err = %v, want ErrRowOutOfRange", err)
		}
	})

	t.Run("Rejected write leaves buffer untouched", func(t *testing.T) {
		fresh := NewLineBuffer()
		_, _ = fresh.Write(0, make([]byte, MaxCells+1))
		for i, v := range fresh.Cells() {
			if v != 0 {
				t.Fatalf("cell %d changed to %v", i, v)
			}
		}
	})

	t.Run("Exactly MaxCells accepted", func(t *testing.T) {
		cells := make([]byte, MaxCells)
		cells[MaxCells-1] = 255
		row, err := lb.Write(0, cells)
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if got := lb.Line(row)[MaxCells-1]; got != 1 {
			t.Errorf("last cell = %v, want 1", got)
		}
	})
}

func TestRowOffset(t *testing.T) {
	lb := NewLineBuffer()
	row, _ := lb.Write(math.Pi, []byte{255})
	if got := lb.Cells()[RowOffset(row)]; got != 1 {
		t.Errorf("flattened cell at RowOffset(%d) = %v, want 1", row, got)
	}
}

// TestSweepRowCoverage runs one revolution of 1° lines through the buffer:
// 360 lines land on 360 distinct rows of 1024, skipping the rest.
func TestSweepRowCoverage(t *testing.T) {
	step := math.Pi / 180
	seen := make(map[int]int)
	prev := -1
	for i := 0; i < 360; i++ {
		row := RowForAngle(float64(i) * step)
		if row < 0 || row >= MaxLines {
			t.Fatalf("line %d mapped outside the buffer: %d", i, row)
		}
		if row <= prev {
			t.Fatalf("line %d row %d does not advance past %d", i, row, prev)
		}
		prev = row
		seen[row]++
	}
	if len(seen) != 360 {
		t.Errorf("distinct rows = %d, want 360", len(seen))
	}
	if skipped := MaxLines - len(seen); skipped != MaxLines-360 {
		t.Errorf("skipped rows = %d, want %d", skipped, MaxLines-360)
	}
}
