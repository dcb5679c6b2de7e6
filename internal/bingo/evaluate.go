// internal/bingo/evaluate.go
package bingo

// Marked is anything that can answer whether a number has been called.
// *Called satisfies it; tests pass plain map-backed sets.
type Marked interface {
	Has(n int) bool
}

// cell is a (row, col) board position.
type cell struct{ r, c int }

// lines enumerates every row, column and the two diagonals once, at init.
var lines = buildLines()

func buildLines() [MaxLines][BoardSize]cell {
	var ls [MaxLines][BoardSize]cell
	i := 0
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			ls[i][c] = cell{r, c}
		}
		i++
	}
	for c := 0; c < BoardSize; c++ {
		for r := 0; r < BoardSize; r++ {
			ls[i][r] = cell{r, c}
		}
		i++
	}
	for k := 0; k < BoardSize; k++ {
		ls[i][k] = cell{k, k}
		ls[i+1][k] = cell{k, BoardSize - 1 - k}
	}
	return ls
}

// Evaluate returns how many lines on b are fully covered by called numbers.
// The result is between 0 and MaxLines and never decreases as numbers are added.
func Evaluate(b Board, called Marked) int {
	completed := 0
	for _, line := range lines {
		full := true
		for _, pos := range line {
			if !called.Has(b[pos.r][pos.c]) {
				full = false
				break
			}
		}
		if full {
			completed++
		}
	}
	return completed
}

// IsWin applies the win policy to a completed-line count.
func IsWin(completedLines, threshold int) bool {
	return completedLines >= threshold
}
