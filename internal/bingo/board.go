// internal/bingo/board.go
package bingo

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

const (
	// BoardSize is the width and height of a board.
	BoardSize = 5
	// MaxNumber is the highest callable number; boards hold every number 1..MaxNumber exactly once.
	MaxNumber = BoardSize * BoardSize
	// MaxLines is the number of distinct lines on a board: rows, columns and both diagonals.
	MaxLines = 2*BoardSize + 2
	// DefaultWinThreshold is the number of simultaneously completed lines needed to win.
	DefaultWinThreshold = 5
)

// ErrInvalidBoard is returned by Validate when a board is not a permutation of 1..MaxNumber.
var ErrInvalidBoard = errors.New("invalid board")

// Board is a player's private 5x5 grid.
type Board [BoardSize][BoardSize]int

// Deal returns a freshly shuffled board using the package-level random source.
func Deal() Board {
	return fromPerm(rand.Perm(MaxNumber))
}

// DealWith returns a shuffled board drawn from r. Useful for reproducible boards in tests.
func DealWith(r *rand.Rand) Board {
	return fromPerm(r.Perm(MaxNumber))
}

func fromPerm(perm []int) Board {
	var b Board
	for i, v := range perm {
		b[i/BoardSize][i%BoardSize] = v + 1
	}
	return b
}

// Validate checks that every cell is in range and no number repeats.
func (b Board) Validate() error {
	var seen [MaxNumber + 1]bool
	for r := range b {
		for c, v := range b[r] {
			if v < 1 || v > MaxNumber {
				return fmt.Errorf("%w: cell (%d,%d) holds %d", ErrInvalidBoard, r, c, v)
			}
			if seen[v] {
				return fmt.Errorf("%w: %d appears twice", ErrInvalidBoard, v)
			}
			seen[v] = true
		}
	}
	return nil
}

// Contains reports whether n is somewhere on the board.
func (b Board) Contains(n int) bool {
	for r := range b {
		for _, v := range b[r] {
			if v == n {
				return true
			}
		}
	}
	return false
}
