// internal/bingo/bingo_test.go
package bingo

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequentialBoard lays out 1..25 row by row:
//
//	 1  2  3  4  5
//	 6  7  8  9 10
//	11 12 13 14 15
//	16 17 18 19 20
//	21 22 23 24 25
func sequentialBoard() Board {
	var b Board
	for i := 0; i < MaxNumber; i++ {
		b[i/BoardSize][i%BoardSize] = i + 1
	}
	return b
}

func calledOf(nums ...int) *Called {
	c := &Called{}
	for _, n := range nums {
		c.Add(n)
	}
	return c
}

func TestDealProducesValidBoards(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		b := DealWith(r)
		require.NoError(t, b.Validate())
	}
	require.NoError(t, Deal().Validate())
}

func TestValidateRejectsBadBoards(t *testing.T) {
	b := sequentialBoard()
	b[4][4] = 1
	assert.ErrorIs(t, b.Validate(), ErrInvalidBoard)

	b = sequentialBoard()
	b[0][0] = 0
	assert.ErrorIs(t, b.Validate(), ErrInvalidBoard)

	b = sequentialBoard()
	b[2][3] = MaxNumber + 1
	assert.ErrorIs(t, b.Validate(), ErrInvalidBoard)
}

func TestCalledRejectsDuplicatesAndOutOfRange(t *testing.T) {
	c := &Called{}
	assert.True(t, c.Add(17))
	assert.False(t, c.Add(17), "duplicate must be rejected")
	assert.False(t, c.Add(0))
	assert.False(t, c.Add(MaxNumber+1))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []int{17}, c.Numbers())

	c.Reset()
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Has(17))
}

func TestEvaluateLines(t *testing.T) {
	b := sequentialBoard()

	tests := []struct {
		name   string
		called *Called
		want   int
	}{
		{"nothing called", calledOf(), 0},
		{"first row", calledOf(1, 2, 3, 4, 5), 1},
		{"first column", calledOf(1, 6, 11, 16, 21), 1},
		{"main diagonal", calledOf(1, 7, 13, 19, 25), 1},
		{"anti diagonal", calledOf(5, 9, 13, 17, 21), 1},
		{"row and column sharing a corner", calledOf(1, 2, 3, 4, 5, 6, 11, 16, 21), 2},
		{"both diagonals", calledOf(1, 7, 13, 19, 25, 5, 9, 17, 21), 2},
		{"four of five is not a line", calledOf(1, 2, 3, 4), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(b, tt.called))
		})
	}

	all := &Called{}
	for n := 1; n <= MaxNumber; n++ {
		all.Add(n)
	}
	assert.Equal(t, MaxLines, Evaluate(b, all))
}

// numberSet is a map-backed Marked.
type numberSet map[int]bool

func (s numberSet) Has(n int) bool { return s[n] }

func TestEvaluateAcceptsAnyMarked(t *testing.T) {
	b := sequentialBoard()
	set := numberSet{5: true, 9: true, 13: true, 17: true, 21: true, 1: true}
	assert.Equal(t, 1, Evaluate(b, set))
	assert.Equal(t, Evaluate(b, calledOf(5, 9, 13, 17, 21, 1)), Evaluate(b, set))
	assert.Zero(t, Evaluate(b, numberSet{}))
}

func TestBoardContains(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	b := DealWith(r)
	for n := 1; n <= MaxNumber; n++ {
		assert.True(t, b.Contains(n), "dealt board is missing %d", n)
	}
	assert.False(t, b.Contains(0))
	assert.False(t, b.Contains(MaxNumber+1))

	// a called 17 always marks exactly one cell
	marked := 0
	for _, row := range b {
		for _, v := range row {
			if v == 17 {
				marked++
			}
		}
	}
	assert.Equal(t, 1, marked)
}

func TestEvaluateIsMonotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 20; round++ {
		b := DealWith(r)
		c := &Called{}
		prev := 0
		for _, n := range r.Perm(MaxNumber) {
			require.True(t, c.Add(n+1))
			got := Evaluate(b, c)
			require.GreaterOrEqual(t, got, prev)
			prev = got
		}
		assert.Equal(t, MaxLines, prev)
	}
}

func TestIsWin(t *testing.T) {
	assert.False(t, IsWin(4, DefaultWinThreshold))
	assert.True(t, IsWin(5, DefaultWinThreshold))
	assert.True(t, IsWin(1, 1))
}
