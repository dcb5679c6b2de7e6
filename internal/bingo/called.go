// internal/bingo/called.go
package bingo

// Called is the set of numbers called in a game. It keeps call order for the
// action log and snapshots; membership is what the evaluator uses.
// The zero value is ready to use.
type Called struct {
	order []int
	seen  [MaxNumber + 1]bool
}

// Add records n. It returns false if n is out of range or already called.
func (c *Called) Add(n int) bool {
	if n < 1 || n > MaxNumber || c.seen[n] {
		return false
	}
	c.seen[n] = true
	c.order = append(c.order, n)
	return true
}

// Has reports whether n has been called.
func (c *Called) Has(n int) bool {
	if n < 1 || n > MaxNumber {
		return false
	}
	return c.seen[n]
}

// Len is the number of distinct numbers called so far.
func (c *Called) Len() int { return len(c.order) }

// Numbers returns a copy of the called numbers in call order.
func (c *Called) Numbers() []int {
	out := make([]int, len(c.order))
	copy(out, c.order)
	return out
}

// Reset clears the set for a new game.
func (c *Called) Reset() {
	c.order = c.order[:0]
	c.seen = [MaxNumber + 1]bool{}
}
