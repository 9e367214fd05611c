// Package lattice stores recombining-tree rows in a single flat arena.
//
// Level i holds 2i+1 nodes and starts at offset i*i, so the whole triangle of
// n levels occupies exactly n*n float64 values.
package lattice

import "fmt"

// Triangle is a jagged array with 2i+1 nodes on level i.
type Triangle struct {
	levels int
	data   []float64
}

// NewTriangle allocates a zeroed triangle with the given number of levels.
func NewTriangle(levels int) *Triangle {
	if levels < 0 {
		panic(fmt.Sprintf("NewTriangle: negative level count %d", levels))
	}
	return &Triangle{
		levels: levels,
		data:   make([]float64, levels*levels),
	}
}

// Levels returns the number of levels.
func (t *Triangle) Levels() int {
	if t == nil {
		return 0
	}
	return t.levels
}

// Width returns the node count of level i (2i+1).
func Width(i int) int {
	return 2*i + 1
}

func offset(i int) int {
	return i * i
}

func (t *Triangle) check(i, j int) {
	if i < 0 || i >= t.levels {
		panic(fmt.Sprintf("lattice: level %d out of range [0, %d)", i, t.levels))
	}
	if j < 0 || j > 2*i {
		panic(fmt.Sprintf("lattice: node %d out of range [0, %d] on level %d", j, 2*i, i))
	}
}

// At returns the value at node j of level i.
func (t *Triangle) At(i, j int) float64 {
	t.check(i, j)
	return t.data[offset(i)+j]
}

// Set stores v at node j of level i.
func (t *Triangle) Set(i, j int, v float64) {
	t.check(i, j)
	t.data[offset(i)+j] = v
}

// Row returns level i as a slice aliasing the arena. Writes go through.
func (t *Triangle) Row(i int) []float64 {
	if i < 0 || i >= t.levels {
		panic(fmt.Sprintf("lattice: level %d out of range [0, %d)", i, t.levels))
	}
	start := offset(i)
	return t.data[start : start+Width(i) : start+Width(i)]
}

// Fill sets every node of every level to v.
func (t *Triangle) Fill(v float64) {
	for k := range t.data {
		t.data[k] = v
	}
}

// Clone returns a deep copy.
func (t *Triangle) Clone() *Triangle {
	if t == nil {
		return nil
	}
	out := &Triangle{levels: t.levels, data: make([]float64, len(t.data))}
	copy(out.data, t.data)
	return out
}

// Equal reports whether both triangles have the same shape and bit-identical values.
func (t *Triangle) Equal(o *Triangle) bool {
	if t.Levels() != o.Levels() {
		return false
	}
	if t == nil || o == nil {
		return t == o || t.Levels() == 0
	}
	for k := range t.data {
		if t.data[k] != o.data[k] {
			return false
		}
	}
	return true
}
