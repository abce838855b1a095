package dynamo

import (
	"fmt"
	"math"
)

// Float is the set of element types an engine can be instantiated with.
type Float interface {
	~float32 | ~float64
}

// Vec is a flat atom-major vector of length 3N.
type Vec[T Float] []T

func NewVec[T Float](n int) Vec[T] {
	return make(Vec[T], 3*n)
}

// FromRows flattens N×3 rows into a Vec.
func FromRows[T Float](rows [][3]float64) Vec[T] {
	v := make(Vec[T], 3*len(rows))
	for i, r := range rows {
		v[3*i] = T(r[0])
		v[3*i+1] = T(r[1])
		v[3*i+2] = T(r[2])
	}
	return v
}

// Rows converts the vector back to float64 N×3 rows.
func (v Vec[T]) Rows() [][3]float64 {
	rows := make([][3]float64, len(v)/3)
	for i := range rows {
		rows[i] = [3]float64{float64(v[3*i]), float64(v[3*i+1]), float64(v[3*i+2])}
	}
	return rows
}

func (v Vec[T]) Atoms() int {
	return len(v) / 3
}

func (v Vec[T]) Clone() Vec[T] {
	c := make(Vec[T], len(v))
	copy(c, v)
	return c
}

func (v Vec[T]) IsValid() bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func (v Vec[T]) Zero() {
	clear(v)
}

// AddInPlace adds other into v elementwise.
func (v Vec[T]) AddInPlace(other Vec[T]) {
	for i := range v {
		v[i] += other[i]
	}
}

// Float64s returns a float64 copy of v.
func (v Vec[T]) Float64s() []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Precision selects the arithmetic an engine is instantiated with.
type Precision int

const (
	Double Precision = iota
	Single
)

func (p Precision) String() string {
	switch p {
	case Single:
		return "single"
	case Double:
		return "double"
	}
	return fmt.Sprintf("Precision(%d)", int(p))
}

// ParsePrecision accepts exactly "single" or "double".
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "single":
		return Single, nil
	case "double":
		return Double, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPrecision, s)
}

func (p Precision) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Precision) UnmarshalText(b []byte) error {
	v, err := ParsePrecision(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
