package potentials

import (
	"math"

	"github.com/san-kum/revsim/internal/dynamo"
)

// hyper is a hyper-dual number a + b·e1 + c·e2 + d·e1e2 with e1² = e2² = 0.
// Seeding b on one input and c along a direction w yields the gradient in
// b and the Hessian-vector product component in d.
type hyper[T dynamo.Float] struct {
	a, b, c, d T
}

func konst[T dynamo.Float](v T) hyper[T] {
	return hyper[T]{a: v}
}

func (x hyper[T]) add(y hyper[T]) hyper[T] {
	return hyper[T]{x.a + y.a, x.b + y.b, x.c + y.c, x.d + y.d}
}

func (x hyper[T]) sub(y hyper[T]) hyper[T] {
	return hyper[T]{x.a - y.a, x.b - y.b, x.c - y.c, x.d - y.d}
}

func (x hyper[T]) neg() hyper[T] {
	return hyper[T]{-x.a, -x.b, -x.c, -x.d}
}

func (x hyper[T]) scale(s T) hyper[T] {
	return hyper[T]{s * x.a, s * x.b, s * x.c, s * x.d}
}

func (x hyper[T]) shift(s T) hyper[T] {
	x.a += s
	return x
}

func (x hyper[T]) mul(y hyper[T]) hyper[T] {
	return hyper[T]{
		a: x.a * y.a,
		b: x.a*y.b + x.b*y.a,
		c: x.a*y.c + x.c*y.a,
		d: x.a*y.d + x.b*y.c + x.c*y.b + x.d*y.a,
	}
}

func (x hyper[T]) sq() hyper[T] {
	return x.mul(x)
}

// chain applies a scalar function with value f, first derivative f1 and
// second derivative f2 at x.a.
func (x hyper[T]) chain(f, f1, f2 T) hyper[T] {
	return hyper[T]{
		a: f,
		b: f1 * x.b,
		c: f1 * x.c,
		d: f1*x.d + f2*x.b*x.c,
	}
}

func (x hyper[T]) inv() hyper[T] {
	r := 1 / x.a
	return x.chain(r, -r*r, 2*r*r*r)
}

func (x hyper[T]) div(y hyper[T]) hyper[T] {
	return x.mul(y.inv())
}

func (x hyper[T]) sqrt() hyper[T] {
	s := T(math.Sqrt(float64(x.a)))
	return x.chain(s, 0.5/s, -0.25/(s*x.a))
}

func (x hyper[T]) exp() hyper[T] {
	e := T(math.Exp(float64(x.a)))
	return x.chain(e, e, e)
}

func (x hyper[T]) log() hyper[T] {
	r := 1 / x.a
	return x.chain(T(math.Log(float64(x.a))), r, -r*r)
}

func (x hyper[T]) cos() hyper[T] {
	c, s := T(math.Cos(float64(x.a))), T(math.Sin(float64(x.a)))
	return x.chain(c, -s, -c)
}

func (x hyper[T]) sin() hyper[T] {
	c, s := T(math.Cos(float64(x.a))), T(math.Sin(float64(x.a)))
	return x.chain(s, c, -s)
}

func (x hyper[T]) tanh() hyper[T] {
	t := T(math.Tanh(float64(x.a)))
	sech2 := 1 - t*t
	return x.chain(t, sech2, -2*t*sech2)
}

func (x hyper[T]) abs() hyper[T] {
	if x.a < 0 {
		return x.neg()
	}
	return x
}

func hmax[T dynamo.Float](x, y hyper[T]) hyper[T] {
	if y.a > x.a {
		return y
	}
	return x
}

// atan2 of hyper-dual arguments y and x.
func atan2[T dynamo.Float](y, x hyper[T]) hyper[T] {
	r2 := x.a*x.a + y.a*y.a
	r4 := r2 * r2
	fx := -y.a / r2
	fy := x.a / r2
	fxx := 2 * x.a * y.a / r4
	fyy := -fxx
	fxy := (y.a*y.a - x.a*x.a) / r4
	return hyper[T]{
		a: T(math.Atan2(float64(y.a), float64(x.a))),
		b: fx*x.b + fy*y.b,
		c: fx*x.c + fy*y.c,
		d: fx*x.d + fy*y.d +
			fxx*x.b*x.c + fyy*y.b*y.c +
			fxy*(x.b*y.c+x.c*y.b),
	}
}

type vec3[T dynamo.Float] [3]hyper[T]

func at[T dynamo.Float](xs []hyper[T], i int) vec3[T] {
	return vec3[T]{xs[3*i], xs[3*i+1], xs[3*i+2]}
}

func (u vec3[T]) sub(v vec3[T]) vec3[T] {
	return vec3[T]{u[0].sub(v[0]), u[1].sub(v[1]), u[2].sub(v[2])}
}

func (u vec3[T]) add(v vec3[T]) vec3[T] {
	return vec3[T]{u[0].add(v[0]), u[1].add(v[1]), u[2].add(v[2])}
}

func (u vec3[T]) scale(s T) vec3[T] {
	return vec3[T]{u[0].scale(s), u[1].scale(s), u[2].scale(s)}
}

func (u vec3[T]) dot(v vec3[T]) hyper[T] {
	return u[0].mul(v[0]).add(u[1].mul(v[1])).add(u[2].mul(v[2]))
}

func (u vec3[T]) cross(v vec3[T]) vec3[T] {
	return vec3[T]{
		u[1].mul(v[2]).sub(u[2].mul(v[1])),
		u[2].mul(v[0]).sub(u[0].mul(v[2])),
		u[0].mul(v[1]).sub(u[1].mul(v[0])),
	}
}

func (u vec3[T]) norm2() hyper[T] {
	return u.dot(u)
}

func (u vec3[T]) norm() hyper[T] {
	return u.norm2().sqrt()
}
