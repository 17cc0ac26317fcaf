// Package brainpool implements the brainpoolP320r1 curve used by polymorphic card
// applications. The curve has a != -3, so the generic crypto/elliptic arithmetic
// cannot be used. Arithmetic is affine and not constant time.
package brainpool

import (
	"crypto/rand"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
)

var (
	OIDNamedCurveP320r1 = asn1.ObjectIdentifier{1, 3, 36, 3, 3, 2, 8, 1, 1, 9}
)

var (
	ErrNotOnCurve   = errors.New("brainpool: point is not on curve")
	ErrInvalidPoint = errors.New("brainpool: invalid point encoding")
)

// CurveParams holds the domain parameters of a short Weierstrass curve
// y² = x³ + ax + b over GF(p).
type CurveParams struct {
	Name    string
	OID     asn1.ObjectIdentifier
	P       *big.Int
	A       *big.Int
	B       *big.Int
	N       *big.Int
	Gx      *big.Int
	Gy      *big.Int
	BitSize int
}

// Curve performs group operations on the domain given by its parameters.
type Curve struct {
	params *CurveParams
	// (p+1)/4, exponent for square roots since p ≡ 3 (mod 4)
	sqrtExp *big.Int
}

// Point is an affine curve point. The zero value is the point at infinity.
type Point struct {
	X, Y *big.Int
}

var (
	initonce sync.Once
	p320r1   *Curve
)

func initP320r1() {
	params := &CurveParams{
		Name:    "brainpoolP320r1",
		OID:     OIDNamedCurveP320r1,
		P:       bigFromHex("D35E472036BC4FB7E13C785ED201E065F98FCFA6F6F40DEF4F92B9EC7893EC28FCD412B1F1B32E27"),
		A:       bigFromHex("3EE30B568FBAB0F883CCEBD46D3F3BB8A2A73513F5EB79DA66190EB085FFA9F492F375A97D860EB4"),
		B:       bigFromHex("520883949DFDBC42D3AD198640688A6FE13F41349554B49ACC31DCCD884539816F5EB4AC8FB1F1A6"),
		N:       bigFromHex("D35E472036BC4FB7E13C785ED201E065F98FCFA5B68F12A32D482EC7EE8658E98691555B44C59311"),
		Gx:      bigFromHex("43BD7E9AFB53D8B85289BCC48EE5BFE6F20137D10A087EB6E7871E2A10A599C710AF8D0D39E20611"),
		Gy:      bigFromHex("14FDD05545EC1CC8AB4093247F77275E0743FFED117182EAA9C77877AAAC6AC7D35245D1692E8EE1"),
		BitSize: 320,
	}
	p320r1 = newCurve(params)
}

func newCurve(params *CurveParams) *Curve {
	exp := new(big.Int).Add(params.P, big.NewInt(1))
	exp.Rsh(exp, 2)
	return &Curve{params: params, sqrtExp: exp}
}

// P320r1 returns the brainpoolP320r1 curve.
func P320r1() *Curve {
	initonce.Do(initP320r1)
	return p320r1
}

func bigFromHex(s string) *big.Int {
	b, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("brainpool: invalid curve constant " + s)
	}
	return b
}

// Params returns a copy of the domain parameters.
func (c *Curve) Params() CurveParams {
	return *c.params
}

// ByteLen is the fixed width of a field element or scalar in octets.
func (c *Curve) ByteLen() int {
	return (c.params.BitSize + 7) / 8
}

func (c *Curve) Order() *big.Int {
	return new(big.Int).Set(c.params.N)
}

func (c *Curve) Generator() Point {
	return Point{X: new(big.Int).Set(c.params.Gx), Y: new(big.Int).Set(c.params.Gy)}
}

// RightHandSide computes x³ + ax + b mod p.
func (c *Curve) RightHandSide(x *big.Int) *big.Int {
	p := c.params.P
	rhs := new(big.Int).Exp(x, big.NewInt(3), p)
	ax := new(big.Int).Mul(c.params.A, x)
	rhs.Add(rhs, ax)
	rhs.Add(rhs, c.params.B)
	return rhs.Mod(rhs, p)
}

// Sqrt returns the smaller square root of v mod p. The second return value is false
// if v is not a quadratic residue.
func (c *Curve) Sqrt(v *big.Int) (*big.Int, bool) {
	p := c.params.P
	v = new(big.Int).Mod(v, p)
	y := new(big.Int).Exp(v, c.sqrtExp, p)
	if neg := new(big.Int).Sub(p, y); y.Sign() != 0 && neg.Cmp(y) < 0 {
		y = neg
	}
	check := new(big.Int).Mul(y, y)
	check.Mod(check, p)
	if check.Cmp(v) != 0 {
		return nil, false
	}
	return y, true
}

func (c *Curve) IsOnCurve(pt Point) bool {
	if pt.IsIdentity() {
		return false
	}
	p := c.params.P
	if pt.X.Sign() < 0 || pt.X.Cmp(p) >= 0 || pt.Y.Sign() < 0 || pt.Y.Cmp(p) >= 0 {
		return false
	}
	y2 := new(big.Int).Mul(pt.Y, pt.Y)
	y2.Mod(y2, p)
	return y2.Cmp(c.RightHandSide(pt.X)) == 0
}

// NewPoint validates the coordinates and returns the point.
func (c *Curve) NewPoint(x, y *big.Int) (Point, error) {
	pt := Point{X: new(big.Int).Set(x), Y: new(big.Int).Set(y)}
	if !c.IsOnCurve(pt) {
		return Point{}, ErrNotOnCurve
	}
	return pt, nil
}

// PointFromX builds the point with x coordinate x and the smaller y.
func (c *Curve) PointFromX(x *big.Int) (Point, error) {
	if x.Sign() < 0 || x.Cmp(c.params.P) >= 0 {
		return Point{}, fmt.Errorf("x coordinate out of range: %w", ErrNotOnCurve)
	}
	y, ok := c.Sqrt(c.RightHandSide(x))
	if !ok {
		return Point{}, ErrNotOnCurve
	}
	return Point{X: new(big.Int).Set(x), Y: y}, nil
}

func (c *Curve) Neg(pt Point) Point {
	if pt.IsIdentity() {
		return Point{}
	}
	y := new(big.Int).Sub(c.params.P, pt.Y)
	y.Mod(y, c.params.P)
	return Point{X: new(big.Int).Set(pt.X), Y: y}
}

func (c *Curve) Add(p1, p2 Point) Point {
	if p1.IsIdentity() {
		return p2.clone()
	}
	if p2.IsIdentity() {
		return p1.clone()
	}
	p := c.params.P
	if p1.X.Cmp(p2.X) == 0 {
		sum := new(big.Int).Add(p1.Y, p2.Y)
		if sum.Mod(sum, p).Sign() == 0 {
			return Point{}
		}
		return c.Double(p1)
	}
	num := new(big.Int).Sub(p2.Y, p1.Y)
	den := new(big.Int).Sub(p2.X, p1.X)
	den.Mod(den, p)
	den.ModInverse(den, p)
	lambda := num.Mul(num, den)
	lambda.Mod(lambda, p)
	return c.chord(lambda, p1, p2.X)
}

func (c *Curve) Double(pt Point) Point {
	if pt.IsIdentity() || pt.Y.Sign() == 0 {
		return Point{}
	}
	p := c.params.P
	num := new(big.Int).Mul(pt.X, pt.X)
	num.Mul(num, big.NewInt(3))
	num.Add(num, c.params.A)
	den := new(big.Int).Lsh(pt.Y, 1)
	den.Mod(den, p)
	den.ModInverse(den, p)
	lambda := num.Mul(num, den)
	lambda.Mod(lambda, p)
	return c.chord(lambda, pt, pt.X)
}

// chord finishes addition given the slope through p1 and a second point with x coordinate x2.
func (c *Curve) chord(lambda *big.Int, p1 Point, x2 *big.Int) Point {
	p := c.params.P
	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, p1.X)
	x3.Sub(x3, x2)
	x3.Mod(x3, p)
	y3 := new(big.Int).Sub(p1.X, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, p1.Y)
	y3.Mod(y3, p)
	return Point{X: x3, Y: y3}
}

// ScalarMult computes k·pt. k is reduced modulo the group order.
func (c *Curve) ScalarMult(pt Point, k *big.Int) Point {
	scalar := new(big.Int).Mod(k, c.params.N)
	result := Point{}
	addend := pt.clone()
	for i := 0; i < scalar.BitLen(); i++ {
		if scalar.Bit(i) == 1 {
			result = c.Add(result, addend)
		}
		addend = c.Double(addend)
	}
	return result
}

func (c *Curve) ScalarBaseMult(k *big.Int) Point {
	return c.ScalarMult(c.Generator(), k)
}

// MultiplyAdd computes k·pt + q.
func (c *Curve) MultiplyAdd(pt Point, k *big.Int, q Point) Point {
	return c.Add(c.ScalarMult(pt, k), q)
}

// RandomScalar returns a uniformly distributed scalar in [1, n-1].
func (c *Curve) RandomScalar(r io.Reader) (*big.Int, error) {
	if r == nil {
		r = rand.Reader
	}
	max := new(big.Int).Sub(c.params.N, big.NewInt(1))
	k, err := rand.Int(r, max)
	if err != nil {
		return nil, fmt.Errorf("generating random scalar: %w", err)
	}
	return k.Add(k, big.NewInt(1)), nil
}

func (pt Point) IsIdentity() bool {
	return pt.X == nil || pt.Y == nil
}

func (pt Point) Equal(other Point) bool {
	if pt.IsIdentity() || other.IsIdentity() {
		return pt.IsIdentity() && other.IsIdentity()
	}
	return pt.X.Cmp(other.X) == 0 && pt.Y.Cmp(other.Y) == 0
}

func (pt Point) clone() Point {
	if pt.IsIdentity() {
		return Point{}
	}
	return Point{X: new(big.Int).Set(pt.X), Y: new(big.Int).Set(pt.Y)}
}

func (pt Point) String() string {
	if pt.IsIdentity() {
		return "(infinity)"
	}
	return fmt.Sprintf("(%X, %X)", pt.X, pt.Y)
}
