package brainpool

import (
	"fmt"
	"math/big"
)

const (
	markerCompressedEven = 0x02
	markerCompressedOdd  = 0x03
	markerUncompressed   = 0x04
)

// MarshalUncompressed encodes pt as 0x04 ‖ X ‖ Y with fixed width coordinates.
func (c *Curve) MarshalUncompressed(pt Point) []byte {
	l := c.ByteLen()
	out := make([]byte, 1, 1+2*l)
	out[0] = markerUncompressed
	out = append(out, padBytes(pt.X.Bytes(), l)...)
	return append(out, padBytes(pt.Y.Bytes(), l)...)
}

// MarshalCompressed encodes pt as 0x02 or 0x03 (parity of Y) followed by X.
func (c *Curve) MarshalCompressed(pt Point) []byte {
	l := c.ByteLen()
	out := make([]byte, 1, 1+l)
	out[0] = markerCompressedEven
	if pt.Y.Bit(0) == 1 {
		out[0] = markerCompressedOdd
	}
	return append(out, padBytes(pt.X.Bytes(), l)...)
}

func (c *Curve) Marshal(pt Point, compressed bool) []byte {
	if compressed {
		return c.MarshalCompressed(pt)
	}
	return c.MarshalUncompressed(pt)
}

// Unmarshal decodes an uncompressed or compressed point and checks that it lies on the curve.
func (c *Curve) Unmarshal(data []byte) (Point, error) {
	l := c.ByteLen()
	if len(data) == 0 {
		return Point{}, ErrInvalidPoint
	}
	switch data[0] {
	case markerUncompressed:
		if len(data) != 1+2*l {
			return Point{}, fmt.Errorf("uncompressed point of length %d: %w", len(data), ErrInvalidPoint)
		}
		x := new(big.Int).SetBytes(data[1 : 1+l])
		y := new(big.Int).SetBytes(data[1+l:])
		return c.NewPoint(x, y)
	case markerCompressedEven, markerCompressedOdd:
		if len(data) != 1+l {
			return Point{}, fmt.Errorf("compressed point of length %d: %w", len(data), ErrInvalidPoint)
		}
		x := new(big.Int).SetBytes(data[1:])
		pt, err := c.PointFromX(x)
		if err != nil {
			return Point{}, err
		}
		if pt.Y.Bit(0) != uint(data[0]&1) {
			pt = c.Neg(pt)
		}
		return pt, nil
	default:
		return Point{}, fmt.Errorf("unknown point marker 0x%02X: %w", data[0], ErrInvalidPoint)
	}
}

// CoordinateBytes returns the fixed width big-endian encoding of v.
func (c *Curve) CoordinateBytes(v *big.Int) []byte {
	return padBytes(v.Bytes(), c.ByteLen())
}

func padBytes(input []byte, length int) []byte {
	if len(input) >= length {
		return input
	}
	padded := make([]byte, length)
	copy(padded[length-len(input):], input)
	return padded
}
