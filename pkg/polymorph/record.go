package polymorph

import (
	"fmt"
	"sync"

	"github.com/gematik/pca/pkg/brainpool"
)

// Kind selects which channels a disclosure exposes.
type Kind byte

const (
	KindPP  Kind = 1
	KindPI  Kind = 2
	KindPIP Kind = 3
)

func (k Kind) Valid() bool {
	return k == KindPP || k == KindPI || k == KindPIP
}

// HasPI reports whether the identity channel is part of k.
func (k Kind) HasPI() bool { return k == KindPI || k == KindPIP }

// HasPP reports whether the pseudonym channel is part of k.
func (k Kind) HasPP() bool { return k == KindPP || k == KindPIP }

func (k Kind) String() string {
	switch k {
	case KindPP:
		return "PP"
	case KindPI:
		return "PI"
	case KindPIP:
		return "PIP"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Encoding selects the point format and the disclosure width.
type Encoding struct {
	Compressed bool
	// Reduced omits the public keys.
	Reduced bool
}

func (e Encoding) String() string {
	width, format := "regular", "uncompressed"
	if e.Reduced {
		width = "reduced"
	}
	if e.Compressed {
		format = "compressed"
	}
	return width + "/" + format
}

// Points is a snapshot of the points held by a record.
type Points struct {
	Blinding brainpool.Point
	CipherPI brainpool.Point
	CipherPP brainpool.Point
	PubKeyPI brainpool.Point
	PubKeyPP brainpool.Point
}

// Record is the on-card polymorphic state. The blinding point is shared by both
// channels, so every randomization moves all three ciphertext points together.
type Record struct {
	mu  sync.Mutex
	pts Points
}

// Encrypt builds a record for the identity point pid and the pseudonym point pps.
// The scalar r is drawn internally and discarded.
func Encrypt(pid, pps, qPI, qPP brainpool.Point) (*Record, error) {
	curve := brainpool.P320r1()
	inputs := []struct {
		name string
		pt   brainpool.Point
	}{{"identity", pid}, {"pseudonym", pps}, {"PI key", qPI}, {"PP key", qPP}}
	for _, in := range inputs {
		if in.pt.IsIdentity() || !curve.IsOnCurve(in.pt) {
			return nil, fmt.Errorf("%s point: %w", in.name, ErrInvalidInput)
		}
	}
	r, err := curve.RandomScalar(nil)
	if err != nil {
		return nil, err
	}
	return &Record{pts: Points{
		Blinding: curve.ScalarBaseMult(r),
		CipherPI: curve.MultiplyAdd(qPI, r, pid),
		CipherPP: curve.MultiplyAdd(qPP, r, pps),
		PubKeyPI: qPI,
		PubKeyPP: qPP,
	}}, nil
}

// NewRecord restores a record from previously persisted points.
func NewRecord(pts Points) (*Record, error) {
	curve := brainpool.P320r1()
	for _, pt := range []brainpool.Point{pts.Blinding, pts.CipherPI, pts.CipherPP, pts.PubKeyPI, pts.PubKeyPP} {
		if err := checkPoint(curve, pt); err != nil {
			return nil, err
		}
	}
	return &Record{pts: pts}, nil
}

// Points returns a copy of the current state.
func (rec *Record) Points() Points {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.pts
}

// Clone returns an independent copy of the record.
func (rec *Record) Clone() *Record {
	return &Record{pts: rec.Points()}
}

// Randomize rerandomizes the record with a fresh scalar s drawn from crypto/rand.
// kind is validated, but blinding and both ciphers are always updated so that
// each channel keeps decrypting to its plaintext.
func (rec *Record) Randomize(kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("disclosure kind %d: %w", kind, ErrInvalidInput)
	}
	curve := brainpool.P320r1()
	s, err := curve.RandomScalar(nil)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	next := rec.pts
	next.Blinding = curve.Add(curve.ScalarBaseMult(s), rec.pts.Blinding)
	next.CipherPI = curve.MultiplyAdd(rec.pts.PubKeyPI, s, rec.pts.CipherPI)
	next.CipherPP = curve.MultiplyAdd(rec.pts.PubKeyPP, s, rec.pts.CipherPP)
	rec.pts = next
	return nil
}

// Rendering holds the encoded points selected for one disclosure. Fields that
// are not part of the disclosure are nil.
type Rendering struct {
	Kind     Kind
	Encoding Encoding
	Blinding []byte
	CipherPI []byte
	CipherPP []byte
	PubKeyPI []byte
	PubKeyPP []byte
}

// Render encodes the points of the current state selected by kind and enc.
func (rec *Record) Render(kind Kind, enc Encoding) (*Rendering, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("disclosure kind %d: %w", kind, ErrInvalidInput)
	}
	curve := brainpool.P320r1()
	pts := rec.Points()

	out := &Rendering{
		Kind:     kind,
		Encoding: enc,
		Blinding: curve.Marshal(pts.Blinding, enc.Compressed),
	}
	if kind.HasPI() {
		out.CipherPI = curve.Marshal(pts.CipherPI, enc.Compressed)
		if !enc.Reduced {
			out.PubKeyPI = curve.Marshal(pts.PubKeyPI, enc.Compressed)
		}
	}
	if kind.HasPP() {
		out.CipherPP = curve.Marshal(pts.CipherPP, enc.Compressed)
		if !enc.Reduced {
			out.PubKeyPP = curve.Marshal(pts.PubKeyPP, enc.Compressed)
		}
	}
	return out, nil
}

// MarshalBinary encodes the five points uncompressed in the order
// blinding, cipherPI, cipherPP, pubKeyPI, pubKeyPP.
func (rec *Record) MarshalBinary() ([]byte, error) {
	curve := brainpool.P320r1()
	pts := rec.Points()
	var out []byte
	for _, pt := range []brainpool.Point{pts.Blinding, pts.CipherPI, pts.CipherPP, pts.PubKeyPI, pts.PubKeyPP} {
		out = append(out, curve.MarshalUncompressed(pt)...)
	}
	return out, nil
}

func (rec *Record) UnmarshalBinary(data []byte) error {
	curve := brainpool.P320r1()
	width := 1 + 2*curve.ByteLen()
	if len(data) != 5*width {
		return fmt.Errorf("record of %d bytes: %w", len(data), ErrCryptoIntegrity)
	}
	var decoded [5]brainpool.Point
	for i := range decoded {
		pt, err := curve.Unmarshal(data[i*width : (i+1)*width])
		if err != nil {
			return fmt.Errorf("record point %d: %w", i, ErrCryptoIntegrity)
		}
		decoded[i] = pt
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.pts = Points{
		Blinding: decoded[0],
		CipherPI: decoded[1],
		CipherPP: decoded[2],
		PubKeyPI: decoded[3],
		PubKeyPP: decoded[4],
	}
	return nil
}
