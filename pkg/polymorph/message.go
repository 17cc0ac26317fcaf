package polymorph

import (
	"bytes"
	"fmt"
)

const (
	// MessageVersion is the version of the polymorphic message format.
	MessageVersion = 1

	// MessageSize is the fixed width of an embedding message.
	MessageSize = 18

	// MaxIdentifierLength is the longest identifier value that fits into a message.
	MaxIdentifierLength = MessageSize - 3
)

// IdentifierType tags the kind of subject identifier.
type IdentifierType byte

const (
	TypeBSN IdentifierType = 'B'
)

// Identifier is the raw subject identifier, e.g. a citizen service number.
type Identifier struct {
	Type  IdentifierType
	Value []byte
}

// BSN returns an identifier of type BSN.
func BSN(value string) Identifier {
	return Identifier{Type: TypeBSN, Value: []byte(value)}
}

func (id Identifier) String() string {
	return fmt.Sprintf("%c:%s", id.Type, id.Value)
}

// Message is the fixed width encoding version ‖ type ‖ length ‖ value ‖ zero padding.
type Message [MessageSize]byte

// NewMessage builds the embedding message for id.
func NewMessage(id Identifier) (Message, error) {
	var m Message
	if len(id.Value) == 0 {
		return m, fmt.Errorf("empty identifier: %w", ErrInvalidInput)
	}
	if len(id.Value) > MaxIdentifierLength {
		return m, fmt.Errorf("identifier of %d bytes exceeds %d: %w", len(id.Value), MaxIdentifierLength, ErrInvalidInput)
	}
	m[0] = MessageVersion
	m[1] = byte(id.Type)
	m[2] = byte(len(id.Value))
	copy(m[3:], id.Value)
	return m, nil
}

// Identifier parses the message back into the identifier it was built from.
func (m Message) Identifier() (Identifier, error) {
	if m[0] != MessageVersion {
		return Identifier{}, fmt.Errorf("unsupported message version %d: %w", m[0], ErrCryptoIntegrity)
	}
	l := int(m[2])
	if l == 0 || l > MaxIdentifierLength {
		return Identifier{}, fmt.Errorf("identifier length %d: %w", l, ErrCryptoIntegrity)
	}
	if !bytes.Equal(m[3+l:], make([]byte, MessageSize-3-l)) {
		return Identifier{}, fmt.Errorf("non-zero padding: %w", ErrCryptoIntegrity)
	}
	return Identifier{
		Type:  IdentifierType(m[1]),
		Value: bytes.Clone(m[3 : 3+l]),
	}, nil
}
