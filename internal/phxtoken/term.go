package phxtoken

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// External term format tags understood by the decoder. Phoenix session
// tokens only ever carry this subset.
const (
	tagVersion  = 131 // format version marker, transparently skipped
	tagSmallInt = 97  // unsigned 8-bit integer
	tagInt32    = 98  // signed 32-bit big-endian integer
	tagBinary   = 109 // length-prefixed bytes, interpreted as UTF-8 text
	tagMap      = 116 // count-prefixed key/value pairs
)

type TermKind int

const (
	KindInt TermKind = iota
	KindText
	KindMap
)

// Term is one decoded unit of the binary term stream.
// Exactly one of Int, Text or Map is meaningful, selected by Kind.
type Term struct {
	Kind TermKind
	Int  int64
	Text string
	Map  map[string]Term
}

// cursor reads from a byte slice with explicit bounds checks.
// Every read reports failure instead of panicking on truncated input.
type cursor struct {
	data []byte
	off  int
}

func (c *cursor) readByte() (byte, error) {
	if c.off >= len(c.data) {
		return 0, fmt.Errorf("%w: truncated at offset %d", ErrDecode, c.off)
	}
	b := c.data[c.off]
	c.off++
	return b, nil
}

func (c *cursor) readU32() (uint32, error) {
	if c.off+4 > len(c.data) {
		return 0, fmt.Errorf("%w: truncated u32 at offset %d", ErrDecode, c.off)
	}
	v := binary.BigEndian.Uint32(c.data[c.off : c.off+4])
	c.off += 4
	return v, nil
}

func (c *cursor) readBytes(n int) ([]byte, error) {
	if n < 0 || c.off+n > len(c.data) {
		return nil, fmt.Errorf("%w: truncated binary of %d bytes at offset %d", ErrDecode, n, c.off)
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) decodeTerm() (Term, error) {
	tag, err := c.readByte()
	if err != nil {
		return Term{}, err
	}

	switch tag {
	case tagVersion:
		return c.decodeTerm()
	case tagSmallInt:
		b, err := c.readByte()
		if err != nil {
			return Term{}, err
		}
		return Term{Kind: KindInt, Int: int64(b)}, nil
	case tagInt32:
		v, err := c.readU32()
		if err != nil {
			return Term{}, err
		}
		return Term{Kind: KindInt, Int: int64(int32(v))}, nil
	case tagBinary:
		return c.decodeBinary()
	case tagMap:
		return c.decodeMap()
	default:
		return Term{}, fmt.Errorf("%w: unknown tag %d at offset %d", ErrDecode, tag, c.off-1)
	}
}

func (c *cursor) decodeBinary() (Term, error) {
	n, err := c.readU32()
	if err != nil {
		return Term{}, err
	}
	raw, err := c.readBytes(int(n))
	if err != nil {
		return Term{}, err
	}
	if !utf8.Valid(raw) {
		return Term{}, fmt.Errorf("%w: binary term is not valid UTF-8", ErrDecode)
	}
	return Term{Kind: KindText, Text: string(raw)}, nil
}

func (c *cursor) decodeMap() (Term, error) {
	arity, err := c.readU32()
	if err != nil {
		return Term{}, err
	}

	m := make(map[string]Term, arity)
	for i := uint32(0); i < arity; i++ {
		key, err := c.decodeTerm()
		if err != nil {
			return Term{}, err
		}
		if key.Kind != KindText {
			return Term{}, fmt.Errorf("%w: map key is not a string", ErrDecode)
		}
		val, err := c.decodeTerm()
		if err != nil {
			return Term{}, err
		}
		m[key.Text] = val
	}
	return Term{Kind: KindMap, Map: m}, nil
}
