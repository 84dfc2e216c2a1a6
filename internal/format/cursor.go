package format

import (
	"encoding/binary"
	"fmt"

	"github.com/annostore/annostore/internal/errors"
)

// Cursor is a bounds-checked decoder over a byte slice. Every read
// surfaces truncation as a decode error instead of panicking, so corrupt
// length prefixes in a damaged file fail the one lookup that hit them.
type Cursor struct {
	data []byte
	off  int
}

// NewCursor creates a cursor over data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.off
}

func (c *Cursor) need(n int) error {
	if c.off+n > len(c.data) {
		return errors.NewDecodeError(errors.CodeTruncated,
			fmt.Sprintf("need %d bytes at offset %d, have %d", n, c.off, len(c.data)-c.off))
	}
	return nil
}

// U8 reads one byte.
func (c *Cursor) U8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.off]
	c.off++
	return v, nil
}

// Bool reads one byte as a boolean; any nonzero value is true.
func (c *Cursor) Bool() (bool, error) {
	v, err := c.U8()
	return v != 0, err
}

// U16 reads a little-endian uint16.
func (c *Cursor) U16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.data[c.off:])
	c.off += 2
	return v, nil
}

// U32 reads a little-endian uint32.
func (c *Cursor) U32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.off:])
	c.off += 4
	return v, nil
}

// U64 reads a little-endian uint64.
func (c *Cursor) U64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.data[c.off:])
	c.off += 8
	return v, nil
}

// Bytes reads exactly n bytes.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.data[c.off : c.off+n]
	c.off += n
	return v, nil
}

// String16 reads a uint16 length prefix followed by that many bytes.
func (c *Cursor) String16() (string, error) {
	n, err := c.U16()
	if err != nil {
		return "", err
	}
	b, err := c.Bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// OptionalString16 reads the optional-string encoding: length 0 means
// absent, length n+1 means present with n bytes.
func (c *Cursor) OptionalString16() (*string, error) {
	n, err := c.U16()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b, err := c.Bytes(int(n) - 1)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}
