package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrOutOfBounds is returned when a cursor read would exceed the buffer.
// The cursor's state is not restored after a failed read; a decode must
// treat it as fatal.
var ErrOutOfBounds = errors.New("read out of bounds")

// Cursor wraps a byte buffer with a read offset and a fixed endianness.
// Byte-slice reads return sub-slices of the underlying buffer without
// copying.
type Cursor struct {
	data  []byte
	off   int
	order binary.ByteOrder
}

// NewCursor creates a cursor over data with the given byte order.
func NewCursor(data []byte, order binary.ByteOrder) *Cursor {
	return &Cursor{data: data, order: order}
}

// Offset returns the current read offset.
func (c *Cursor) Offset() int { return c.off }

// Len returns the total buffer length.
func (c *Cursor) Len() int { return len(c.data) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.data) - c.off }

// Seek moves the read offset to an absolute position.
func (c *Cursor) Seek(off int) { c.off = off }

// Skip advances the offset by count bytes. A negative count is a no-op.
func (c *Cursor) Skip(count int) {
	if count < 0 {
		return
	}
	c.off += count
}

func (c *Cursor) require(n int) error {
	if c.off+n > len(c.data) {
		return fmt.Errorf("%w: %d bytes at offset %d of %d", ErrOutOfBounds, n, c.off, len(c.data))
	}
	return nil
}

// Uint8 reads one unsigned byte.
func (c *Cursor) Uint8() (uint8, error) {
	if err := c.require(1); err != nil {
		return 0, err
	}
	v := c.data[c.off]
	c.off++
	return v, nil
}

// Uint16 reads an unsigned 16-bit integer.
func (c *Cursor) Uint16() (uint16, error) {
	if err := c.require(2); err != nil {
		return 0, err
	}
	v := c.order.Uint16(c.data[c.off:])
	c.off += 2
	return v, nil
}

// Uint32 reads an unsigned 32-bit integer.
func (c *Cursor) Uint32() (uint32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}
	v := c.order.Uint32(c.data[c.off:])
	c.off += 4
	return v, nil
}

// Float32 reads a 32-bit float.
func (c *Cursor) Float32() (float32, error) {
	bits, err := c.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// Bytes reads an explicit-length byte slice without copying.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}
	v := c.data[c.off : c.off+n]
	c.off += n
	return v, nil
}

// CString reads a zero-terminated byte run, returning the bytes before the
// terminator and advancing past it.
func (c *Cursor) CString() ([]byte, error) {
	start := c.off
	for i := start; i < len(c.data); i++ {
		if c.data[i] == 0 {
			c.off = i + 1
			return c.data[start:i], nil
		}
	}
	c.off = len(c.data)
	return nil, fmt.Errorf("%w: unterminated string at offset %d", ErrOutOfBounds, start)
}
