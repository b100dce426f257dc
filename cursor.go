// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"
)

// MaxInflateSize caps the scratch buffer allocated for a single inflate,
// defending against a malformed or hostile declared uncompressed length.
const MaxInflateSize = 64 << 20 // 64 MiB

// Cursor is a bounds-checked little-endian reader over a byte slice. Every
// Read* call advances pos; a read that would run past the end of buf fails
// with a Truncated *Error instead of panicking.
type Cursor struct {
	buf []byte
	pos int64
}

// NewCursor wraps buf for sequential little-endian reads starting at 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current read position.
func (c *Cursor) Pos() int64 { return c.pos }

// Len returns the number of unread bytes remaining.
func (c *Cursor) Len() int64 { return int64(len(c.buf)) - c.pos }

// Seek moves the cursor to an absolute position within buf. A negative
// position or one beyond the buffer length fails with Truncated.
func (c *Cursor) Seek(pos int64) error {
	if pos < 0 || pos > int64(len(c.buf)) {
		return newErr(KindTruncated, pos, 0, "seek out of range", nil)
	}
	c.pos = pos
	return nil
}

// Advance skips n bytes forward without reading them.
func (c *Cursor) Advance(n int64) error {
	return c.Seek(c.pos + n)
}

func (c *Cursor) require(n int64) error {
	if n < 0 || c.pos+n > int64(len(c.buf)) {
		return newErr(KindTruncated, c.pos, 0, "read past end of buffer", nil)
	}
	return nil
}

// ReadU8 reads one byte.
func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.require(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

// ReadU16 reads a little-endian uint16.
func (c *Cursor) ReadU16() (uint16, error) {
	if err := c.require(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

// ReadU32 reads a little-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

// ReadI32 reads a little-endian int32.
func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

// ReadU64 reads a little-endian uint64.
func (c *Cursor) ReadU64() (uint64, error) {
	if err := c.require(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

// ReadF32 reads a little-endian IEEE-754 float32.
func (c *Cursor) ReadF32() (float32, error) {
	v, err := c.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadTag reads a fixed 4-byte ASCII tag (record/group type, e.g. "WEAP").
func (c *Cursor) ReadTag() (string, error) {
	if err := c.require(4); err != nil {
		return "", err
	}
	v := string(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

// ReadBytes reads n raw bytes and returns a slice sharing the underlying
// array (callers that need to retain it past further cursor use must copy).
func (c *Cursor) ReadBytes(n int64) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

// ReadBytesCopy is ReadBytes but returns an independent copy.
func (c *Cursor) ReadBytesCopy(n int64) ([]byte, error) {
	v, err := c.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// ReadCString reads a NUL-terminated UTF-8 string. Lenient fallback:
// invalid UTF-8 sequences are replaced with U+FFFD rather than rejected,
// since localized string heaps occasionally carry legacy codepage bytes.
func (c *Cursor) ReadCString() (string, error) {
	start := c.pos
	for {
		if c.pos >= int64(len(c.buf)) {
			return "", newErr(KindTruncated, start, 0, "unterminated string", nil)
		}
		if c.buf[c.pos] == 0 {
			break
		}
		c.pos++
	}
	s := c.buf[start:c.pos]
	c.pos++ // consume the NUL
	return lenientUTF8(s), nil
}

// ReadPString8 reads a 1-byte-length-prefixed UTF-8 string.
func (c *Cursor) ReadPString8() (string, error) {
	n, err := c.ReadU8()
	if err != nil {
		return "", err
	}
	b, err := c.ReadBytes(int64(n))
	if err != nil {
		return "", err
	}
	return lenientUTF8(b), nil
}

// ReadPString32 reads a u32-length-prefixed UTF-8 string. The length
// includes any trailing NUL; callers that need the NUL trimmed do so
// themselves (the dlstrings/ilstrings formats rely on this).
func (c *Cursor) ReadPString32() (string, error) {
	n, err := c.ReadU32()
	if err != nil {
		return "", err
	}
	b, err := c.ReadBytes(int64(n))
	if err != nil {
		return "", err
	}
	return lenientUTF8(b), nil
}

func lenientUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	// Lenient fallback: replace invalid sequences rather than fail the read.
	return string(bytes.ToValidUTF8(b, "�"))
}

// Inflate decompresses a zlib stream to exactly expectedLen bytes (or
// fails). expectedLen is capped at MaxInflateSize to defend against a
// malformed or hostile declared uncompressed length; exceeding the cap is
// reported as DecompressFailed, never Truncated.
func Inflate(compressed []byte, expectedLen uint32) ([]byte, error) {
	if expectedLen > MaxInflateSize {
		return nil, newErr(KindDecompressFailed, -1, 0,
			"declared uncompressed length exceeds cap", errDecompressCapped)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, newErr(KindDecompressFailed, -1, 0, "zlib header invalid", err)
	}
	defer zr.Close()

	out := make([]byte, 0, expectedLen)
	buf := bytes.NewBuffer(out)
	if _, err := io.CopyN(buf, zr, int64(expectedLen)); err != nil {
		return nil, newErr(KindDecompressFailed, -1, 0, "zlib stream truncated or corrupt", err)
	}
	return buf.Bytes(), nil
}
