package fo76dm

import (
	"bytes"
	"compress/zlib"
	"errors"
	"testing"
)

func TestCursorScalarReads(t *testing.T) {
	buf := []byte{
		0x2A,                   // u8 = 42
		0x34, 0x12,             // u16 = 0x1234
		0x78, 0x56, 0x34, 0x12, // u32 = 0x12345678
		'W', 'E', 'A', 'P', // tag
	}
	c := NewCursor(buf)

	u8, err := c.ReadU8()
	if err != nil || u8 != 0x2A {
		t.Fatalf("ReadU8() = %v, %v; want 0x2A, nil", u8, err)
	}
	u16, err := c.ReadU16()
	if err != nil || u16 != 0x1234 {
		t.Fatalf("ReadU16() = %v, %v; want 0x1234, nil", u16, err)
	}
	u32, err := c.ReadU32()
	if err != nil || u32 != 0x12345678 {
		t.Fatalf("ReadU32() = %v, %v; want 0x12345678, nil", u32, err)
	}
	tag, err := c.ReadTag()
	if err != nil || tag != "WEAP" {
		t.Fatalf("ReadTag() = %q, %v; want WEAP, nil", tag, err)
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}

func TestCursorReadPastEndIsTruncated(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02})
	if _, err := c.ReadU32(); err == nil {
		t.Fatal("ReadU32() on a 2-byte buffer succeeded, want Truncated error")
	} else if !errors.Is(err, ErrTruncated) {
		t.Fatalf("ReadU32() error = %v, want Kind=Truncated", err)
	}
}

func TestCursorStrings(t *testing.T) {
	c := NewCursor([]byte("hello\x00world"))
	s, err := c.ReadCString()
	if err != nil || s != "hello" {
		t.Fatalf("ReadCString() = %q, %v; want hello, nil", s, err)
	}

	rest, err := c.ReadBytes(c.Len())
	if err != nil || string(rest) != "world" {
		t.Fatalf("remaining bytes = %q, %v; want world, nil", rest, err)
	}
}

func TestInflateRoundTrip(t *testing.T) {
	want := bytes.Repeat([]byte("fallout76"), 100)

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(want); err != nil {
		t.Fatal(err)
	}
	zw.Close()

	got, err := Inflate(compressed.Bytes(), uint32(len(want)))
	if err != nil {
		t.Fatalf("Inflate() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Inflate() round-trip mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestInflateRejectsOversizedDeclaredLength(t *testing.T) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	zw.Write([]byte("tiny"))
	zw.Close()

	_, err := Inflate(compressed.Bytes(), MaxInflateSize+1)
	if err == nil {
		t.Fatal("Inflate() with an over-cap declared length succeeded, want DecompressFailed")
	}
	if !errors.Is(err, ErrDecompressFailed) {
		t.Fatalf("Inflate() error = %v, want Kind=DecompressFailed", err)
	}
}
