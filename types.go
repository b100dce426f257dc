// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import "fmt"

// FormID is the 32-bit record identifier: the high byte is the load-order
// index, the low 24 bits identify the record within that master. FormIDs
// are opaque keys; String renders them the way the game's own tools do.
type FormID uint32

func (f FormID) String() string { return fmt.Sprintf("0x%08X", uint32(f)) }

// LoadOrderIndex returns the high byte of the FormID.
func (f FormID) LoadOrderIndex() uint8 { return uint8(f >> 24) }

// LocalID returns the low 24 bits of the FormID.
func (f FormID) LocalID() uint32 { return uint32(f) & 0x00FFFFFF }

// RecordHeaderFlag bits of interest in Record.Flags.
const (
	// FlagCompressed marks a record whose data is a u32 uncompressed-length
	// followed by a zlib stream, rather than raw subrecord bytes.
	FlagCompressed uint32 = 0x00040000
)

// FieldKind discriminates the dynamically-typed value a decoded Field
// holds. Diff comparisons are always performed on the (Kind, Value) pair
// together, to avoid accidental cross-kind equality (e.g. the
// int64 0 and the float64 0.0 never compare equal).
type FieldKind int

const (
	KindInt FieldKind = iota
	KindFloat
	KindString
	KindBool
	KindFormRef
	KindBlob
)

func (k FieldKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindFormRef:
		return "form_ref"
	case KindBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// Field is one decoded (name, value, kind) triple. Exactly one of the
// typed accessors below is meaningful for a given Kind.
type Field struct {
	Name  string
	Kind  FieldKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
	Form  uint32
	Blob  []byte
}

// Equal reports whether two fields carry the same (kind, value). Float
// comparison uses floatEqual: a NaN payload compares equal only to
// another NaN, and +0.0/-0.0 compare equal.
func (f Field) Equal(o Field) bool {
	if f.Kind != o.Kind {
		return false
	}
	switch f.Kind {
	case KindInt:
		return f.Int == o.Int
	case KindFloat:
		return floatEqual(f.Float, o.Float)
	case KindString:
		return f.Str == o.Str
	case KindBool:
		return f.Bool == o.Bool
	case KindFormRef:
		return f.Form == o.Form
	case KindBlob:
		return bytesEqual(f.Blob, o.Blob)
	default:
		return false
	}
}

// floatEqual compares two float values the way the diff engine's open
// question decision calls for: NaN equals NaN and nothing else, while
// +0.0 and -0.0 compare equal to each other.
func floatEqual(a, b float64) bool {
	aNaN, bNaN := a != a, b != b
	if aNaN || bNaN {
		return aNaN && bNaN
	}
	if a == 0 && b == 0 {
		return true // folds +0.0 and -0.0 together
	}
	return a == b
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IntField, FloatField, StringField, BoolField, FormRefField, BlobField
// construct a Field of the matching Kind.
func IntField(name string, v int64) Field     { return Field{Name: name, Kind: KindInt, Int: v} }
func FloatField(name string, v float32) Field { return Field{Name: name, Kind: KindFloat, Float: float64(v)} }
func StringField(name string, v string) Field { return Field{Name: name, Kind: KindString, Str: v} }
func BoolField(name string, v bool) Field     { return Field{Name: name, Kind: KindBool, Bool: v} }
func FormRefField(name string, v uint32) Field {
	return Field{Name: name, Kind: KindFormRef, Form: v}
}
func BlobField(name string, v []byte) Field { return Field{Name: name, Kind: KindBlob, Blob: v} }

// Subrecord is one tagged, length-prefixed field inside a record's
// uncompressed data stream.
type Subrecord struct {
	Tag     string
	Payload []byte
}

// Record is a single parsed master-file record: its common header plus
// the decoded field table the matching type decoder produced.
type Record struct {
	FormID       FormID
	Type         string
	Flags        uint32
	Revision     uint32
	Version      uint16
	RawData      []byte // uncompressed subrecord stream
	DataHash     [32]byte
	EditorID     string
	FullName     string
	Fields       map[string]Field
	subrecords   []Subrecord
	truncated    bool // a subrecord's length ran past the payload
}

// DataHashHex renders the full content hash, or its 16-hex-char display
// form when full is false.
func (r *Record) DataHashHex(full bool) string {
	if full {
		return fmt.Sprintf("%x", r.DataHash)
	}
	return fmt.Sprintf("%x", r.DataHash)[:16]
}

// IsCompressed reports whether the record was stored zlib-compressed on
// disk. It does not affect DataHash, which is always computed over the
// uncompressed bytes.
func (r *Record) IsCompressed() bool { return r.Flags&FlagCompressed != 0 }
