// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import (
	"encoding/binary"
	"math"
)

// fieldDecoder decodes a record's subrecords into rec.Fields. Implementations
// must be total (never fail on a missing optional subrecord) and defensive
// (a too-short payload for an expected field yields a missing field, not a
// partial one).
type fieldDecoder func(rec *Record, subs []Subrecord, st *StringTable)

// fieldDecoders dispatches on record type. Populated by each
// decode_*.go file's init().
var fieldDecoders = map[string]fieldDecoder{}

func registerDecoder(recordType string, fn fieldDecoder) {
	fieldDecoders[recordType] = fn
}

// decodeFields runs the common EDID/FULL handling for every record type,
// then the type-specific decoder if one is registered. Unknown types keep
// empty decoded fields.
func decodeFields(rec *Record, subs []Subrecord, st *StringTable) {
	decodeCommon(rec, subs, st)
	if fn, ok := fieldDecoders[rec.Type]; ok {
		fn(rec, subs, st)
	}
}

// decodeCommon resolves EDID and FULL, which apply uniformly across record
// types.
func decodeCommon(rec *Record, subs []Subrecord, st *StringTable) {
	if edid, ok := findSubrecord(subs, "EDID"); ok {
		rec.EditorID = trimCString(edid.Payload)
	}
	if full, ok := findSubrecord(subs, "FULL"); ok {
		rec.FullName = resolveFullName(full.Payload, st)
	}
}

// resolveFullName treats a 4-byte FULL payload as a string_id to resolve
// against the string table; any other length is treated as inline text.
// An unresolved string id is not an error — the field stays
// unresolved (numeric id retained as the display text).
func resolveFullName(payload []byte, st *StringTable) string {
	if len(payload) == 4 {
		id := binary.LittleEndian.Uint32(payload)
		if st != nil {
			if text, ok := st.Lookup(id); ok {
				return text
			}
		}
		return FormID(id).String()
	}
	return trimCString(payload)
}

func trimCString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// The helpers below read a fixed-width little-endian value at a byte
// offset within a subrecord payload, returning ok=false instead of
// panicking or returning a zero-filled partial value when the payload is
// too short. Offset-addressed rather than cursor-addressed, since
// subrecord structs are read field-by-field.
func u8At(b []byte, off int) (uint8, bool) {
	if off < 0 || off+1 > len(b) {
		return 0, false
	}
	return b[off], true
}

func u16At(b []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(b) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b[off:]), true
}

func u32At(b []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(b) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[off:]), true
}

func i32At(b []byte, off int) (int32, bool) {
	v, ok := u32At(b, off)
	return int32(v), ok
}

func f32At(b []byte, off int) (float32, bool) {
	v, ok := u32At(b, off)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

func setInt(rec *Record, name string, b []byte, off int) {
	if v, ok := i32At(b, off); ok {
		rec.Fields[name] = IntField(name, int64(v))
	}
}

func setFloat(rec *Record, name string, b []byte, off int) {
	if v, ok := f32At(b, off); ok {
		rec.Fields[name] = FloatField(name, v)
	}
}

func setFormRef(rec *Record, name string, b []byte, off int) {
	if v, ok := u32At(b, off); ok {
		rec.Fields[name] = FormRefField(name, v)
	}
}

func setBoolBit(rec *Record, name string, flags uint32, bit uint) {
	rec.Fields[name] = BoolField(name, flags&(1<<bit) != 0)
}
