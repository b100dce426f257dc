// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

func init() {
	registerDecoder("MISC", decodeValueWeight)
	registerDecoder("BOOK", decodeValueWeight)
	registerDecoder("KEYM", decodeValueWeight)
	registerDecoder("GMST", decodeGMST)
	registerDecoder("GLOB", decodeGLOB)
	registerDecoder("CONT", decodeCONT)
	registerDecoder("FLOR", decodeFLOR)
}

// decodeValueWeight covers MISC/BOOK/KEYM, which all carry just
// value/weight in their DATA subrecord.
func decodeValueWeight(rec *Record, subs []Subrecord, st *StringTable) {
	data, ok := findSubrecord(subs, "DATA")
	if !ok {
		return
	}
	setInt(rec, "value", data.Payload, 0)
	setFloat(rec, "weight", data.Payload, 4)
}

// decodeGMST decodes a game setting: its DATA payload is typed by the
// first character of its EditorID (f/i/s/b).
func decodeGMST(rec *Record, subs []Subrecord, st *StringTable) {
	data, ok := findSubrecord(subs, "DATA")
	if !ok || rec.EditorID == "" {
		return
	}
	b := data.Payload
	switch rec.EditorID[0] {
	case 'f':
		if v, ok := f32At(b, 0); ok {
			rec.Fields["value"] = FloatField("value", v)
		}
	case 'i':
		if v, ok := i32At(b, 0); ok {
			rec.Fields["value"] = IntField("value", int64(v))
		}
	case 'b':
		if v, ok := i32At(b, 0); ok {
			rec.Fields["value"] = BoolField("value", v != 0)
		}
	case 's':
		rec.Fields["value"] = StringField("value", trimCString(b))
	}
}

// decodeGLOB decodes a global variable: its type character (s/l/f) and
// its value, always stored as an f32 regardless of type char per the
// Creation Engine's GLOB format.
func decodeGLOB(rec *Record, subs []Subrecord, st *StringTable) {
	if fnam, ok := findSubrecord(subs, "FNAM"); ok {
		if c, ok := u8At(fnam.Payload, 0); ok {
			rec.Fields["type_char"] = StringField("type_char", string(rune(c)))
		}
	}
	if fltv, ok := findSubrecord(subs, "FLTV"); ok {
		setFloat(rec, "value", fltv.Payload, 0)
	}
}

// decodeCONT decodes a container's contents as repeated CNTO pairs.
func decodeCONT(rec *Record, subs []Subrecord, st *StringTable) {
	decodeComponents(rec, subs, "content")
}

// decodeFLOR decodes the ingredient a harvestable flora/plant yields.
func decodeFLOR(rec *Record, subs []Subrecord, st *StringTable) {
	if pfig, ok := findSubrecord(subs, "PFIG"); ok {
		setFormRef(rec, "harvest_ingredient_form_id", pfig.Payload, 0)
	}
}
