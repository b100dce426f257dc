// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

const questFlagStartEnabled = 1 << 0

func init() {
	registerDecoder("QUST", decodeQUST)
	registerDecoder("COBJ", decodeCOBJ)
}

// decodeQUST decodes the QUST DNAM subrecord: flags, priority, quest
// type, and the derived start_enabled bool.
func decodeQUST(rec *Record, subs []Subrecord, st *StringTable) {
	dnam, ok := findSubrecord(subs, "DNAM")
	if !ok {
		return
	}
	b := dnam.Payload
	if flags, ok := u32At(b, 0); ok {
		rec.Fields["flags"] = IntField("flags", int64(flags))
		rec.Fields["start_enabled"] = BoolField("start_enabled", flags&questFlagStartEnabled != 0)
	}
	if priority, ok := u8At(b, 4); ok {
		rec.Fields["priority"] = IntField("priority", int64(priority))
	}
	if qtype, ok := u8At(b, 5); ok {
		rec.Fields["quest_type"] = IntField("quest_type", int64(qtype))
	}
}

// decodeCOBJ decodes a constructible-object recipe: what it creates, the
// workbench keyword required, how many units it yields, and the
// component (form_id, count) pairs it consumes, carried as repeated CNTO
// subrecords — the same layout CONT uses for container contents.
func decodeCOBJ(rec *Record, subs []Subrecord, st *StringTable) {
	if cnam, ok := findSubrecord(subs, "CNAM"); ok {
		setFormRef(rec, "created_form_id", cnam.Payload, 0)
	}
	if bnam, ok := findSubrecord(subs, "BNAM"); ok {
		setFormRef(rec, "workbench_keyword_form_id", bnam.Payload, 0)
	}
	if nam1, ok := findSubrecord(subs, "NAM1"); ok {
		setInt(rec, "created_count", nam1.Payload, 0)
	}
	decodeComponents(rec, subs, "component")
}

// decodeComponents flattens repeated CNTO (form_id u32, count i32) pairs
// into indexed fields, since the decoded-field table only holds scalars.
func decodeComponents(rec *Record, subs []Subrecord, namePrefix string) {
	entries := findAllSubrecords(subs, "CNTO")
	for i, e := range entries {
		prefix := itoaPrefix(namePrefix, i+1)
		setFormRef(rec, prefix+"_form_id", e.Payload, 0)
		setInt(rec, prefix+"_count", e.Payload, 4)
	}
}
