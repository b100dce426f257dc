// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

// ALCH flags bits: food/medicine/poison.
const (
	alchFlagFood     = 1 << 0
	alchFlagMedicine = 1 << 1
	alchFlagPoison   = 1 << 2
)

func init() {
	registerDecoder("ALCH", decodeALCH)
}

// decodeALCH decodes weight, value/flags, and the repeated (EFID, EFIT)
// magic-effect pairs a potion/poison record carries.
func decodeALCH(rec *Record, subs []Subrecord, st *StringTable) {
	if data, ok := findSubrecord(subs, "DATA"); ok {
		setFloat(rec, "weight", data.Payload, 0)
	}
	if enit, ok := findSubrecord(subs, "ENIT"); ok {
		setInt(rec, "value", enit.Payload, 0)
		if flags, ok := u32At(enit.Payload, 4); ok {
			rec.Fields["flags"] = IntField("flags", int64(flags))
			rec.Fields["is_food"] = BoolField("is_food", flags&alchFlagFood != 0)
			rec.Fields["is_medicine"] = BoolField("is_medicine", flags&alchFlagMedicine != 0)
			rec.Fields["is_poison"] = BoolField("is_poison", flags&alchFlagPoison != 0)
		}
	}

	efids := findAllSubrecords(subs, "EFID")
	efits := findAllSubrecords(subs, "EFIT")
	for i := range efids {
		if i >= len(efits) {
			break
		}
		formID, ok := u32At(efids[i].Payload, 0)
		if !ok {
			continue
		}
		b := efits[i].Payload
		prefix := itoaPrefix("effect", i+1)
		rec.Fields[prefix+"_form_id"] = FormRefField(prefix+"_form_id", formID)
		setFloat(rec, prefix+"_magnitude", b, 0)
		setInt(rec, prefix+"_area", b, 4)
		setInt(rec, prefix+"_duration", b, 8)
	}
}
