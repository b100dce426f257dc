// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

func init() {
	registerDecoder("ARMO", decodeARMO)
}

// decodeARMO decodes the ARMO DATA, DNAM, and BOD2 subrecords:
// value/health/weight, armor rating, and the biped-slot bitfield
// each live in their own subrecord.
func decodeARMO(rec *Record, subs []Subrecord, st *StringTable) {
	if data, ok := findSubrecord(subs, "DATA"); ok {
		setInt(rec, "value", data.Payload, 0)
		setInt(rec, "health", data.Payload, 4)
		setFloat(rec, "weight", data.Payload, 8)
	}
	if dnam, ok := findSubrecord(subs, "DNAM"); ok {
		setFloat(rec, "armor_rating", dnam.Payload, 0)
	}
	if bod2, ok := findSubrecord(subs, "BOD2"); ok {
		if slots, ok := u32At(bod2.Payload, 0); ok {
			rec.Fields["biped_slots"] = IntField("biped_slots", int64(slots))
		}
	}
}
