// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

// ACBS flag bits decoded onto an NPC_ record.
const (
	acbsFlagEssential = 1 << 1
	acbsFlagProtected = 1 << 3
	acbsFlagUnique    = 1 << 5
)

func init() {
	registerDecoder("NPC_", decodeNPC)
}

// decodeNPC decodes the NPC_ ACBS (actor base configuration) and RNAM
// (race) subrecords.
func decodeNPC(rec *Record, subs []Subrecord, st *StringTable) {
	if acbs, ok := findSubrecord(subs, "ACBS"); ok {
		b := acbs.Payload
		if flags, ok := u32At(b, 0); ok {
			rec.Fields["flags"] = IntField("flags", int64(flags))
			rec.Fields["essential"] = BoolField("essential", flags&acbsFlagEssential != 0)
			rec.Fields["protected"] = BoolField("protected", flags&acbsFlagProtected != 0)
			rec.Fields["unique"] = BoolField("unique", flags&acbsFlagUnique != 0)
		}
		setInt(rec, "level", b, 4)
		setInt(rec, "health_offset", b, 8)
		setInt(rec, "magicka_offset", b, 12)
		setInt(rec, "stamina_offset", b, 16)
	}
	if rnam, ok := findSubrecord(subs, "RNAM"); ok {
		setFormRef(rec, "race_form_id", rnam.Payload, 0)
	}
}
