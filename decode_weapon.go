// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

func init() {
	registerDecoder("WEAP", decodeWEAP)
	registerDecoder("AMMO", decodeAMMO)
}

// decodeWEAP decodes the WEAP DATA and DNAM subrecords:
// DATA carries value/weight/damage, DNAM carries the combat-tuning
// fields. Each field is read at its own fixed offset so a short payload
// only drops the fields past the cut, never the ones before it.
func decodeWEAP(rec *Record, subs []Subrecord, st *StringTable) {
	if data, ok := findSubrecord(subs, "DATA"); ok {
		setInt(rec, "value", data.Payload, 0)
		setFloat(rec, "weight", data.Payload, 4)
		setInt(rec, "damage", data.Payload, 8)
	}
	if dnam, ok := findSubrecord(subs, "DNAM"); ok {
		b := dnam.Payload
		setFloat(rec, "speed", b, 0)
		setFloat(rec, "reach", b, 4)
		setFloat(rec, "min_range", b, 8)
		setFloat(rec, "max_range", b, 12)
		setInt(rec, "crit_damage", b, 16)
		setFloat(rec, "crit_mult", b, 20)
		setInt(rec, "num_projectiles", b, 24)
	}
}

// decodeAMMO decodes the AMMO DATA subrecord.
func decodeAMMO(rec *Record, subs []Subrecord, st *StringTable) {
	data, ok := findSubrecord(subs, "DATA")
	if !ok {
		return
	}
	b := data.Payload
	setFormRef(rec, "projectile_form_id", b, 0)
	setFloat(rec, "damage", b, 4)
	setFloat(rec, "weight", b, 8)
	setInt(rec, "value", b, 12)
	if flags, ok := u32At(b, 16); ok {
		rec.Fields["flags"] = IntField("flags", int64(flags))
	}
}
