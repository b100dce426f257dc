// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import "math"

// parseSubrecords walks a record's uncompressed data stream into its
// tagged, length-prefixed subrecords, honoring the XXXX override: an
// XXXX tag carries, in its own payload, a u32 length that applies to the
// subrecord immediately following it instead of that subrecord's own
// 16-bit length field.
//
// A subrecord whose length runs past the remaining payload is dropped
// with a warning and iteration stops there (the remaining bytes can no
// longer be framed reliably); everything already decoded is kept.
func parseSubrecords(data []byte, warnf func(string, ...interface{})) ([]Subrecord, bool) {
	c := NewCursor(data)
	var out []Subrecord
	var override *uint32
	truncated := false

	for c.Len() > 0 {
		if c.Len() < 6 {
			truncated = true
			if warnf != nil {
				warnf("subrecord header truncated with %d bytes remaining", c.Len())
			}
			break
		}
		tag, _ := c.ReadTag()
		length16, _ := c.ReadU16()

		if tag == "XXXX" {
			if int64(length16) > c.Len() {
				truncated = true
				break
			}
			ovBytes, err := c.ReadBytes(int64(length16))
			if err != nil {
				truncated = true
				break
			}
			ov := bytesToU32LE(ovBytes)
			if ov == math.MaxUint32 {
				truncated = true
				if warnf != nil {
					warnf("XXXX override of u32::MAX rejected as malformed")
				}
				break
			}
			override = &ov
			continue
		}

		length := uint32(length16)
		if override != nil {
			length = *override
			override = nil
		}

		if int64(length) > c.Len() {
			truncated = true
			if warnf != nil {
				warnf("subrecord %q length %d exceeds remaining payload, dropped", tag, length)
			}
			break
		}
		payload, err := c.ReadBytesCopy(int64(length))
		if err != nil {
			truncated = true
			break
		}
		out = append(out, Subrecord{Tag: tag, Payload: payload})
	}
	return out, truncated
}

func bytesToU32LE(b []byte) uint32 {
	var v uint32
	for i := 0; i < 4 && i < len(b); i++ {
		v |= uint32(b[i]) << (8 * uint(i))
	}
	return v
}

// findSubrecord returns the first subrecord with the given tag, if any.
func findSubrecord(subs []Subrecord, tag string) (Subrecord, bool) {
	for _, s := range subs {
		if s.Tag == tag {
			return s, true
		}
	}
	return Subrecord{}, false
}

// findAllSubrecords returns every subrecord with the given tag, in order.
func findAllSubrecords(subs []Subrecord, tag string) []Subrecord {
	var out []Subrecord
	for _, s := range subs {
		if s.Tag == tag {
			out = append(out, s)
		}
	}
	return out
}
