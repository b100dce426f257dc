// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import "context"

// skipRecordTypes are never decoded: a group labelled with one of them is
// seeked past whole, and a record of one of them met inside another group
// is read past and dropped. REFR/NAVM/ACHR content is irrelevant to this core's field-diffing job and parsing it
// would dominate wall-clock for no benefit.
var skipRecordTypes = map[string]bool{
	"REFR": true,
	"NAVM": true,
	"ACHR": true,
}

const (
	groupHeaderSize  = 24
	recordHeaderSize = 24
)

// rawRecord is a record's header plus its verbatim (possibly still
// zlib-compressed) data bytes, captured during the single-threaded
// structural walk. Decompression and subrecord/field decoding happen in a
// later, parallelizable stage (see decodeStage in esm.go).
type rawRecord struct {
	formID   uint32
	typ      string
	flags    uint32
	revision uint32
	version  uint16
	data     []byte
}

// groupWalker performs the single-threaded structural walk: it never
// inflates or interprets subrecord content, only enough of the
// group/record framing to know how many bytes each element
// occupies. That keeps the walk itself cheap and lets decompression be
// offloaded to a worker pool without losing file order. ctx is checked
// at top-level group boundaries so a caller can cancel before the walk
// phase itself runs to completion, not only during decodeStage.
type groupWalker struct {
	ctx    context.Context
	logger *sugaredLogger
	onWarn func(format string, args ...interface{})
}

// walk descends groups (and their nested groups) between [c.Pos(), end),
// appending every non-skipped record to out in file order. top marks a
// top-level call (direct from Parse): per spec.md's cancellation model, only top-level
// group boundaries are checkpoints, so a cancelled ctx is only observed
// there rather than on every nested descent.
func (w *groupWalker) walk(c *Cursor, end int64, out *[]rawRecord, top bool) error {
	for c.Pos() < end {
		if top {
			if err := w.ctx.Err(); err != nil {
				return newErr(KindCancelled, c.Pos(), 0, "parse cancelled at group boundary", err)
			}
		}

		tagStart := c.Pos()
		tag, err := c.ReadTag()
		if err != nil {
			w.warnf("truncated group at offset 0x%X: %v", tagStart, err)
			return nil
		}

		if tag == "GRUP" {
			if err := w.walkGroup(c, tagStart, out); err != nil {
				return err
			}
			continue
		}

		w.walkRecord(c, tagStart, tag, end, out)
	}
	return nil
}

func (w *groupWalker) walkGroup(c *Cursor, tagStart int64, out *[]rawRecord) error {
	groupSize, err := c.ReadU32()
	if err != nil {
		w.warnf("truncated GRUP header at offset 0x%X: %v", tagStart, err)
		return nil
	}
	label, err := c.ReadBytes(4)
	if err != nil {
		w.warnf("truncated GRUP header at offset 0x%X: %v", tagStart, err)
		return nil
	}
	if _, err := c.ReadI32(); err != nil { // group type
		w.warnf("truncated GRUP header at offset 0x%X: %v", tagStart, err)
		return nil
	}
	if _, err := c.ReadU16(); err != nil { // timestamp
		return nil
	}
	if _, err := c.ReadU16(); err != nil { // version
		return nil
	}
	if _, err := c.ReadU32(); err != nil { // unknown
		return nil
	}

	groupEnd := tagStart + int64(groupSize)
	fileEnd := c.Pos() + c.Len()
	if groupSize < groupHeaderSize || groupEnd > fileEnd {
		w.warnf("truncated GRUP %q at offset 0x%X: group_size overruns file", string(label), tagStart)
		groupEnd = fileEnd
	}

	if skipRecordTypes[string(label)] {
		if err := c.Seek(groupEnd); err != nil {
			w.warnf("truncated GRUP %q at offset 0x%X: %v", string(label), tagStart, err)
		}
		return nil
	}

	if err := w.walk(c, groupEnd, out, false); err != nil {
		return err
	}

	// A well-formed nested walk consumes exactly to groupEnd; if a nested
	// truncation stopped short, resync to the declared boundary so the
	// parent group's own accounting stays correct.
	if c.Pos() < groupEnd {
		_ = c.Seek(groupEnd)
	}
	return nil
}

func (w *groupWalker) walkRecord(c *Cursor, tagStart int64, typ string, groupEnd int64, out *[]rawRecord) {
	dataSize, err := c.ReadU32()
	if err != nil {
		w.warnf("truncated record header at offset 0x%X: %v", tagStart, err)
		return
	}
	flags, err := c.ReadU32()
	if err != nil {
		return
	}
	formID, err := c.ReadU32()
	if err != nil {
		return
	}
	revision, err := c.ReadU32()
	if err != nil {
		return
	}
	version, err := c.ReadU16()
	if err != nil {
		return
	}
	if _, err := c.ReadU16(); err != nil { // unknown
		return
	}

	data, err := c.ReadBytes(int64(dataSize))
	if err != nil {
		w.warnf("record %s (form_id 0x%08X) truncated: declared %d bytes past end of group",
			typ, formID, dataSize)
		return
	}

	if skipRecordTypes[typ] {
		return
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	*out = append(*out, rawRecord{
		formID: formID, typ: typ, flags: flags,
		revision: revision, version: version, data: cp,
	})
}

func (w *groupWalker) warnf(format string, args ...interface{}) {
	if w.onWarn != nil {
		w.onWarn(format, args...)
	}
	if w.logger != nil {
		w.logger.Warnf(format, args...)
	}
}
