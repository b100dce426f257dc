// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import (
	"io"
	"path"
	"strings"
)

// BA2 magic and archive kinds.
const (
	ba2Magic     = "BTDX"
	ba2KindGNRL  = "GNRL"
	ba2KindDX10  = "DX10"
	gnrlEntrySize = 36
)

// EntryKind distinguishes a general blob entry from a texture chunk set.
type EntryKind int

const (
	EntryGeneral EntryKind = iota
	EntryTexture
)

// Listing is one member of a BA2 archive, as returned by Archive.List.
type Listing struct {
	Path           string
	UnpackedSize   uint32
	Kind           EntryKind
}

type gnrlEntry struct {
	nameHash   uint32
	ext        [4]byte
	dirHash    uint32
	unk0C      uint32
	dataOffset uint64
	packed     uint32
	unpacked   uint32
	unk20      uint32
}

type dx10Chunk struct {
	offset   uint64
	packed   uint32
	unpacked uint32
	startMip uint16
	endMip   uint16
	align    uint32
}

type dx10Entry struct {
	nameHash        uint32
	ext             [4]byte
	dirHash         uint32
	unk0C           uint8
	chunkCount      uint8
	chunkHeaderSize uint16
	height          uint16
	width           uint16
	numMips         uint8
	format          uint8
	unk16           uint16
	chunks          []dx10Chunk
}

// Archive is a parsed BA2 bundled archive. It holds the member directory
// only; payload bytes are read on demand via Read rather than eagerly
// materialized up front.
type Archive struct {
	r       io.ReaderAt
	size    int64
	version uint32
	kind    string

	gnrl map[string]*gnrlEntry
	dx10 map[string]*dx10Entry
	// order preserves file order for deterministic List() output.
	order []string
}

// OpenBA2 parses the BA2 header, file entry table, and name table from r.
// size is the total archive length (used to bounds-check the name table).
func OpenBA2(r io.ReaderAt, size int64) (*Archive, error) {
	header := make([]byte, 24)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, newErr(KindTruncated, 0, 0, "BA2 header", err)
	}
	c := NewCursor(header)

	magic, _ := c.ReadTag()
	if magic != ba2Magic {
		return nil, newErr(KindBadMagic, 0, 0, "not a BTDX archive", nil)
	}
	version, _ := c.ReadU32()
	if version != 1 && version < 7 {
		return nil, newErr(KindUnsupportedVersion, 4, 0, "unknown BA2 version", nil)
	}
	kind, _ := c.ReadTag()
	if kind != ba2KindGNRL && kind != ba2KindDX10 {
		return nil, newErr(KindBadMagic, 8, 0, "unknown BA2 archive kind", nil)
	}
	fileCount, _ := c.ReadU32()
	nameTableOffset, _ := c.ReadU64()

	a := &Archive{
		r: r, size: size, version: version, kind: kind,
		gnrl: map[string]*gnrlEntry{}, dx10: map[string]*dx10Entry{},
	}

	entryTableOffset := int64(24)
	var names []string
	if nameTableOffset != 0 {
		var err error
		names, err = a.readNameTable(int64(nameTableOffset), fileCount)
		if err != nil {
			return nil, err
		}
	}

	switch kind {
	case ba2KindGNRL:
		if err := a.readGNRLEntries(entryTableOffset, fileCount, names); err != nil {
			return nil, err
		}
	case ba2KindDX10:
		if err := a.readDX10Entries(entryTableOffset, fileCount, names); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func normalizePath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
}

func (a *Archive) readNameTable(offset int64, count uint32) ([]string, error) {
	// The name table runs from offset to the end of the file: a sequence of
	// u16-length-prefixed paths, one per archived file in entry order.
	if offset < 0 || offset > a.size {
		return nil, newErr(KindTruncated, offset, 0, "name table offset beyond file", nil)
	}
	buf := make([]byte, a.size-offset)
	if _, err := a.r.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, newErr(KindTruncated, offset, 0, "name table", err)
	}
	c := NewCursor(buf)
	names := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		n, err := c.ReadU16()
		if err != nil {
			return nil, newErr(KindTruncated, offset+c.Pos(), 0, "name table entry", err)
		}
		raw, err := c.ReadBytes(int64(n))
		if err != nil {
			return nil, newErr(KindTruncated, offset+c.Pos(), 0, "name table entry", err)
		}
		names = append(names, string(raw))
	}
	return names, nil
}

func nameAt(names []string, i uint32) string {
	if int(i) < len(names) {
		return names[i]
	}
	return ""
}

func (a *Archive) readGNRLEntries(offset int64, count uint32, names []string) error {
	buf := make([]byte, int64(count)*gnrlEntrySize)
	if _, err := a.r.ReadAt(buf, offset); err != nil {
		return newErr(KindTruncated, offset, 0, "GNRL entry table", err)
	}
	c := NewCursor(buf)
	for i := uint32(0); i < count; i++ {
		e := &gnrlEntry{}
		e.nameHash, _ = c.ReadU32()
		extBytes, err := c.ReadBytes(4)
		if err != nil {
			return newErr(KindTruncated, offset+c.Pos(), 0, "GNRL entry", err)
		}
		copy(e.ext[:], extBytes)
		e.dirHash, _ = c.ReadU32()
		e.unk0C, _ = c.ReadU32()
		e.dataOffset, _ = c.ReadU64()
		e.packed, _ = c.ReadU32()
		e.unpacked, _ = c.ReadU32()
		e.unk20, _ = c.ReadU32()

		p := normalizePath(nameAt(names, i))
		if p == "" {
			continue
		}
		a.gnrl[p] = e
		a.order = append(a.order, p)
	}
	return nil
}

func (a *Archive) readDX10Entries(offset int64, count uint32, names []string) error {
	pos := offset
	for i := uint32(0); i < count; i++ {
		header := make([]byte, 24)
		if _, err := a.r.ReadAt(header, pos); err != nil {
			return newErr(KindTruncated, pos, 0, "DX10 texture header", err)
		}
		c := NewCursor(header)
		e := &dx10Entry{}
		e.nameHash, _ = c.ReadU32()
		extBytes, _ := c.ReadBytes(4)
		copy(e.ext[:], extBytes)
		e.dirHash, _ = c.ReadU32()
		e.unk0C, _ = c.ReadU8()
		e.chunkCount, _ = c.ReadU8()
		e.chunkHeaderSize, _ = c.ReadU16()
		e.height, _ = c.ReadU16()
		e.width, _ = c.ReadU16()
		e.numMips, _ = c.ReadU8()
		e.format, _ = c.ReadU8()
		e.unk16, _ = c.ReadU16()
		pos += 24

		chunksBuf := make([]byte, int64(e.chunkCount)*24)
		if _, err := a.r.ReadAt(chunksBuf, pos); err != nil {
			return newErr(KindTruncated, pos, 0, "DX10 chunk table", err)
		}
		cc := NewCursor(chunksBuf)
		for j := uint8(0); j < e.chunkCount; j++ {
			ch := dx10Chunk{}
			ch.offset, _ = cc.ReadU64()
			ch.packed, _ = cc.ReadU32()
			ch.unpacked, _ = cc.ReadU32()
			ch.startMip, _ = cc.ReadU16()
			ch.endMip, _ = cc.ReadU16()
			ch.align, _ = cc.ReadU32()
			e.chunks = append(e.chunks, ch)
		}
		pos += int64(e.chunkCount) * 24

		p := normalizePath(nameAt(names, i))
		if p == "" {
			continue
		}
		a.dx10[p] = e
		a.order = append(a.order, p)
	}
	return nil
}

// List returns every archive member in file order.
func (a *Archive) List() []Listing {
	out := make([]Listing, 0, len(a.order))
	for _, p := range a.order {
		if e, ok := a.gnrl[p]; ok {
			out = append(out, Listing{Path: e.displayPath(p), UnpackedSize: e.unpacked, Kind: EntryGeneral})
		} else if e, ok := a.dx10[p]; ok {
			out = append(out, Listing{Path: p, UnpackedSize: e.totalUnpacked(), Kind: EntryTexture})
		}
	}
	return out
}

func (e *gnrlEntry) displayPath(p string) string { return p }

func (e *dx10Entry) totalUnpacked() uint32 {
	var total uint32
	for _, c := range e.chunks {
		total += c.unpacked
	}
	return total
}

// Read extracts the full decompressed payload of path (case-insensitive,
// slash-normalized). For a DX10 member, this is the concatenation of every
// mip chunk's inflated payload in mip order; DDS header synthesis is left
// to the asset-extraction collaborator.
func (a *Archive) Read(p string) ([]byte, error) {
	key := normalizePath(p)
	if e, ok := a.gnrl[key]; ok {
		return a.readGNRL(e)
	}
	if e, ok := a.dx10[key]; ok {
		return a.readDX10(e)
	}
	return nil, newErr(KindEntryNotFound, -1, 0, p, nil)
}

func (a *Archive) readGNRL(e *gnrlEntry) ([]byte, error) {
	if e.packed == 0 {
		raw := make([]byte, e.unpacked)
		if _, err := a.r.ReadAt(raw, int64(e.dataOffset)); err != nil {
			return nil, newErr(KindTruncated, int64(e.dataOffset), 0, "GNRL payload", err)
		}
		return raw, nil
	}
	compressed := make([]byte, e.packed)
	if _, err := a.r.ReadAt(compressed, int64(e.dataOffset)); err != nil {
		return nil, newErr(KindTruncated, int64(e.dataOffset), 0, "GNRL payload", err)
	}
	return Inflate(compressed, e.unpacked)
}

func (a *Archive) readDX10(e *dx10Entry) ([]byte, error) {
	out := make([]byte, 0, e.totalUnpacked())
	for _, ch := range e.chunks {
		if ch.packed == 0 {
			raw := make([]byte, ch.unpacked)
			if _, err := a.r.ReadAt(raw, int64(ch.offset)); err != nil {
				return nil, newErr(KindTruncated, int64(ch.offset), 0, "DX10 chunk", err)
			}
			out = append(out, raw...)
			continue
		}
		compressed := make([]byte, ch.packed)
		if _, err := a.r.ReadAt(compressed, int64(ch.offset)); err != nil {
			return nil, newErr(KindTruncated, int64(ch.offset), 0, "DX10 chunk", err)
		}
		payload, err := Inflate(compressed, ch.unpacked)
		if err != nil {
			return nil, err
		}
		out = append(out, payload...)
	}
	return out, nil
}

// FindGlob returns every member path matching a shell-style pattern
// (supporting * and ?), matched case-insensitively against the
// slash-normalized path.
func (a *Archive) FindGlob(pattern string) ([]string, error) {
	pattern = normalizePath(pattern)
	var out []string
	for _, p := range a.order {
		ok, err := path.Match(pattern, p)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}
