// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import (
	"strings"
)

// DefaultLanguage is used when the caller does not specify one.
const DefaultLanguage = "en"

// stringTableSuffix identifies which of the three localized-string
// sub-formats a BA2 member belongs to.
type stringTableSuffix int

const (
	suffixStrings stringTableSuffix = iota
	suffixDLStrings
	suffixILStrings
)

func (s stringTableSuffix) lengthPrefixed() bool {
	return s != suffixStrings
}

func (s stringTableSuffix) ext() string {
	switch s {
	case suffixDLStrings:
		return ".dlstrings"
	case suffixILStrings:
		return ".ilstrings"
	default:
		return ".strings"
	}
}

// StringTable resolves a localized string_id to its display text, as
// built from the three sub-tables inside a localization BA2.
type StringTable struct {
	text map[uint32]string
	// fromStrings records which ids came from the non-length-prefixed
	// .strings table, since that table wins on cross-file collisions.
	fromStrings map[uint32]bool
}

// Lookup returns the text for id and whether it was found. A miss is not
// an error: callers keep the numeric id unresolved.
func (st *StringTable) Lookup(id uint32) (string, bool) {
	s, ok := st.text[id]
	return s, ok
}

// Len reports how many distinct ids are resolvable.
func (st *StringTable) Len() int { return len(st.text) }

// LoadStringTable locates the three `strings/<name>_<lang>.<suffix>`
// members inside a BA2 (case-insensitive) and merges them into one
// id->text map. Duplicate ids within one file: last wins. Across files:
// the non-length-prefixed .strings table wins.
func LoadStringTable(a *Archive, lang string) (*StringTable, error) {
	if lang == "" {
		lang = DefaultLanguage
	}
	lang = strings.ToLower(lang)

	st := &StringTable{text: map[uint32]string{}, fromStrings: map[uint32]bool{}}

	for _, suf := range []stringTableSuffix{suffixStrings, suffixDLStrings, suffixILStrings} {
		member := findStringMember(a, lang, suf)
		if member == "" {
			continue
		}
		raw, err := a.Read(member)
		if err != nil {
			return nil, err
		}
		entries, err := parseStringFile(raw, suf.lengthPrefixed())
		if err != nil {
			return nil, err
		}
		for id, text := range entries {
			if suf != suffixStrings && st.fromStrings[id] {
				continue // non-length-prefixed table already claimed this id
			}
			st.text[id] = text
			if suf == suffixStrings {
				st.fromStrings[id] = true
			}
		}
	}
	return st, nil
}

func findStringMember(a *Archive, lang string, suf stringTableSuffix) string {
	suffix := "_" + lang + suf.ext()
	for _, l := range a.List() {
		p := strings.ToLower(l.Path)
		if strings.HasPrefix(p, "strings/") && strings.HasSuffix(p, suffix) {
			return l.Path
		}
	}
	return ""
}

// parseStringFile decodes one localized-string sub-table: a header
// {count u32, data_size u32}, a directory of (id, offset) pairs, and a
// string heap. lengthPrefixed selects between the .strings layout
// (NUL-terminated) and the .dlstrings/.ilstrings layout (u32-length
// prefixed, length includes the trailing NUL).
func parseStringFile(raw []byte, lengthPrefixed bool) (map[uint32]string, error) {
	c := NewCursor(raw)
	count, err := c.ReadU32()
	if err != nil {
		return nil, newErr(KindTruncated, 0, 0, "string table header", err)
	}
	dataSize, err := c.ReadU32()
	if err != nil {
		return nil, newErr(KindTruncated, 4, 0, "string table header", err)
	}

	type dirEntry struct {
		id     uint32
		offset uint32
	}
	dir := make([]dirEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := c.ReadU32()
		if err != nil {
			return nil, newErr(KindTruncated, c.Pos(), 0, "string table directory", err)
		}
		off, err := c.ReadU32()
		if err != nil {
			return nil, newErr(KindTruncated, c.Pos(), 0, "string table directory", err)
		}
		dir = append(dir, dirEntry{id, off})
	}

	heapStart := c.Pos()
	heapEnd := heapStart + int64(dataSize)
	if heapEnd > int64(len(raw)) {
		heapEnd = int64(len(raw))
	}
	heap := raw[heapStart:heapEnd]

	out := make(map[uint32]string, len(dir))
	for _, e := range dir {
		hc := NewCursor(heap)
		if err := hc.Seek(int64(e.offset)); err != nil {
			continue // dropped with a warning-equivalent: skip malformed directory entries
		}
		var text string
		if lengthPrefixed {
			n, err := hc.ReadU32()
			if err != nil {
				continue
			}
			b, err := hc.ReadBytes(int64(n))
			if err != nil {
				continue
			}
			text = strings.TrimSuffix(string(b), "\x00")
		} else {
			var err error
			text, err = hc.ReadCString()
			if err != nil {
				continue
			}
		}
		out[e.id] = text // last wins on duplicate ids within this file
	}
	return out, nil
}
