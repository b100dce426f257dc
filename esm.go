// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExpectedESMVersion is the only master-file version this core accepts.
const ExpectedESMVersion = 208

// decodeBatchSize bounds how many records are handed to the worker pool
// between cancellation checks.
const decodeBatchSize = 256

// Options configures parsing: a caller-supplied struct with zero-value
// defaults filled in by New/NewBytes.
type Options struct {
	// StringTable resolves FULL subrecords that hold a localized string
	// id. May be nil, in which case FULL falls back to the numeric id.
	StringTable *StringTable

	// MaxWorkers bounds the decompression/decode worker pool, by default
	// GOMAXPROCS.
	MaxWorkers int

	// Logger receives recoverable parse warnings.
	Logger *zap.Logger
}

// File is an open master data file ready for Parse: a mmap'd (or
// buffered) byte source plus the options that govern how it's walked.
type File struct {
	data   []byte
	mm     mmap.MMap
	f      *os.File
	opts   *Options
	logger *sugaredLogger

	// Populated by Parse.
	ESMSHA256 [32]byte
	Records   []*Record
	Warnings  []string

	warnMu sync.Mutex
}

// New opens name read-only and memory-maps it, falling back to a fully
// buffered read if mmap is unavailable (e.g. unsupported filesystem).
func New(name string, opts *Options) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	file := &File{f: f, opts: normalizeOptions(opts)}
	file.logger = newLogger(file.opts.Logger)

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		file.logger.Warnf("mmap unavailable, falling back to buffered read: %v", err)
		buf, rerr := io.ReadAll(f)
		if rerr != nil {
			f.Close()
			return nil, rerr
		}
		file.data = buf
		return file, nil
	}
	file.mm = data
	file.data = data
	return file, nil
}

// NewBytes wraps an in-memory master file buffer, for tests and for
// callers that already hold the bytes (e.g. read from an archive).
func NewBytes(data []byte, opts *Options) *File {
	file := &File{data: data, opts: normalizeOptions(opts)}
	file.logger = newLogger(file.opts.Logger)
	return file
}

func normalizeOptions(opts *Options) *Options {
	if opts == nil {
		opts = &Options{}
	}
	o := *opts
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = runtime.GOMAXPROCS(0)
	}
	return &o
}

// Close releases the memory-mapped file, if any.
func (file *File) Close() error {
	if file.mm != nil {
		_ = file.mm.Unmap()
	}
	if file.f != nil {
		return file.f.Close()
	}
	return nil
}

// Parse performs the full structural walk and field decode: verify the
// TES4 header, hash the file, walk groups and records on the primary
// thread, then decompress and decode records
// through a bounded worker pool whose results are written back in file
// order. ctx is checked at group boundaries and before each record batch;
// a cancelled context rolls back to no partial Records.
func (file *File) Parse(ctx context.Context) error {
	if len(file.data) < recordHeaderSize {
		return newErr(KindTruncated, 0, 0, "file smaller than a TES4 header", nil)
	}

	if err := file.verifyHeader(); err != nil {
		return err
	}
	file.ESMSHA256 = sha256.Sum256(file.data)

	c := NewCursor(file.data)
	if err := c.Seek(int64(file.tes4TotalSize())); err != nil {
		return newErr(KindTruncated, 0, 0, "TES4 record runs past end of file", err)
	}

	var raws []rawRecord
	w := &groupWalker{ctx: ctx, logger: file.logger, onWarn: func(format string, args ...interface{}) {
		file.addWarning(format, args...)
	}}
	if err := w.walk(c, int64(len(file.data)), &raws, true); err != nil {
		return err
	}

	records, err := file.decodeStage(ctx, raws)
	if err != nil {
		return err
	}
	file.Records = records
	return nil
}

// verifyHeader checks the leading TES4 record's tag and declared version.
func (file *File) verifyHeader() error {
	c := NewCursor(file.data)
	tag, err := c.ReadTag()
	if err != nil || tag != "TES4" {
		return newErr(KindBadMagic, 0, 0, "master file does not start with TES4", err)
	}
	if _, err := c.ReadU32(); err != nil { // data_size
		return newErr(KindTruncated, 4, 0, "TES4 header", err)
	}
	if _, err := c.ReadU32(); err != nil { // flags
		return newErr(KindTruncated, 8, 0, "TES4 header", err)
	}
	if _, err := c.ReadU32(); err != nil { // form_id (always 0 for TES4)
		return newErr(KindTruncated, 12, 0, "TES4 header", err)
	}
	if _, err := c.ReadU32(); err != nil { // revision
		return newErr(KindTruncated, 16, 0, "TES4 header", err)
	}
	version, err := c.ReadU16()
	if err != nil {
		return newErr(KindTruncated, 20, 0, "TES4 header", err)
	}
	if version != ExpectedESMVersion {
		return newErr(KindUnsupportedVersion, 20, 0, "expected version 208", nil)
	}
	return nil
}

// tes4TotalSize returns the byte offset immediately after the TES4
// record (header + its data_size payload).
func (file *File) tes4TotalSize() uint32 {
	c := NewCursor(file.data)
	_ = c.Seek(4)
	dataSize, _ := c.ReadU32()
	return recordHeaderSize + dataSize
}

func (file *File) addWarning(format string, args ...interface{}) {
	file.warnMu.Lock()
	defer file.warnMu.Unlock()
	file.Warnings = append(file.Warnings, fmt.Sprintf(format, args...))
}

// decodeStage inflates (if needed) and field-decodes every raw record
// through a bounded worker pool (golang.org/x/sync/errgroup), writing
// each result directly into its input slot so the output is in file
// order regardless of which goroutine finishes first.
func (file *File) decodeStage(ctx context.Context, raws []rawRecord) ([]*Record, error) {
	out := make([]*Record, len(raws))

	for start := 0; start < len(raws); start += decodeBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, newErr(KindCancelled, -1, 0, "parse cancelled", err)
		}
		end := start + decodeBatchSize
		if end > len(raws) {
			end = len(raws)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(file.opts.MaxWorkers)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i] = file.decodeOne(raws[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, newErr(KindCancelled, -1, 0, "parse cancelled", err)
		}
	}
	return compactRecords(out), nil
}

// compactRecords drops the nil slots decodeOne leaves behind for
// record-level failures (e.g. DecompressFailed), so a malformed record
// never reaches file.Records/store.go's InsertRecords with a zero-value
// DataHash standing in for a real one.
func compactRecords(recs []*Record) []*Record {
	out := recs[:0]
	for _, r := range recs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// decodeOne decodes one raw record, or returns nil when the record is
// dropped: a record-level error (e.g. a failed decompression) is
// recoverable per spec.md's error policy, so the offending record is
// logged and skipped rather than retained with a fabricated hash.
func (file *File) decodeOne(raw rawRecord) *Record {
	rec := &Record{
		FormID:   FormID(raw.formID),
		Type:     raw.typ,
		Flags:    raw.flags,
		Revision: raw.revision,
		Version:  raw.version,
		Fields:   map[string]Field{},
	}

	data := raw.data
	if raw.flags&FlagCompressed != 0 {
		uncompressed, err := file.inflateRecord(raw)
		if err != nil {
			file.addWarning("record %s (form_id 0x%08X) dropped: %v", raw.typ, raw.formID, err)
			return nil
		}
		data = uncompressed
	}
	rec.RawData = data
	rec.DataHash = sha256.Sum256(data)

	subs, truncated := parseSubrecords(data, func(format string, args ...interface{}) {
		file.addWarning("record %s (form_id 0x%08X): "+format, append([]interface{}{raw.typ, raw.formID}, args...)...)
	})
	rec.truncated = truncated
	rec.subrecords = subs

	decodeFields(rec, subs, file.opts.StringTable)
	return rec
}

// inflateRecord decompresses a compressed record's payload: the first 4
// bytes are the declared uncompressed length, followed by the zlib
// stream.
func (file *File) inflateRecord(raw rawRecord) ([]byte, error) {
	if len(raw.data) < 4 {
		return nil, newErr(KindTruncated, -1, raw.formID, "compressed record missing length prefix", nil)
	}
	c := NewCursor(raw.data)
	expected, _ := c.ReadU32()
	rest, _ := c.ReadBytes(c.Len())
	return Inflate(rest, expected)
}
