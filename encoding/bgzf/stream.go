package bgzf

import (
	"io"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"v.io/x/lib/vlog"
)

// DefaultCompressionLevel mirrors flate.DefaultCompression, duplicated
// here so callers need not import klauspost/compress/flate just to pick
// the default.
const DefaultCompressionLevel = -1

// Options configures a Stream.  The zero value selects defaults for every
// field.
type Options struct {
	// Workers is the number of Blocks read mode keeps in flight and
	// inflates in parallel.  Zero selects runtime.GOMAXPROCS(0).
	Workers int
	// Level is the compression level passed to the write-mode codec.
	// Zero selects DefaultCompressionLevel.
	Level int
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) level() int {
	if o.Level != 0 {
		return o.Level
	}
	return DefaultCompressionLevel
}

type mode int

const (
	modeClosed mode = iota
	modeRead
	modeWrite
)

// Stream is the byte-oriented read/write/seek/close facade for a BGZF
// file or file-like object.  It is not safe for concurrent use by
// multiple goroutines.
type Stream struct {
	m       mode
	dec     *decoder
	enc     *encoder
	onClose func(io.Closer) error
	closer  io.Closer
}

// OpenRead opens a Stream for reading BGZF data from r.
func OpenRead(r io.ReadSeeker, opts Options) (*Stream, error) {
	s := &Stream{m: modeRead, dec: newDecoder(r, opts.workers())}
	if err := s.dec.readBlocks(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenWrite opens a Stream that writes BGZF data to w.  Close must be
// called to emit the final EOF marker.
func OpenWrite(w io.Writer, opts Options) (*Stream, error) {
	return openWriteAt(w, opts, 0)
}

// openWriteAt opens a write-mode Stream whose underlying writer w is
// already positioned startOffset bytes into the eventual output, so
// VirtualOffsets it reports reflect w's true absolute position rather
// than assuming a fresh file starting at 0.
func openWriteAt(w io.Writer, opts Options, startOffset int64) (*Stream, error) {
	enc, err := newEncoder(w, opts.level(), startOffset)
	if err != nil {
		return nil, err
	}
	return &Stream{m: modeWrite, enc: enc}, nil
}

// OpenWriteParams opens a write-mode Stream configured with an explicit
// gzip strategy and memory level.  It requires a cgo build; on a non-cgo
// build it returns an error, since the strategy knob is only honored by
// the zlibng codec.  memLevel is range-checked but does not change the
// compressed output.
func OpenWriteParams(w io.Writer, level, strategy, memLevel int) (*Stream, error) {
	codec, err := newParamCodec(level, strategy, memLevel)
	if err != nil {
		return nil, err
	}
	return &Stream{m: modeWrite, enc: newEncoderWithCodec(w, codec, 0)}, nil
}

// Open opens the file at path in the given mode ("r", "w", or "a") and
// returns a Stream over it.  "a" strips a pre-existing trailing EOF
// marker (if one is present and well-formed) and resumes writing from
// there, re-emitting the marker on Close.
func Open(path string, fmode string, opts Options) (*Stream, error) {
	switch fmode {
	case "r":
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "bgzf: open")
		}
		s, err := OpenRead(f, opts)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.onClose = func(c io.Closer) error { return c.Close() }
		s.closer = f
		return s, nil
	case "w":
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrap(err, "bgzf: create")
		}
		s, err := OpenWrite(f, opts)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.onClose = func(c io.Closer) error { return c.Close() }
		s.closer = f
		return s, nil
	case "a":
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return nil, errors.Wrap(err, "bgzf: open for append")
		}
		offset, err := stripTrailingEOFMarker(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		s, err := openWriteAt(f, opts, offset)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.onClose = func(c io.Closer) error { return c.Close() }
		s.closer = f
		return s, nil
	default:
		return nil, errors.Errorf("bgzf: invalid mode %q", fmode)
	}
}

// stripTrailingEOFMarker truncates f by len(eofMarker) bytes if, and only
// if, its trailing bytes are byte-for-byte the canonical marker, then
// seeks f to the new end so subsequent writes append.  A file with no
// recognizable marker (e.g. one left by a writer that crashed before
// Close) is left untouched and simply appended to.  It returns the
// absolute offset f is left positioned at, for the caller to seed the
// encoder's own block-offset bookkeeping with.
func stripTrailingEOFMarker(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "bgzf: stat")
	}
	size := info.Size()
	end := size
	if size >= int64(len(eofMarker)) {
		buf := make([]byte, len(eofMarker))
		if _, err := f.ReadAt(buf, size-int64(len(eofMarker))); err != nil {
			return 0, errors.Wrap(err, "bgzf: reading trailing bytes")
		}
		if isEOFBlock(buf) {
			end = size - int64(len(eofMarker))
		}
	}
	if err := f.Truncate(end); err != nil {
		return 0, errors.Wrap(err, "bgzf: truncate")
	}
	if _, err := f.Seek(end, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

// IsOpen reports whether the stream has not yet been closed.
func (s *Stream) IsOpen() bool { return s.m != modeClosed }

// ReadByte reads and returns the next decompressed byte.  Valid only in
// read mode.
func (s *Stream) ReadByte() (byte, error) {
	if err := s.checkReadable(); err != nil {
		return 0, err
	}
	return s.dec.readByte()
}

// ReadExact reads exactly len(dst) bytes into dst.  It fails with
// ErrUnexpectedDone if the data ends first, or with ErrTruncated if the
// file ends without its EOF marker.  Valid only in read mode.
func (s *Stream) ReadExact(dst []byte) error {
	if err := s.checkReadable(); err != nil {
		return err
	}
	return s.dec.readExact(dst)
}

// Read implements io.Reader: it copies into p at most the unread remainder
// of the current block (so it may return fewer than len(p) bytes even
// when more data follows), and reports io.EOF once the stream is
// exhausted.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.checkReadable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	i, err := s.dec.ensureBufferedData()
	if err != nil {
		return 0, err
	}
	if i == eofSentinel {
		return 0, io.EOF
	}
	blk := s.dec.blocks[i]
	n := blk.remaining()
	if n > len(p) {
		n = len(p)
	}
	copy(p, blk.decompressed[blk.blockOffset():blk.blockOffset()+n])
	blk.advance(n)
	if blk.exhausted() {
		if _, err := s.dec.ensureBufferedData(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// WriteByte writes a single byte.  Valid only in write mode.
func (s *Stream) WriteByte(b byte) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	return s.enc.writeByte(b)
}

// WriteAll writes all of src.  Valid only in write mode.
func (s *Stream) WriteAll(src []byte) (int, error) {
	if err := s.checkWritable(); err != nil {
		return 0, err
	}
	if err := s.enc.writeAll(src); err != nil {
		return 0, err
	}
	return len(src), nil
}

// Write implements io.Writer atop WriteAll.
func (s *Stream) Write(p []byte) (int, error) { return s.WriteAll(p) }

// Eof reports whether a read-mode stream has no more data.  In write
// mode it is always true: there is nothing left to read from a stream
// that was never open for reading.
func (s *Stream) Eof() bool {
	if s.m == modeWrite {
		return true
	}
	if s.m != modeRead {
		return true
	}
	return s.dec.eof()
}

// VirtualOffset returns the stream's current position.
func (s *Stream) VirtualOffset() (VirtualOffset, error) {
	switch s.m {
	case modeRead:
		return s.dec.tell(), nil
	case modeWrite:
		return s.enc.voffset(), nil
	default:
		return 0, ErrStreamClosed
	}
}

// Seek repositions a read-mode stream to v.  Not supported in write mode.
func (s *Stream) Seek(v VirtualOffset) error {
	switch s.m {
	case modeClosed:
		return ErrStreamClosed
	case modeWrite:
		return ErrNotSeekable
	}
	return s.dec.seek(v)
}

// Flush flushes the underlying stream only.  It does not flush a
// partially-filled active write block, since doing so would create an
// undersized block and break seek semantics for downstream readers;
// callers needing a durable checkpoint must Close.
func (s *Stream) Flush() error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if f, ok := s.enc.w.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	if f, ok := s.enc.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close closes the stream exactly once.  In write mode it flushes any
// partial block and appends the EOF marker before releasing resources.
func (s *Stream) Close() error {
	if s.m == modeClosed {
		return ErrStreamClosed
	}
	var err error
	switch s.m {
	case modeRead:
		err = s.dec.close()
	case modeWrite:
		err = s.enc.close()
	}
	s.m = modeClosed
	if s.onClose != nil && s.closer != nil {
		if cerr := s.onClose(s.closer); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		vlog.Error(errors.Wrap(err, "bgzf: close"))
	}
	return err
}

func (s *Stream) checkReadable() error {
	switch s.m {
	case modeClosed:
		return ErrStreamClosed
	case modeWrite:
		return ErrNotReadable
	default:
		return nil
	}
}

func (s *Stream) checkWritable() error {
	switch s.m {
	case modeClosed:
		return ErrStreamClosed
	case modeRead:
		return ErrNotWritable
	default:
		return nil
	}
}
