package bgzf

import (
	"bytes"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// inflateCodec decompresses the raw DEFLATE stream of one BGZF block at a
// time.  It is reusable: inflate rebinds it to a new source without
// reallocating the underlying flate state, so it can be initialized once
// and reset per block.
//
// Only klauspost/compress/flate's input/output buffer contract is used
// here -- the BGZF header is parsed by header.go and the CRC32/ISIZE
// trailer is checked by decoder.readBlocks, not by this codec.
type inflateCodec struct {
	src bytes.Reader
	fr  io.ReadCloser
}

func newInflateCodec() *inflateCodec {
	c := &inflateCodec{}
	c.fr = flate.NewReader(&c.src)
	return c
}

// inflate decompresses the deflate-stream bytes in src into dst, returning
// the number of bytes written.  dst must be large enough to hold the
// entire payload; BGZF guarantees payloads are always < MaxBlockSize.
func (c *inflateCodec) inflate(dst []byte, src []byte) (int, error) {
	c.src.Reset(src)
	if r, ok := c.fr.(flate.Resetter); ok {
		if err := r.Reset(&c.src, nil); err != nil {
			return 0, errors.Wrap(err, "bgzf: resetting inflate codec")
		}
	} else {
		c.fr = flate.NewReader(&c.src)
	}

	n := 0
	for n < len(dst) {
		m, err := c.fr.Read(dst[n:])
		n += m
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, errors.Wrap(err, "bgzf: inflate")
		}
		if m == 0 {
			return n, ErrCodecFailure
		}
	}
	// dst was exactly filled; confirm the stream actually ends here.
	var probe [1]byte
	if m, err := c.fr.Read(probe[:]); m > 0 || err != io.EOF {
		return n, errors.New("bgzf: inflate: payload exceeds block capacity")
	}
	return n, nil
}

func (c *inflateCodec) close() error { return c.fr.Close() }

// boundedWriter writes into a fixed-capacity byte slice and reports
// io.ErrShortWrite once that capacity would be exceeded, so a deflate
// codec writing through it surfaces a block-too-large condition instead
// of silently growing.
type boundedWriter struct {
	buf []byte
	n   int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	room := len(w.buf) - w.n
	if len(p) > room {
		copy(w.buf[w.n:], p[:room])
		w.n += room
		return room, io.ErrShortWrite
	}
	copy(w.buf[w.n:], p)
	w.n += len(p)
	return len(p), nil
}

// deflateCodec compresses a block's decompressed payload into a complete,
// framed on-disk BGZF block: the 18 byte prologue (with BSIZE
// backpatched), the raw DEFLATE stream, and the 8 byte CRC32/ISIZE
// trailer.  Like inflateCodec it is reusable across blocks via reset.
type deflateCodec struct {
	level int
	dst   boundedWriter
	fw    *flate.Writer
}

func newDeflateCodec(level int) (*deflateCodec, error) {
	c := &deflateCodec{level: level}
	fw, err := flate.NewWriter(&c.dst, level)
	if err != nil {
		return nil, errors.Wrap(err, "bgzf: creating deflate codec")
	}
	c.fw = fw
	return c, nil
}

// compressBlock encodes src as one complete on-disk BGZF block, writing
// the result into dst (which must have capacity >= MaxBlockSize) and
// returning the number of bytes written.  If the compressed output (with
// framing) would not fit in MaxBlockSize bytes, it returns
// ErrBlockTooLarge -- this should be unreachable for any src of length
// <= SafeBlockSize with default compression settings.
func (c *deflateCodec) compressBlock(dst []byte, src []byte) (int, error) {
	writePrologue(dst)
	c.dst = boundedWriter{buf: dst[18 : MaxBlockSize-8]}
	c.fw.Reset(&c.dst)

	if _, err := c.fw.Write(src); err != nil {
		if err == io.ErrShortWrite {
			return 0, ErrBlockTooLarge
		}
		return 0, errors.Wrap(err, "bgzf: deflate")
	}
	if err := c.fw.Close(); err != nil {
		if err == io.ErrShortWrite {
			return 0, ErrBlockTooLarge
		}
		return 0, errors.Wrap(err, "bgzf: deflate: close")
	}

	blockSize := 18 + c.dst.n + 8
	if err := backpatchBSIZE(dst, blockSize); err != nil {
		return 0, err
	}

	crc := crc32.ChecksumIEEE(src)
	trailer := dst[18+c.dst.n : blockSize]
	putUint32LE(trailer[0:4], crc)
	putUint32LE(trailer[4:8], uint32(len(src)))

	return blockSize, nil
}

func (c *deflateCodec) close() error { return nil }

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
