// +build cgo

package bgzf

import (
	"github.com/pkg/errors"
	"github.com/yasushi-saito/zlibng"
)

// zlibngCodec is a blockDeflater backed by zlibng, giving access to gzip
// strategy and memory-level configuration that klauspost/compress/flate
// does not expose.  It lets zlibng emit the complete gzip member (header,
// deflate stream, and CRC32/ISIZE trailer) and only backpatches BSIZE
// afterward.
type zlibngCodec struct {
	level, strategy int
	buf             boundedWriter
}

// memLevel is validated but not forwarded to zlibng.Opts: zlibng exposes
// no separate memory-level knob to bind it to.
func newParamCodec(level, strategy, memLevel int) (blockDeflater, error) {
	if memLevel < 0 || memLevel > 9 {
		return nil, errors.Errorf("bgzf: memLevel %d out of range [0,9]", memLevel)
	}
	return &zlibngCodec{level: level, strategy: strategy}, nil
}

func (c *zlibngCodec) compressBlock(dst []byte, src []byte) (int, error) {
	c.buf = boundedWriter{buf: dst}
	w, err := zlibng.NewWriter(&c.buf, zlibng.Opts{Level: c.level, Strategy: c.strategy})
	if err != nil {
		return 0, errors.Wrap(err, "bgzf: creating zlibng writer")
	}
	header := zlibng.GzipHeader{Extra: append([]byte(nil), bgzfExtra[:]...)}
	header.OS = 0xff // unknown OS value, matching the BGZF convention
	if err := w.SetHeader(header); err != nil {
		w.Close() // nolint: errcheck
		return 0, errors.Wrap(err, "bgzf: setting zlibng header")
	}

	if _, err := w.Write(src); err != nil {
		return 0, errors.Wrap(err, "bgzf: zlibng deflate")
	}
	if err := w.Close(); err != nil {
		return 0, errors.Wrap(err, "bgzf: zlibng deflate: close")
	}

	n := c.buf.n
	if n > MaxBlockSize {
		return 0, ErrBlockTooLarge
	}
	if err := backpatchBSIZE(dst[:n], n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *zlibngCodec) close() error { return nil }
