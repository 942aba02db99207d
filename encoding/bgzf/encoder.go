package bgzf

import (
	"io"

	"github.com/pkg/errors"
	"v.io/x/lib/vlog"
)

// encoder is the write side of a Stream.  Unlike the decoder, write mode
// keeps a single active Block: the 64 KiB block granularity makes
// per-block write parallelism low value and the block-ordering discipline
// it would require more intricate, so encoding is deliberately sequential.
// blockDeflater compresses one block's decompressed payload into a
// complete, framed, on-disk BGZF block.  deflateCodec (klauspost, always
// available) is the default implementation; writer_cgo.go provides a
// zlibng-backed alternative with configurable strategy on cgo builds (its
// memory level is validated but not used).
type blockDeflater interface {
	compressBlock(dst []byte, src []byte) (int, error)
	close() error
}

type encoder struct {
	w       io.Writer
	blk     *Block
	codec   blockDeflater
	coffset int64 // absolute offset in the underlying stream of the next block to be written
}

func newEncoder(w io.Writer, level int, startOffset int64) (*encoder, error) {
	codec, err := newDeflateCodec(level)
	if err != nil {
		return nil, err
	}
	return newEncoderWithCodec(w, codec, startOffset), nil
}

// newEncoderWithCodec builds an encoder that appends to w starting at
// startOffset, the absolute byte position w is currently positioned at
// (0 for a freshly created file, the post-truncation end of file for an
// append-mode reopen).
func newEncoderWithCodec(w io.Writer, codec blockDeflater, startOffset int64) *encoder {
	blk := newBlock()
	blk.size = SafeBlockSize
	return &encoder{w: w, blk: blk, codec: codec, coffset: startOffset}
}

// writeBlock deflates the active block's accumulated payload, backpatches
// BSIZE, writes the framed block to the underlying stream, and resets the
// active block for reuse.
func (e *encoder) writeBlock() error {
	payload := e.blk.decompressed[:e.blk.blockOffset()]
	n, err := e.codec.compressBlock(e.blk.compressed, payload)
	if err != nil {
		return err
	}
	if n > MaxBlockSize {
		return ErrBlockTooLarge
	}
	if _, err := e.w.Write(e.blk.compressed[:n]); err != nil {
		return errors.Wrap(err, "bgzf: writing block")
	}
	e.coffset += int64(n)
	e.blk.reset()
	e.blk.size = SafeBlockSize
	return nil
}

// writeByte writes a single byte to the active block, flushing it once
// full.
func (e *encoder) writeByte(b byte) error {
	e.blk.decompressed[e.blk.blockOffset()] = b
	e.blk.advance(1)
	if e.blk.exhausted() {
		return e.writeBlock()
	}
	return nil
}

// writeAll writes all of src, flushing the active block as many times as
// necessary.
func (e *encoder) writeAll(src []byte) error {
	for len(src) > 0 {
		room := e.blk.remaining()
		n := len(src)
		if n > room {
			n = room
		}
		copy(e.blk.decompressed[e.blk.blockOffset():], src[:n])
		e.blk.advance(n)
		src = src[n:]
		if e.blk.exhausted() {
			if err := e.writeBlock(); err != nil {
				return err
			}
		}
	}
	return nil
}

// voffset returns the virtual offset of the next byte that will be
// written: the file offset the active block will occupy once flushed,
// and how far that block has been filled so far.
func (e *encoder) voffset() VirtualOffset {
	return MakeVirtualOffset(e.coffset, uint16(e.blk.blockOffset()))
}

// closeActive flushes a partial active block, if any, without emitting
// the EOF marker.
func (e *encoder) closeActive() error {
	if e.blk.blockOffset() > 0 {
		return e.writeBlock()
	}
	return nil
}

func (e *encoder) close() error {
	if err := e.closeActive(); err != nil {
		return err
	}
	if _, err := e.w.Write(eofMarker); err != nil {
		return errors.Wrap(err, "bgzf: writing EOF marker")
	}
	vlog.VI(1).Info("bgzf: wrote EOF marker")
	return e.codec.close()
}
