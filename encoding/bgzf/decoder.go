package bgzf

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync"

	"github.com/pkg/errors"
	"v.io/x/lib/vlog"
)

// eofSentinel is the block index ensureBufferedData returns when the
// underlying stream is exhausted (the EOF marker has been consumed).
const eofSentinel = -1

// decoder is the read side of a Stream: it owns a pool of Blocks, fills
// them from the underlying stream in order, inflates them in parallel, and
// exposes them for in-order consumption by Stream's byte reader.
type decoder struct {
	r io.ReadSeeker

	blocks     []*Block
	codecs     []*inflateCodec
	blockIndex int // index of the block currently being consumed
	filled     int // number of blocks[0:filled] holding valid data this round

	sawEOFMarker bool
	atEOF        bool // underlying stream (and, once sawEOFMarker, stream semantics) exhausted
}

func newDecoder(r io.ReadSeeker, workers int) *decoder {
	if workers < 1 {
		workers = 1
	}
	d := &decoder{
		r:      r,
		blocks: make([]*Block, workers),
		codecs: make([]*inflateCodec, workers),
	}
	for i := range d.blocks {
		d.blocks[i] = newBlock()
		d.codecs[i] = newInflateCodec()
	}
	return d
}

// readBlocks reads up to len(blocks) framed compressed blocks sequentially
// from the underlying stream (preserving on-disk order), then inflates all
// of them concurrently, and resets blockIndex to 0.  It returns with
// d.filled == 0 only if the underlying stream was already at EOF when
// called.
func (d *decoder) readBlocks() error {
	var headerBuf [12]byte
	hdrs := make([]header, 0, len(d.blocks))

	n := 0
	for n < len(d.blocks) {
		fileOfs, err := d.r.Seek(0, io.SeekCurrent)
		if err != nil {
			return errors.Wrap(err, "bgzf: tell")
		}

		_, err = io.ReadFull(d.r, headerBuf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				return ErrTruncated
			}
			return errors.Wrap(err, "bgzf: reading block header")
		}

		blk := d.blocks[n]
		copy(blk.compressed, headerBuf[:])

		xlen := int(headerBuf[10]) | int(headerBuf[11])<<8
		if 12+xlen > MaxBlockSize {
			return errors.Wrap(ErrBadSubfield, "extra field exceeds MaxBlockSize")
		}
		if _, err := io.ReadFull(d.r, blk.compressed[12:12+xlen]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return ErrTruncated
			}
			return errors.Wrap(err, "bgzf: reading extra field")
		}

		hdr, err := parseHeader(blk.compressed[:12+xlen])
		if err != nil {
			return err
		}
		if hdr.blockSize > MaxBlockSize {
			return errors.Wrap(ErrBadSubfield, "block size exceeds MaxBlockSize")
		}
		if _, err := io.ReadFull(d.r, blk.compressed[12+xlen:hdr.blockSize]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return ErrTruncated
			}
			return errors.Wrap(err, "bgzf: reading block body")
		}

		last := isEOFBlock(blk.compressed[:hdr.blockSize])
		blk.reset()
		blk.offset = MakeVirtualOffset(fileOfs, 0)
		hdrs = append(hdrs, hdr)
		n++

		if last {
			d.sawEOFMarker = true
			break
		}
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			blk := d.blocks[i]
			h := hdrs[i]
			start := 12 + int(h.xlen)
			end := h.blockSize - 8
			if isEOFBlock(blk.compressed[:h.blockSize]) {
				blk.size = 0
				return
			}
			written, err := d.codecs[i].inflate(blk.decompressed, blk.compressed[start:end])
			if err != nil {
				blk.err = err
				return
			}
			if written >= MaxBlockSize {
				blk.err = errors.New("bgzf: decompressed block exceeds MaxBlockSize")
				return
			}
			trailer := blk.compressed[end:h.blockSize]
			wantCRC := binary.LittleEndian.Uint32(trailer[0:4])
			wantISIZE := binary.LittleEndian.Uint32(trailer[4:8])
			if payload := blk.decompressed[:written]; crc32.ChecksumIEEE(payload) != wantCRC || uint32(written) != wantISIZE {
				blk.err = errors.Wrap(ErrCodecFailure, "CRC32/ISIZE mismatch")
				return
			}
			blk.size = written
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if d.blocks[i].err != nil {
			return d.blocks[i].err
		}
	}

	d.filled = n
	d.blockIndex = 0
	if n == 0 {
		d.atEOF = true
		if !d.sawEOFMarker {
			return ErrTruncated
		}
	}
	return nil
}

// ensureBufferedData advances blockIndex past fully-consumed blocks,
// refilling via readBlocks when the whole pool is drained, and returns the
// index of a block with an unread byte, or eofSentinel once the stream is
// genuinely exhausted.
func (d *decoder) ensureBufferedData() (int, error) {
	for {
		for d.blockIndex < d.filled && d.blocks[d.blockIndex].exhausted() {
			d.blockIndex++
		}
		if d.blockIndex < d.filled {
			return d.blockIndex, nil
		}
		if d.atEOF {
			return eofSentinel, nil
		}
		if err := d.readBlocks(); err != nil {
			return eofSentinel, err
		}
	}
}

// seek repositions the underlying stream to v's file offset, refills the
// pool from there, and validates v's block offset against the freshly-read
// first block.
func (d *decoder) seek(v VirtualOffset) error {
	if _, err := d.r.Seek(v.FileOffset(), io.SeekStart); err != nil {
		return errors.Wrap(err, "bgzf: seek")
	}
	d.atEOF = false
	d.sawEOFMarker = false
	if err := d.readBlocks(); err != nil {
		return err
	}
	if d.filled == 0 {
		if v.BlockOffset() != 0 {
			return ErrInvalidBlockOffset
		}
	} else if int(v.BlockOffset()) >= d.blocks[0].size && !(v.BlockOffset() == 0 && d.blocks[0].size == 0) {
		return ErrInvalidBlockOffset
	} else {
		d.blocks[0].offset = v
	}
	d.blockIndex = 0
	return nil
}

func (d *decoder) close() error {
	var first error
	for _, c := range d.codecs {
		if err := c.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (d *decoder) tell() VirtualOffset {
	if d.blockIndex < d.filled {
		return d.blocks[d.blockIndex].offset
	}
	if d.filled > 0 {
		last := d.blocks[d.filled-1]
		return MakeVirtualOffset(last.offset.FileOffset(), uint16(last.size))
	}
	return 0
}

// readByte reads and returns the next decompressed byte.
func (d *decoder) readByte() (byte, error) {
	i, err := d.ensureBufferedData()
	if err != nil {
		return 0, err
	}
	if i == eofSentinel {
		return 0, io.EOF
	}
	blk := d.blocks[i]
	b := blk.decompressed[blk.blockOffset()]
	blk.advance(1)
	if blk.exhausted() {
		if _, err := d.ensureBufferedData(); err != nil {
			return b, err
		}
	}
	return b, nil
}

// readExact fills dst completely or fails with ErrUnexpectedDone (or with
// the error of a failed refill, such as ErrTruncated).
func (d *decoder) readExact(dst []byte) error {
	n := 0
	for n < len(dst) {
		i, err := d.ensureBufferedData()
		if err != nil {
			return err
		}
		if i == eofSentinel {
			vlog.Error("bgzf: unexpected EOF mid read_exact")
			return ErrUnexpectedDone
		}
		blk := d.blocks[i]
		m := blk.remaining()
		if want := len(dst) - n; m > want {
			m = want
		}
		copy(dst[n:], blk.decompressed[blk.blockOffset():blk.blockOffset()+m])
		blk.advance(m)
		n += m
		if blk.exhausted() {
			if _, err := d.ensureBufferedData(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) eof() bool {
	i, err := d.ensureBufferedData()
	return err != nil || i == eofSentinel
}
