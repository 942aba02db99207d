// Package bgzf reads and writes the .bgzf (block gzipped) file format.  A
// .bgzf file consists of one or more complete gzip blocks concatenated
// together.  Each gzip block represents at most 64KB of uncompressed data
// and is itself at most 64KB on disk.  The payload of a .bgzf file is equal
// to the concatenation, in order, of the uncompressed content of each
// block.  A valid .bgzf file ends with a 28 byte terminator block that is a
// legal gzip block containing an empty payload.
//
// The format is used by .bam files and by Illumina .bcl.bgzf files.  For
// details see the SAM/BAM spec: https://samtools.github.io/hts-specs/SAMv1.pdf
package bgzf

// MaxBlockSize is the largest legal size, on disk, of a BGZF block.
const MaxBlockSize = 0x10000

// SafeBlockSize is the largest number of uncompressed bytes a write-mode
// Stream will pack into a single block.  The 256 byte margin below MaxBlockSize
// guarantees that deflate output, even for incompressible input, fits
// inside a single block.
const SafeBlockSize = MaxBlockSize - 256

// bgzfExtra is the gzip Extra subfield every block carries: subfield id
// 'B','C', subfield length 2, followed by the 2-byte BSIZE placeholder.
var bgzfExtra = [6]byte{0x42, 0x43, 0x02, 0x00, 0x00, 0x00}

// bgzfExtraPrefix is bgzfExtra without the BSIZE payload.
var bgzfExtraPrefix = bgzfExtra[:4]

// prologue is the fixed 18 bytes a write-mode Stream emits before deflate output:
// the 10 byte gzip header, XLEN=6, and the BC subfield header.  BSIZE (the
// last two bytes) is backpatched once the block's size is known.
var prologue = [18]byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff,
	0x06, 0x00, 0x42, 0x43, 0x02, 0x00, 0x00, 0x00,
}

// eofMarker is the canonical empty BGZF block.  Every file written by a
// write-mode Stream ends with these exact 28 bytes; every file read to completion must
// end with them or the read fails with ErrTruncated.
var eofMarker = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff,
	0x06, 0x00, 0x42, 0x43, 0x02, 0x00, 0x1b, 0x00, 0x03, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// VirtualOffset is an opaque locator: the absolute file offset of a BGZF
// block's first byte packed into the upper 48 bits, and a byte index into
// that block's decompressed payload packed into the lower 16 bits.
type VirtualOffset uint64

// MakeVirtualOffset packs fileOffset and blockOffset into a VirtualOffset.
// blockOffset's uint16 type already guarantees it stays below MaxBlockSize.
func MakeVirtualOffset(fileOffset int64, blockOffset uint16) VirtualOffset {
	return VirtualOffset(uint64(fileOffset)<<16 | uint64(blockOffset))
}

// FileOffset returns the absolute offset, in the underlying stream, of the
// BGZF block v addresses.
func (v VirtualOffset) FileOffset() int64 { return int64(v >> 16) }

// BlockOffset returns the byte index, within the addressed block's
// decompressed payload, that v addresses.
func (v VirtualOffset) BlockOffset() uint16 { return uint16(v & 0xffff) }

// Add returns v advanced by n bytes within its current block.  The caller
// must guarantee the result does not cross a block boundary
// (BlockOffset()+n < MaxBlockSize); Add does not itself carry into
// FileOffset.
func (v VirtualOffset) Add(n int) VirtualOffset {
	return v + VirtualOffset(n)
}

// Less reports whether v orders before w under the canonical
// (FileOffset, BlockOffset) total order, which coincides with plain
// unsigned comparison of the packed value.
func (v VirtualOffset) Less(w VirtualOffset) bool { return v < w }
