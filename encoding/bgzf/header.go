package bgzf

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// header describes a parsed BGZF block header.  blockSize is the total
// on-disk size of the block (header through trailer, inclusive); deflate
// is the number of bytes, starting immediately after the extra field, that
// make up the raw DEFLATE stream (i.e. blockSize minus the 12 byte prefix,
// minus xlen, minus the 8 byte trailer).
type header struct {
	xlen      uint16
	blockSize int
	deflate   int
}

// parseHeader reads and validates the 12 byte fixed prefix and the extra
// field of a BGZF block from buf, which must contain at least 12 bytes.
// It returns the parsed header or a framing error.
func parseHeader(buf []byte) (header, error) {
	if len(buf) < 12 {
		return header{}, errors.Wrap(ErrBadMagic, "short header")
	}
	if buf[0] != 0x1f || buf[1] != 0x8b || buf[2] != 0x08 {
		return header{}, ErrBadMagic
	}
	if buf[3]&0x04 == 0 {
		return header{}, ErrBadFlag
	}
	xlen := binary.LittleEndian.Uint16(buf[10:12])
	if len(buf) < 12+int(xlen) {
		return header{}, errors.Wrap(ErrBadSubfield, "extra field truncated")
	}

	extra := buf[12 : 12+int(xlen)]
	bsize, err := findBSIZE(extra)
	if err != nil {
		return header{}, err
	}
	blockSize := int(bsize) + 1
	return header{
		xlen:      xlen,
		blockSize: blockSize,
		deflate:   blockSize - 12 - int(xlen) - 8,
	}, nil
}

// findBSIZE walks the subfields of a gzip extra field looking for the BGZF
// marker subfield (SI1=0x42, SI2=0x43, SLEN=2) and returns its BSIZE
// payload.  Other subfields are skipped.  A BSIZE of zero, or no BGZF
// subfield at all, is a framing error.
func findBSIZE(extra []byte) (uint16, error) {
	for i := 0; i+4 <= len(extra); {
		slen := int(binary.LittleEndian.Uint16(extra[i+2 : i+4]))
		if i+4+slen > len(extra) {
			return 0, errors.Wrap(ErrBadSubfield, "subfield length overruns extra field")
		}
		if extra[i] == 0x42 && extra[i+1] == 0x43 && slen == 2 {
			bsize := binary.LittleEndian.Uint16(extra[i+4 : i+6])
			if bsize == 0 {
				return 0, ErrMissingBSIZE
			}
			return bsize, nil
		}
		i += 4 + slen
	}
	return 0, ErrMissingBSIZE
}

// isEOFBlock reports whether buf, the as-read compressed bytes of a block,
// is byte-for-byte the canonical EOF marker.  This must be checked against
// the on-disk bytes, never the decompressed payload: an empty decompressed
// payload can also be produced by other, non-terminal blocks.
func isEOFBlock(buf []byte) bool {
	if len(buf) != len(eofMarker) {
		return false
	}
	for i, b := range eofMarker {
		if buf[i] != b {
			return false
		}
	}
	return true
}

// writePrologue writes the fixed 18 byte prologue (reserving space for
// BSIZE) to dst, which must have length >= 18.
func writePrologue(dst []byte) {
	copy(dst, prologue[:])
}

// backpatchBSIZE writes BSIZE = blockSize-1 into the reserved prologue
// field of buf (the first 18 bytes of a just-emitted block).
func backpatchBSIZE(buf []byte, blockSize int) error {
	bsize := blockSize - 1
	if bsize < 0 || bsize > 0xffff {
		return ErrBlockTooLarge
	}
	if len(buf) < 18 {
		return errors.New("bgzf: buffer too short to hold prologue")
	}
	binary.LittleEndian.PutUint16(buf[16:18], uint16(bsize))
	return nil
}
