package bgzf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaderEOFMarker(t *testing.T) {
	h, err := parseHeader(eofMarker)
	require.NoError(t, err)
	assert.Equal(t, 28, h.blockSize)
	assert.True(t, isEOFBlock(eofMarker))
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	buf := append([]byte(nil), eofMarker...)
	buf[0] = 0x00
	_, err := parseHeader(buf)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestParseHeaderRejectsBadCompressionMethod(t *testing.T) {
	buf := append([]byte(nil), eofMarker...)
	buf[2] = 0x09
	_, err := parseHeader(buf)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestParseHeaderRejectsMissingFExtra(t *testing.T) {
	buf := append([]byte(nil), eofMarker...)
	buf[3] = 0x00
	_, err := parseHeader(buf)
	assert.ErrorIs(t, err, ErrBadFlag)
}

func TestParseHeaderRejectsMissingBSIZE(t *testing.T) {
	buf := append([]byte(nil), eofMarker...)
	buf[12] = 0x00 // corrupt SI1 of the BC subfield
	_, err := parseHeader(buf)
	assert.ErrorIs(t, err, ErrMissingBSIZE)
}

func TestIsEOFBlockComparesOnDiskBytes(t *testing.T) {
	// isEOFBlock must reject anything that isn't byte-for-byte the
	// canonical marker, even a block with the right length whose payload
	// (once inflated) would also be empty.
	mutated := append([]byte(nil), eofMarker...)
	mutated[8] = 0x01 // perturb XFL, leave the rest (and the decompressed payload) identical
	assert.False(t, isEOFBlock(mutated))
	assert.False(t, isEOFBlock(eofMarker[:len(eofMarker)-1]))
}
