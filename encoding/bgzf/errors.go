package bgzf

import "github.com/pkg/errors"

// Usage errors: caller-contract violations.  These never depend on the
// content of a file; they indicate the Stream was used the wrong way.
var (
	ErrStreamClosed       = errors.New("bgzf: stream is closed")
	ErrNotReadable        = errors.New("bgzf: stream is not open for reading")
	ErrNotWritable        = errors.New("bgzf: stream is not open for writing")
	ErrNotSeekable        = errors.New("bgzf: stream does not support seeking")
	ErrInvalidBlockOffset = errors.New("bgzf: virtual offset's block offset is out of range for the addressed block")
)

// Data errors: the underlying bytes are not well-formed BGZF.  These are
// never recovered from internally; once surfaced, the Stream that produced
// them is no longer usable for further reads.
var (
	ErrBadMagic       = errors.New("bgzf: framing error: bad gzip magic or compression method")
	ErrBadFlag        = errors.New("bgzf: framing error: FEXTRA flag not set")
	ErrBadSubfield    = errors.New("bgzf: framing error: malformed extra subfield")
	ErrMissingBSIZE   = errors.New("bgzf: framing error: no BGZF BSIZE subfield present")
	ErrTruncated      = errors.New("bgzf: truncated file: missing EOF marker")
	ErrBlockTooLarge  = errors.New("bgzf: block-too-large: deflate output did not fit in one block")
	ErrCodecFailure   = errors.New("bgzf: codec failure")
	ErrUnexpectedDone = errors.New("bgzf: unexpected end of file")
)
