package bgzf

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAll(t *testing.T, buf *bytes.Buffer, data []byte) {
	t.Helper()
	w, err := OpenWrite(buf, Options{})
	require.NoError(t, err)
	n, err := w.WriteAll(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, w.Close())
}

func TestEmptyFile(t *testing.T) {
	var buf bytes.Buffer
	writeAll(t, &buf, nil)
	assert.Equal(t, eofMarker, buf.Bytes())

	r, err := OpenRead(bytes.NewReader(buf.Bytes()), Options{})
	require.NoError(t, err)
	assert.True(t, r.Eof())
	_, err = r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSmallPayloadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writeAll(t, &buf, []byte{0x41, 0x42, 0x43})

	r, err := OpenRead(bytes.NewReader(buf.Bytes()), Options{})
	require.NoError(t, err)
	got := make([]byte, 3)
	require.NoError(t, r.ReadExact(got))
	assert.Equal(t, []byte{0x41, 0x42, 0x43}, got)
	_, err = r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func patternBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestCrossBlockPayload(t *testing.T) {
	data := patternBytes(SafeBlockSize + 5)
	var buf bytes.Buffer
	writeAll(t, &buf, data)

	// Exactly two data blocks plus the EOF marker.
	n, parsedBlocks := 0, 0
	raw := buf.Bytes()
	for n < len(raw) {
		h, err := parseHeader(raw[n:])
		require.NoError(t, err)
		n += h.blockSize
		parsedBlocks++
	}
	assert.Equal(t, 3, parsedBlocks)
	assert.Equal(t, len(raw), n)

	r, err := OpenRead(bytes.NewReader(raw), Options{})
	require.NoError(t, err)
	got := make([]byte, len(data))
	require.NoError(t, r.ReadExact(got))
	assert.Equal(t, data, got)
}

func TestSeekRoundTrip(t *testing.T) {
	data := patternBytes(200000)
	var buf bytes.Buffer

	w, err := OpenWrite(&buf, Options{})
	require.NoError(t, err)
	var marks []VirtualOffset
	for i := 0; i < len(data); i += 10000 {
		v, err := w.VirtualOffset()
		require.NoError(t, err)
		marks = append(marks, v)
		end := i + 10000
		if end > len(data) {
			end = len(data)
		}
		_, err = w.WriteAll(data[i:end])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	for i, v := range marks {
		r, err := OpenRead(bytes.NewReader(buf.Bytes()), Options{})
		require.NoError(t, err)
		require.NoError(t, r.Seek(v))
		got := make([]byte, 100)
		require.NoError(t, r.ReadExact(got))
		assert.Equal(t, data[i*10000:i*10000+100], got, "mark %d", i)
	}
}

func TestFramingRejection(t *testing.T) {
	var buf bytes.Buffer
	writeAll(t, &buf, patternBytes(100))
	raw := append([]byte(nil), buf.Bytes()...)

	mutate := func(mutateFn func([]byte)) []byte {
		corrupt := append([]byte(nil), raw...)
		mutateFn(corrupt)
		return corrupt
	}

	cases := [][]byte{
		mutate(func(b []byte) { b[0] = 0x00 }),   // ID1
		mutate(func(b []byte) { b[1] = 0x00 }),   // ID2
		mutate(func(b []byte) { b[2] = 0x00 }),   // CM
		mutate(func(b []byte) { b[3] &^= 0x04 }), // FLG FEXTRA
		mutate(func(b []byte) { b[12] = 0x00 }),  // BC subfield SI1
	}
	for i, corrupt := range cases {
		_, err := OpenRead(bytes.NewReader(corrupt), Options{})
		assert.Error(t, err, "case %d", i)
	}
}

func TestTruncationDetection(t *testing.T) {
	var buf bytes.Buffer
	writeAll(t, &buf, patternBytes(100000))
	truncated := buf.Bytes()[:buf.Len()-len(eofMarker)]

	r, err := OpenRead(bytes.NewReader(truncated), Options{})
	require.NoError(t, err)
	got := make([]byte, 100000)
	err = r.ReadExact(got)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParallelDecodeCorrectness(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	data := make([]byte, 4*SafeBlockSize)
	_, err := rnd.Read(data)
	require.NoError(t, err)

	var buf bytes.Buffer
	writeAll(t, &buf, data)

	for _, p := range []int{1, 2, 4, 8} {
		r, err := OpenRead(bytes.NewReader(buf.Bytes()), Options{Workers: p})
		require.NoError(t, err, "workers=%d", p)
		got := make([]byte, len(data))
		require.NoError(t, r.ReadExact(got), "workers=%d", p)
		assert.Equal(t, data, got, "workers=%d", p)
	}
}

func TestStreamStateMachine(t *testing.T) {
	var buf bytes.Buffer
	w, err := OpenWrite(&buf, Options{})
	require.NoError(t, err)

	_, err = w.ReadByte()
	assert.ErrorIs(t, err, ErrNotReadable)
	assert.ErrorIs(t, w.Seek(0), ErrNotSeekable)

	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), ErrStreamClosed)
	assert.False(t, w.IsOpen())

	r, err := OpenRead(bytes.NewReader(buf.Bytes()), Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, r.WriteByte(0), ErrNotWritable)
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Close(), ErrStreamClosed)
}

func TestAppendVOffsetIsAbsolute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bgzf")

	w, err := Open(path, "w", Options{})
	require.NoError(t, err)
	_, err = w.WriteAll(patternBytes(SafeBlockSize))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	sizeBeforeAppend := info.Size()

	a, err := Open(path, "a", Options{})
	require.NoError(t, err)
	v, err := a.VirtualOffset()
	require.NoError(t, err)
	// The append point is the single existing data block's on-disk size
	// (the EOF marker that followed it was stripped), not 0.
	assert.Equal(t, sizeBeforeAppend-int64(len(eofMarker)), v.FileOffset())
	assert.Equal(t, uint16(0), v.BlockOffset())

	_, err = a.WriteAll(patternBytes(5))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	r, err := Open(path, "r", Options{})
	require.NoError(t, err)
	got := make([]byte, SafeBlockSize+5)
	require.NoError(t, r.ReadExact(got))
	want := append(patternBytes(SafeBlockSize), patternBytes(5)...)
	assert.Equal(t, want, got)
}

func TestVOffsetTracksBlockCompletion(t *testing.T) {
	var buf bytes.Buffer
	w, err := OpenWrite(&buf, Options{})
	require.NoError(t, err)

	_, err = w.WriteAll(patternBytes(4))
	require.NoError(t, err)
	v1, err := w.VirtualOffset()
	require.NoError(t, err)
	assert.Equal(t, int64(0), v1.FileOffset())
	assert.Equal(t, uint16(4), v1.BlockOffset())
	require.NoError(t, w.Close())
}
