package bgzf

// Block owns one pair of buffers (the on-disk compressed bytes and the
// decompressed payload) plus a virtual offset naming the position within
// the block that has been consumed (read mode) or filled (write mode).
// Blocks are allocated once at Stream construction and reused for the
// life of the stream; reset prepares a Block for another round without
// reallocating its buffers or its codec context.
type Block struct {
	compressed   []byte // on-disk bytes, capacity MaxBlockSize
	decompressed []byte // decompressed payload, capacity MaxBlockSize

	// size is, in read mode, the length of valid decompressed data
	// (always < MaxBlockSize); in write mode, the logical capacity
	// SafeBlockSize.
	size int

	offset VirtualOffset

	// err is set by a failed inflate so the fork-join worker can
	// report it back to the block's owner without a channel per block.
	err error
}

func newBlock() *Block {
	return &Block{
		compressed:   make([]byte, MaxBlockSize),
		decompressed: make([]byte, MaxBlockSize),
	}
}

// reset prepares b to be refilled.  It does not touch the underlying
// arrays, only the bookkeeping fields, so the codec context attached
// externally (see readBlocks/writeBlock) can be reused across calls.
func (b *Block) reset() {
	b.size = 0
	b.offset = 0
	b.err = nil
}

// blockOffset returns the number of bytes already consumed (read mode) or
// written (write mode) within the block.
func (b *Block) blockOffset() int { return int(b.offset.BlockOffset()) }

// remaining returns the number of unconsumed (read mode) or unfilled
// (write mode) bytes in the block.
func (b *Block) remaining() int { return b.size - b.blockOffset() }

// exhausted reports whether every byte of the block has been consumed.
func (b *Block) exhausted() bool { return b.blockOffset() >= b.size }

// advance moves b's virtual offset forward by n bytes within the block.
// The caller must guarantee n does not carry past b.size.
func (b *Block) advance(n int) { b.offset = b.offset.Add(n) }
