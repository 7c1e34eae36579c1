/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// reader.go: lazily decrypting, chunk addressed reader
package stream

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	ChunkSize int
	// BlockSize is the cipher block the final chunk is padded to; 0 or 1
	// for stream ciphers.
	BlockSize int
	Strategy  Strategy
	// InitialPos is the logical offset of the first byte the source
	// delivers. Non chunk aligned values need a stream cipher.
	InitialPos int64
	Entry      string
	Logger     logrus.FieldLogger
}

// Reader decrypts a chunked ciphertext stream of a known plaintext size.
// A chunk is decrypted the first time a byte inside it is read; the cipher
// for chunk i depends only on i, so Skip and Seek can jump between chunks
// without touching the ones in between.
type Reader struct {
	src      io.Reader
	seeker   io.Seeker
	base     int64 // physical offset of InitialPos in a seekable source
	srcPos   int64 // logical offset the source is positioned at
	initial  int64
	size     int64
	pos      int64
	shift    uint
	mask     int64
	blockLen int

	strategy Strategy
	cipher   *crypto.Cipher
	chunk    []byte
	chunkLen int // plaintext bytes of the loaded chunk, from its start
	valid    bool
	closed   bool

	entry string
	log   logrus.FieldLogger
}

// NewReader returns a Reader over src delivering size plaintext bytes.
func NewReader(src io.Reader, size int64, opts ReaderOptions) (*Reader, error) {
	shift, err := chunkShift(opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	if opts.Strategy == nil {
		return nil, errors.New("stream: nil strategy")
	}
	if size < 0 || opts.InitialPos < 0 || opts.InitialPos > size {
		return nil, errors.Errorf("stream: invalid size %d or initial position %d", size, opts.InitialPos)
	}
	blockLen := opts.BlockSize
	if blockLen < 1 {
		blockLen = 1
	}
	if opts.ChunkSize%blockLen != 0 {
		return nil, errors.Errorf("stream: chunk size %d is not a multiple of block size %d", opts.ChunkSize, blockLen)
	}

	r := &Reader{
		src:      src,
		srcPos:   opts.InitialPos,
		initial:  opts.InitialPos,
		size:     size,
		pos:      opts.InitialPos,
		shift:    shift,
		mask:     int64(opts.ChunkSize - 1),
		blockLen: blockLen,
		strategy: opts.Strategy,
		chunk:    make([]byte, opts.ChunkSize),
		entry:    opts.Entry,
		log:      loggerOrDefault(opts.Logger),
	}
	if s, ok := src.(io.Seeker); ok {
		if off, err := s.Seek(0, io.SeekCurrent); err == nil {
			r.seeker = s
			r.base = off
		}
	}
	return r, nil
}

// Size returns the declared plaintext length.
func (r *Reader) Size() int64 { return r.size }

// Pos returns the current logical offset.
func (r *Reader) Pos() int64 { return r.pos }

// Available returns the number of plaintext bytes left.
func (r *Reader) Available() int64 {
	if r.pos >= r.size {
		return 0
	}
	return r.size - r.pos
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, crypto.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.pos >= r.size {
		return 0, io.EOF
	}

	n := 0
	for len(p) > 0 && r.pos < r.size {
		if !r.valid {
			if err := r.nextChunk(); err != nil {
				return n, err
			}
		}
		off := int(r.pos & r.mask)
		c := copy(p, r.chunk[off:r.chunkLen])
		p = p[c:]
		n += c
		r.pos += int64(c)
		if r.pos&r.mask == 0 {
			r.valid = false
		}
	}
	return n, nil
}

func (r *Reader) nextChunk() error {
	index := r.pos >> r.shift
	block, err := blockIndex(index)
	if err != nil {
		return crypto.NewEncryptionError("read", r.entry, int(index), err)
	}

	chunkStart := index << r.shift
	chunkEnd := chunkStart + int64(len(r.chunk))
	if chunkEnd > r.size {
		chunkEnd = r.size
	}
	loadStart := chunkStart
	if r.initial > chunkStart {
		loadStart = r.initial
	}
	skipIn := int(loadStart - chunkStart)

	c, err := r.strategy.InitCipherForBlock(r.cipher, block, false)
	if err != nil {
		return crypto.NewEncryptionError("read", r.entry, int(index), err)
	}
	r.cipher = c

	// the final chunk carries padding up to the cipher block
	want := crypto.NextBlockSize(int(chunkEnd-chunkStart), r.blockLen) - skipIn
	need := want
	if c.IsStream() {
		need = int(chunkEnd - loadStart)
	}

	if err := r.position(loadStart); err != nil {
		return crypto.NewEncryptionError("read", r.entry, int(index), err)
	}
	buf := r.chunk[skipIn : skipIn+want]
	got, err := io.ReadAtLeast(r.src, buf, need)
	r.srcPos = loadStart + int64(got)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = errors.Wrapf(crypto.ErrTruncated, "have %d of %d bytes", got, need)
		}
		return crypto.NewEncryptionError("read", r.entry, int(index), err)
	}

	if skipIn > 0 {
		if err := c.Discard(skipIn); err != nil {
			return crypto.NewEncryptionError("read", r.entry, int(index), err)
		}
	}
	process := want
	if c.IsStream() {
		process = got
	}
	if _, err := c.Update(buf[:process], buf[:process]); err != nil {
		return crypto.NewEncryptionError("read", r.entry, int(index), err)
	}

	r.chunkLen = int(chunkEnd - chunkStart)
	r.valid = true
	r.log.WithFields(logrus.Fields{
		"entry": r.entry,
		"chunk": index,
		"bytes": got,
	}).Trace("decrypted chunk")
	return nil
}

// position moves the source to logical offset target.
func (r *Reader) position(target int64) error {
	switch {
	case target == r.srcPos:
		return nil
	case r.seeker != nil:
		if _, err := r.seeker.Seek(r.base+target-r.initial, io.SeekStart); err != nil {
			return errors.Wrap(err, "seek source")
		}
		r.srcPos = target
		return nil
	case target > r.srcPos:
		n, err := io.CopyN(io.Discard, r.src, target-r.srcPos)
		r.srcPos += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.Wrapf(crypto.ErrTruncated, "skipping to offset %d", target)
			}
			return err
		}
		return nil
	default:
		return errors.Wrapf(crypto.ErrSeek, "offset %d is behind %d", target, r.srcPos)
	}
}

// Skip advances the position by up to n bytes and returns how far it moved.
// The loaded chunk is kept when the new position is still inside it.
func (r *Reader) Skip(n int64) (int64, error) {
	if r.closed {
		return 0, crypto.ErrClosed
	}
	if n <= 0 {
		return 0, nil
	}
	if remaining := r.Available(); n > remaining {
		n = remaining
	}
	r.moveTo(r.pos + n)
	return n, nil
}

// Seek implements io.Seeker. Offsets past the end are clamped to Size, like
// Skip. Moving behind data already consumed needs a seekable source.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, crypto.ErrClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return 0, errors.Errorf("stream: invalid whence %d", whence)
	}
	if abs < r.initial {
		return 0, errors.Wrapf(crypto.ErrSeek, "offset %d is before the stream start %d", abs, r.initial)
	}
	if abs > r.size {
		abs = r.size
	}
	if r.seeker == nil && abs < r.size {
		loadStart := (abs >> r.shift) << r.shift
		if loadStart < r.initial {
			loadStart = r.initial
		}
		sameChunk := r.valid && (abs^r.pos)&^r.mask == 0
		if !sameChunk && loadStart < r.srcPos {
			return 0, errors.Wrapf(crypto.ErrSeek, "offset %d", abs)
		}
	}
	r.moveTo(abs)
	return abs, nil
}

func (r *Reader) moveTo(abs int64) {
	if (r.pos^abs)&^r.mask != 0 {
		r.valid = false
	}
	r.pos = abs
}

// MarkSupported always returns false.
func (r *Reader) MarkSupported() bool { return false }

// Reset always fails: decrypted chunks are not retained.
func (r *Reader) Reset() error { return crypto.ErrMarkNotSupported }

// Close wipes the chunk buffer and closes the source if it is an io.Closer.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.valid = false
	secure.Zero(r.chunk)
	if r.cipher != nil {
		r.cipher.Destroy()
	}
	destroyStrategy(r.strategy)
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
