/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// writer.go: chunked encrypting writer
package stream

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// streamingBuffer is the buffer size used when ChunkSize is Streaming.
const streamingBuffer = 4096

// maxPadding is the largest block a final transform may append.
const maxPadding = 16

// WriterOptions configures a Writer.
type WriterOptions struct {
	// ChunkSize is a power of two, or Streaming.
	ChunkSize int
	Strategy  Strategy
	// TempDir holds the ciphertext of directory-backed writers until
	// Close. Empty means os.TempDir.
	TempDir string
	// Finish stages the companion entries once the package entry and its
	// checksum are written. They are published together with the package.
	Finish func() ([]container.EntryWriter, error)
	Logger logrus.FieldLogger
}

// Writer encrypts everything written to it chunk by chunk. Directory-backed
// writers stage the ciphertext in a temporary file and, on Close, publish
// it as the EncryptedPackage entry prefixed by the plaintext length.
type Writer struct {
	out   io.Writer
	sink  io.Writer // raw destination, closed on Close
	tmp   *os.File
	dir   container.Directory
	entry string

	strategy  Strategy
	streaming bool
	finish    func() ([]container.EntryWriter, error)

	cipher *crypto.Cipher
	chunk  []byte
	ct     []byte
	fill   int
	index  int64
	total  int64
	closed bool
	err    error

	log logrus.FieldLogger
}

func newWriter(opts WriterOptions) (*Writer, error) {
	if opts.Strategy == nil {
		return nil, errors.New("stream: nil strategy")
	}
	size := opts.ChunkSize
	streaming := size == Streaming
	if streaming {
		size = streamingBuffer
	} else if _, err := chunkShift(size); err != nil {
		return nil, err
	}
	return &Writer{
		strategy:  opts.Strategy,
		streaming: streaming,
		finish:    opts.Finish,
		chunk:     make([]byte, size),
		ct:        make([]byte, size+maxPadding),
		log:       loggerOrDefault(opts.Logger),
	}, nil
}

// NewWriter encrypts straight into dst without a length prefix. dst is
// closed on Close when it implements io.Closer.
func NewWriter(dst io.Writer, opts WriterOptions) (*Writer, error) {
	w, err := newWriter(opts)
	if err != nil {
		return nil, err
	}
	w.out = dst
	w.sink = dst
	return w, nil
}

// NewDirectoryWriter encrypts into the named entry of dir.
func NewDirectoryWriter(dir container.Directory, entry string, opts WriterOptions) (*Writer, error) {
	w, err := newWriter(opts)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(opts.TempDir, "officecrypt-*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "create temporary file")
	}
	w.tmp = tmp
	w.out = tmp
	w.dir = dir
	w.entry = entry
	return w, nil
}

// Size returns the number of plaintext bytes written so far.
func (w *Writer) Size() int64 { return w.total }

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, crypto.ErrClosed
	}
	if w.err != nil {
		return 0, w.err
	}
	n := 0
	for len(p) > 0 {
		c := copy(w.chunk[w.fill:], p)
		w.fill += c
		w.total += int64(c)
		n += c
		p = p[c:]
		if w.fill == len(w.chunk) {
			if err := w.writeChunk(false); err != nil {
				w.err = err
				return n, err
			}
		}
	}
	return n, nil
}

// writeChunk encrypts the buffered bytes. final marks the call from Close.
// In batch mode a full chunk is never final, so the last chunk only gets
// the padded transform when it is partial.
func (w *Writer) writeChunk(final bool) error {
	if w.fill == 0 && !(final && w.streaming) {
		return nil
	}

	var err error
	last := final
	if w.streaming {
		if w.cipher == nil {
			w.cipher, err = w.strategy.InitCipherForBlock(nil, 0, false)
		}
	} else {
		last = final && w.fill < len(w.chunk)
		var block uint32
		block, err = blockIndex(w.index)
		if err == nil {
			w.cipher, err = w.strategy.InitCipherForBlock(w.cipher, block, last)
		}
	}
	if err != nil {
		return crypto.NewEncryptionError("write", w.entry, int(w.index), err)
	}

	var n int
	if last {
		n, err = w.cipher.DoFinal(w.ct, w.chunk[:w.fill])
	} else {
		n, err = w.cipher.Update(w.ct, w.chunk[:w.fill])
	}
	if err != nil {
		return crypto.NewEncryptionError("write", w.entry, int(w.index), err)
	}
	if _, err := w.out.Write(w.ct[:n]); err != nil {
		return crypto.NewEncryptionError("write", w.entry, int(w.index), err)
	}
	w.fill = 0
	w.index++
	return nil
}

// Close flushes the final chunk and, for directory-backed writers, writes
// the entry, the checksum and the descriptor. Temporary files are removed
// on every path.
func (w *Writer) Close() (err error) {
	if w.closed {
		return nil
	}
	w.closed = true
	defer func() {
		err = multierr.Append(err, w.cleanup())
	}()

	if w.err != nil {
		return w.err
	}
	if err := w.writeChunk(true); err != nil {
		return err
	}
	if w.dir == nil {
		if c, ok := w.sink.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}
	return w.commit()
}

// commit stages the package entry and the companion entries, and publishes
// them only when every one of them was written. A failure before publishing
// leaves dir as it was.
func (w *Writer) commit() error {
	entry, err := w.dir.CreateEntry(w.entry)
	if err != nil {
		return err
	}
	written, err := w.stage(entry)
	if err != nil {
		return multierr.Append(err, entry.Abort())
	}

	staged := []container.EntryWriter{entry}
	if w.finish != nil {
		more, err := w.finish()
		if err != nil {
			return multierr.Append(err, abortAll(staged))
		}
		staged = append(staged, more...)
	}
	for i, e := range staged {
		if err := e.Close(); err != nil {
			return multierr.Append(err, abortAll(staged[i+1:]))
		}
	}

	w.log.WithFields(logrus.Fields{
		"entry":      w.entry,
		"plaintext":  humanize.Bytes(uint64(w.total)),
		"ciphertext": humanize.Bytes(uint64(written)),
	}).Debug("encrypted package written")
	return nil
}

// stage writes the size prefix and the ciphertext into entry and runs the
// checksum over the same bytes.
func (w *Writer) stage(entry io.Writer) (int64, error) {
	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "rewind temporary file")
	}
	var prefix [8]byte
	binary.LittleEndian.PutUint64(prefix[:], uint64(w.total))
	if _, err := entry.Write(prefix[:]); err != nil {
		return 0, errors.Wrap(err, "write size prefix")
	}
	written, err := io.Copy(entry, w.tmp)
	if err != nil {
		return 0, errors.Wrap(err, "copy ciphertext")
	}

	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "rewind temporary file")
	}
	pkg := io.MultiReader(bytes.NewReader(prefix[:]), w.tmp)
	if err := w.strategy.CalculateChecksum(pkg, w.total); err != nil {
		return 0, crypto.NewEncryptionError("checksum", w.entry, -1, err)
	}
	return written, nil
}

func abortAll(entries []container.EntryWriter) error {
	var err error
	for _, e := range entries {
		err = multierr.Append(err, e.Abort())
	}
	return err
}

// Abort drops everything written so far. The directory is left untouched
// and a raw sink is not closed.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.cleanup()
}

func (w *Writer) cleanup() error {
	secure.Zero(w.chunk)
	secure.Zero(w.ct)
	if w.cipher != nil {
		w.cipher.Destroy()
		w.cipher = nil
	}
	destroyStrategy(w.strategy)
	if w.tmp == nil {
		return nil
	}
	name := w.tmp.Name()
	err := w.tmp.Close()
	if rmErr := os.Remove(name); rmErr != nil && !os.IsNotExist(rmErr) {
		w.log.WithError(rmErr).WithField("path", name).Warn("failed to remove temporary file")
		err = multierr.Append(err, rmErr)
	}
	w.tmp = nil
	return err
}
