/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// package.go: one call encryption and decryption of whole packages
package core

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
)

// copyBufferSize is a whole number of chunks for every mode.
const copyBufferSize = 16 * AgileChunkSize

var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, copyBufferSize)
		return &buf
	},
}

// EncryptPackage encrypts everything read from src into the EncryptedPackage
// and EncryptionInfo entries of dir. Both entries are staged and published
// only after each was written, so a failed call leaves dir unchanged.
func EncryptPackage(ctx context.Context, src io.Reader, dir container.Directory, password string, mode EncryptionMode, opts ...Option) error {
	info, err := NewEncryptionInfo(mode, opts...)
	if err != nil {
		return err
	}
	enc := info.Encryptor()
	defer enc.Destroy()
	if err := enc.ConfirmPassword(password); err != nil {
		return err
	}

	w, err := enc.DataStream(dir)
	if err != nil {
		return err
	}
	if err := copyStream(ctx, w, src, sizeOf(src), info.cfg.Progress); err != nil {
		return multierr.Append(err, w.Abort())
	}
	return w.Close()
}

// DecryptPackage writes the plaintext of the package in dir to dst. A wrong
// password yields ErrInvalidPassword. With WithChecksum the agile integrity
// HMAC is verified before any plaintext is written.
func DecryptPackage(ctx context.Context, dir container.Directory, dst io.Writer, password string, opts ...Option) error {
	dec, info, err := unlock(dir, password, opts...)
	if err != nil {
		return err
	}
	defer dec.Destroy()
	return decryptTo(ctx, dir, dst, dec, info)
}

// unlock parses the descriptor of dir and checks password against it.
func unlock(dir container.Directory, password string, opts ...Option) (Decryptor, *EncryptionInfo, error) {
	info, err := ReadEncryptionInfo(dir, opts...)
	if err != nil {
		return nil, nil, err
	}
	dec := info.Decryptor()
	ok, err := dec.VerifyPassword(password)
	if err != nil {
		dec.Destroy()
		return nil, nil, err
	}
	if !ok {
		dec.Destroy()
		return nil, nil, crypto.ErrInvalidPassword
	}
	return dec, info, nil
}

func decryptTo(ctx context.Context, dir container.Directory, dst io.Writer, dec Decryptor, info *EncryptionInfo) error {
	if info.cfg.Checksum {
		if iv, ok := dec.(IntegrityVerifier); ok {
			if err := iv.VerifyIntegrity(dir); err != nil {
				return err
			}
		}
	}

	r, err := dec.DataStream(dir)
	if err != nil {
		return err
	}
	defer r.Close()
	return copyStream(ctx, dst, r, r.Size(), info.cfg.Progress)
}

// EncryptFile encrypts the file at srcPath into the directory dstDir,
// creating it if needed. A directory created by this call is removed again
// when encryption fails.
func EncryptFile(ctx context.Context, srcPath, dstDir, password string, mode EncryptionMode, opts ...Option) (err error) {
	src, err := os.Open(srcPath) // #nosec G304 -- file path provided by caller
	if err != nil {
		return errors.Wrap(err, "open source file")
	}
	defer src.Close()

	_, statErr := os.Stat(dstDir)
	created := os.IsNotExist(statErr)
	dir, err := container.OpenFSDirectory(dstDir, true)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil && created {
			_ = os.Remove(dstDir)
		}
	}()

	var total int64 = -1
	if st, serr := src.Stat(); serr == nil && st.Mode().IsRegular() {
		total = st.Size()
	}
	return EncryptPackage(ctx, sizedReader{bufio.NewReaderSize(src, copyBufferSize), total}, dir, password, mode, opts...)
}

// DecryptFile decrypts the package stored in srcDir into dstPath. The
// password is checked before dstPath is touched, and the plaintext is staged
// in a temporary file next to dstPath that replaces it only on success.
func DecryptFile(ctx context.Context, srcDir, dstPath, password string, opts ...Option) (err error) {
	dir, err := container.OpenFSDirectory(srcDir, false)
	if err != nil {
		return err
	}
	dec, info, err := unlock(dir, password, opts...)
	if err != nil {
		return err
	}
	defer dec.Destroy()

	tmp, err := os.CreateTemp(filepath.Dir(dstPath), "."+filepath.Base(dstPath)+"-*")
	if err != nil {
		return errors.Wrap(err, "create destination file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriterSize(tmp, copyBufferSize)
	if err := decryptTo(ctx, dir, bw, dec, info); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flush buffer")
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "sync destination file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close destination file")
	}
	if err := os.Rename(tmp.Name(), dstPath); err != nil {
		return errors.Wrap(err, "rename destination file")
	}
	return nil
}

// sizedReader carries a known length for progress reporting.
type sizedReader struct {
	io.Reader
	size int64
}

// sizeOf returns the length of src when it can be known up front, or -1.
func sizeOf(src io.Reader) int64 {
	switch s := src.(type) {
	case sizedReader:
		return s.size
	case interface{ Len() int }:
		return int64(s.Len())
	case interface{ Size() int64 }:
		return s.Size()
	}
	return -1
}

// copyStream copies src to dst buffer by buffer, checking ctx between
// buffers and reporting progress at 20% intervals when total is known.
func copyStream(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress func(float64)) error {
	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)
	buf := *bufPtr

	var written int64
	progressNext := int64(0)
	var progressStep int64
	if total > 0 {
		progressStep = total / 5 // 20% intervals
	}

	for {
		if ctx.Err() != nil {
			return crypto.ErrContextCanceled
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)

			if progress != nil && total > 0 && written >= progressNext {
				progress(float64(written) / float64(total))
				progressNext += progressStep
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read source stream")
		}
	}

	if progress != nil {
		progress(1.0)
	}
	return nil
}
