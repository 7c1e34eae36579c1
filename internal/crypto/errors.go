/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// Error types for document encryption
var (
	ErrUnsupported          = errors.New("unsupported encryption version")
	ErrUnsupportedAlgorithm = errors.New("unsupported encryption algorithm")
	ErrCorruptMetadata      = errors.New("corrupt encryption metadata")
	ErrRecordTooLarge       = errors.New("record length exceeds allowed maximum")
	ErrNotInitialized       = errors.New("encryption not initialized")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrTruncated            = errors.New("unexpected end of encrypted stream")
	ErrCipher               = errors.New("cipher operation failed")
	ErrIntegrity            = errors.New("data integrity check failed")
	ErrMarkNotSupported     = errors.New("mark/reset not supported")
	ErrSeek                 = errors.New("cannot seek backwards in a non-seekable stream")
	ErrClosed               = errors.New("stream already closed")
	ErrContextCanceled      = errors.New("context canceled")
)

// SanitizeError removes sensitive details for external consumption
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrInvalidPassword):
		return errors.New("invalid password")
	case errors.Is(err, ErrUnsupported), errors.Is(err, ErrUnsupportedAlgorithm):
		return errors.New("unsupported encryption")
	case errors.Is(err, ErrCorruptMetadata), errors.Is(err, ErrRecordTooLarge),
		errors.Is(err, ErrTruncated), errors.Is(err, ErrIntegrity):
		return errors.New("corrupted encrypted file")
	case errors.Is(err, ErrCipher):
		return errors.New("decryption failed")
	case errors.Is(err, os.ErrPermission):
		return errors.New("insufficient permissions")
	case errors.Is(err, os.ErrNotExist):
		return errors.New("file not found")
	default:
		return errors.New("encryption operation failed")
	}
}

// CipherError reports a failure inside a block or stream cipher primitive.
// It matches ErrCipher with errors.Is.
type CipherError struct {
	Op  string
	Err error
}

func (e *CipherError) Error() string {
	return fmt.Sprintf("cipher %s: %v", e.Op, e.Err)
}

func (e *CipherError) Unwrap() error {
	return e.Err
}

func (e *CipherError) Is(target error) bool {
	return target == ErrCipher
}

func cipherErr(op string, err error) error {
	return &CipherError{Op: op, Err: err}
}

// EncryptionError represents an encryption/decryption error with context
type EncryptionError struct {
	Op       string // Operation: "read", "write", "close", "verify", etc.
	Entry    string // Directory entry being processed, if any
	ChunkNum int    // Chunk index if applicable (-1 if not chunked operation)
	Err      error  // Underlying error
}

func (e *EncryptionError) Error() string {
	entry := e.Entry
	if entry == "" {
		entry = "<stream>"
	}
	if e.ChunkNum >= 0 {
		return fmt.Sprintf("%s %s (chunk %d): %v", e.Op, entry, e.ChunkNum, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, entry, e.Err)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// NewEncryptionError creates a new EncryptionError
func NewEncryptionError(op, entry string, chunkNum int, err error) *EncryptionError {
	return &EncryptionError{
		Op:       op,
		Entry:    entry,
		ChunkNum: chunkNum,
		Err:      err,
	}
}

// Corruptf returns an error matching ErrCorruptMetadata with a formatted detail.
func Corruptf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorruptMetadata, format, args...)
}

// Unsupportedf returns an error matching ErrUnsupported with a formatted detail.
func Unsupportedf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnsupported, format, args...)
}
