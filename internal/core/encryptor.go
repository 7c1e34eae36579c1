/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// encryptor.go: password confirmation and encrypting streams
package core

import (
	"io"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/internal/stream"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// PasswordParams fixes the values ConfirmPassword would otherwise draw from
// the random source. Nil fields are still generated. Not every mode uses
// every field: KeySpec, KeySalt and IntegritySalt are agile only.
type PasswordParams struct {
	KeySpec       []byte
	KeySalt       []byte
	Verifier      []byte
	VerifierSalt  []byte
	IntegritySalt []byte
}

// Encryptor derives keys from a password, fills in the verifier of its
// EncryptionInfo and opens encrypting streams.
type Encryptor interface {
	ConfirmPassword(password string) error
	ConfirmPasswordWith(password string, params PasswordParams) error
	// DataStream writes EncryptedPackage and EncryptionInfo into dir when
	// the returned writer is closed.
	DataStream(dir container.Directory) (*stream.Writer, error)
	// RawStream encrypts into w without a size prefix or descriptor.
	RawStream(w io.Writer) (*stream.Writer, error)
	SecretKey() []byte
	Clone() Encryptor
	Destroy()
}

type encryptorBase struct {
	info *EncryptionInfo
	keys keyMaterial
}

func (e *encryptorBase) SecretKey() []byte {
	if !e.keys.ready() {
		return nil
	}
	return e.keys.secretKey.Bytes()
}

func (e *encryptorBase) Destroy() { e.keys.destroy() }

func (e *encryptorBase) cloneBase() encryptorBase {
	return encryptorBase{info: e.info.Clone(), keys: e.keys.clone()}
}

// valueOr returns a copy of v, or n random bytes when v is nil.
func valueOr(v []byte, n int, what string) ([]byte, error) {
	if v == nil {
		return crypto.RandomBytes(n)
	}
	if len(v) != n {
		return nil, errors.Errorf("%s must be %d bytes, got %d", what, n, len(v))
	}
	return secure.Clone(v), nil
}

// stageInfo writes the serialized descriptor into an unpublished
// EncryptionInfo entry.
func (e *encryptorBase) stageInfo(dir container.Directory) ([]container.EntryWriter, error) {
	data, err := e.info.MarshalBinary()
	if err != nil {
		return nil, err
	}
	w, err := dir.CreateEntry(container.EncryptionInfoEntry)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, multierr.Append(errors.Wrap(err, "write encryption info"), w.Abort())
	}
	return []container.EntryWriter{w}, nil
}

func (e *encryptorBase) dataStream(dir container.Directory, chunkSize int, s stream.Strategy) (*stream.Writer, error) {
	if !e.keys.ready() {
		release(s)
		return nil, crypto.ErrNotInitialized
	}
	w, err := stream.NewDirectoryWriter(dir, container.EncryptedPackageEntry, stream.WriterOptions{
		ChunkSize: chunkSize,
		Strategy:  s,
		TempDir:   e.info.cfg.TempDir,
		Finish:    func() ([]container.EntryWriter, error) { return e.stageInfo(dir) },
		Logger:    e.info.cfg.Logger,
	})
	if err != nil {
		release(s)
		return nil, err
	}
	return w, nil
}

func (e *encryptorBase) rawStream(w io.Writer, chunkSize int, s stream.Strategy) (*stream.Writer, error) {
	if !e.keys.ready() {
		release(s)
		return nil, crypto.ErrNotInitialized
	}
	sw, err := stream.NewWriter(w, stream.WriterOptions{
		ChunkSize: chunkSize,
		Strategy:  s,
		Logger:    e.info.cfg.Logger,
	})
	if err != nil {
		release(s)
		return nil, err
	}
	return sw, nil
}
