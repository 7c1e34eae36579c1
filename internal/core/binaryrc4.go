/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// binaryrc4.go: legacy binary RC4 encryption (version 1.1)
package core

import (
	"io"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/internal/stream"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// maxBinaryRC4Password is the longest password the format accepts, in
// UTF-16 code units. Longer passwords are truncated.
const maxBinaryRC4Password = 255

// binaryRC4SecretKey derives the 40 bit key:
// t = MD5(UTF16LE(password))[:5], key = MD5((t || salt) x 16)[:5].
func binaryRC4SecretKey(password string, v *EncryptionVerifier) ([]byte, error) {
	full, err := crypto.PasswordBytes(password)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(full)
	pw := full
	if len(pw) > 2*maxBinaryRC4Password {
		pw = pw[:2*maxBinaryRC4Password]
	}

	t, err := crypto.HashMD5.Sum(pw)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(t)

	d, err := crypto.HashMD5.New()
	if err != nil {
		return nil, err
	}
	for i := 0; i < 16; i++ {
		d.Write(t[:5])
		d.Write(v.Salt)
	}
	sum := d.Sum(nil)
	key := secure.Clone(sum[:5])
	secure.Zero(sum)
	return key, nil
}

// binaryRC4BlockKey is MD5(key || LE32(block)).
func binaryRC4BlockKey(secret []byte, block uint32) ([]byte, error) {
	return crypto.GenerateKey(secret, crypto.HashMD5, crypto.LE32(block), 16)
}

type binaryRC4Decryptor struct {
	decryptorBase
}

func newBinaryRC4Decryptor(info *EncryptionInfo) *binaryRC4Decryptor {
	return &binaryRC4Decryptor{newDecryptorBase(info, RC4ChunkSize)}
}

func (d *binaryRC4Decryptor) VerifyPassword(password string) (bool, error) {
	secret, err := binaryRC4SecretKey(password, d.info.Verifier)
	if err != nil {
		return false, err
	}
	defer secure.Zero(secret)
	key0, err := binaryRC4BlockKey(secret, 0)
	if err != nil {
		return false, err
	}
	defer secure.Zero(key0)

	verifier, ok, err := verifyRC4(key0, d.info.Verifier)
	if err != nil {
		return false, err
	}
	d.logVerify(ok)
	if ok {
		d.keys.setSecretKey(secret)
		d.keys.verifier = verifier
	}
	return ok, nil
}

func (d *binaryRC4Decryptor) strategy() stream.Strategy {
	return &rc4Strategy{key: d.keys.share(), derive: binaryRC4BlockKey, dir: crypto.Decrypt}
}

func (d *binaryRC4Decryptor) DataStream(dir container.Directory) (*stream.Reader, error) {
	return d.dataStream(dir, d.strategy())
}

func (d *binaryRC4Decryptor) RawStream(r io.Reader, size, initialPos int64) (*stream.Reader, error) {
	return d.rawStream(r, size, initialPos, d.strategy(), "")
}

func (d *binaryRC4Decryptor) Clone() Decryptor {
	return &binaryRC4Decryptor{d.cloneBase()}
}

type binaryRC4Encryptor struct {
	encryptorBase
}

func (e *binaryRC4Encryptor) ConfirmPassword(password string) error {
	return e.ConfirmPasswordWith(password, PasswordParams{})
}

func (e *binaryRC4Encryptor) ConfirmPasswordWith(password string, params PasswordParams) error {
	v := e.info.Verifier
	salt, err := valueOr(params.VerifierSalt, standardSaltSize, "verifier salt")
	if err != nil {
		return err
	}
	verifier, err := valueOr(params.Verifier, verifierSize, "verifier")
	if err != nil {
		return err
	}

	v.Salt = salt
	secret, err := binaryRC4SecretKey(password, v)
	if err != nil {
		return err
	}
	defer secure.Zero(secret)
	key0, err := binaryRC4BlockKey(secret, 0)
	if err != nil {
		return err
	}
	defer secure.Zero(key0)
	if err := encryptRC4Verifier(key0, verifier, v); err != nil {
		return err
	}
	e.keys.setSecretKey(secret)
	e.keys.verifier = verifier
	return nil
}

func (e *binaryRC4Encryptor) strategy() stream.Strategy {
	return &rc4Strategy{key: e.keys.share(), derive: binaryRC4BlockKey, dir: crypto.Encrypt}
}

func (e *binaryRC4Encryptor) DataStream(dir container.Directory) (*stream.Writer, error) {
	return e.dataStream(dir, RC4ChunkSize, e.strategy())
}

func (e *binaryRC4Encryptor) RawStream(w io.Writer) (*stream.Writer, error) {
	return e.rawStream(w, RC4ChunkSize, e.strategy())
}

func (e *binaryRC4Encryptor) Clone() Encryptor {
	return &binaryRC4Encryptor{e.cloneBase()}
}
