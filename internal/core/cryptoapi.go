/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// cryptoapi.go: CryptoAPI RC4 encryption
package core

import (
	"io"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/internal/stream"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// blockKeyFunc derives the RC4 key of one block from the secret key.
type blockKeyFunc func(secret []byte, block uint32) ([]byte, error)

// rc4Strategy re-keys RC4 at every chunk boundary.
type rc4Strategy struct {
	key    *crypto.SecureBuffer
	derive blockKeyFunc
	dir    crypto.Direction
}

func (s *rc4Strategy) InitCipherForBlock(existing *crypto.Cipher, block uint32, _ bool) (*crypto.Cipher, error) {
	k, err := s.derive(s.key.Data(), block)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(k)
	if existing == nil {
		return crypto.GetCipher(k, crypto.CipherRC4, crypto.ChainingNone, nil, s.dir, false)
	}
	if err := existing.Init(k, nil); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *rc4Strategy) CalculateChecksum(io.Reader, int64) error { return nil }

func (s *rc4Strategy) Destroy() { s.key.Destroy() }

// verifyRC4 decrypts verifier and verifier hash with one block 0 cipher and
// compares the hash of the verifier. It returns the verifier on success.
func verifyRC4(key0 []byte, v *EncryptionVerifier) ([]byte, bool, error) {
	c, err := crypto.GetCipher(key0, crypto.CipherRC4, crypto.ChainingNone, nil, crypto.Decrypt, false)
	if err != nil {
		return nil, false, err
	}
	defer c.Destroy()

	verifier := make([]byte, len(v.EncryptedVerifier))
	if _, err := c.Update(verifier, v.EncryptedVerifier); err != nil {
		return nil, false, err
	}
	hash := make([]byte, len(v.EncryptedVerifierHash))
	if _, err := c.Update(hash, v.EncryptedVerifierHash); err != nil {
		return nil, false, err
	}
	calc, err := v.HashAlgorithm.Sum(verifier)
	if err != nil {
		return nil, false, err
	}
	if !secure.Equal(calc, hash) {
		secure.Zero(verifier)
		return nil, false, nil
	}
	return verifier, true, nil
}

// encryptRC4Verifier is the inverse of verifyRC4.
func encryptRC4Verifier(key0, verifier []byte, v *EncryptionVerifier) error {
	c, err := crypto.GetCipher(key0, crypto.CipherRC4, crypto.ChainingNone, nil, crypto.Encrypt, false)
	if err != nil {
		return err
	}
	defer c.Destroy()

	hash, err := v.HashAlgorithm.Sum(verifier)
	if err != nil {
		return err
	}
	encVerifier := make([]byte, len(verifier))
	if _, err := c.Update(encVerifier, verifier); err != nil {
		return err
	}
	if _, err := c.Update(hash, hash); err != nil {
		return err
	}
	v.EncryptedVerifier = encVerifier
	v.EncryptedVerifierHash = hash
	return nil
}

// cryptoAPISecretKey is H(salt || UTF16LE(password)).
func cryptoAPISecretKey(password string, v *EncryptionVerifier) ([]byte, error) {
	return crypto.HashPassword(password, v.HashAlgorithm, v.Salt, 0)
}

// cryptoAPIBlockKey returns H(secret || LE32(block)) cut to the key size.
// 40 bit keys are zero extended to 128 bits.
func cryptoAPIBlockKey(h *EncryptionHeader) blockKeyFunc {
	return func(secret []byte, block uint32) ([]byte, error) {
		d, err := h.HashAlgorithm.Sum(secret, crypto.LE32(block))
		if err != nil {
			return nil, err
		}
		defer secure.Zero(d)
		k := crypto.Block0(d, h.KeyBits/8)
		if h.KeyBits == 40 {
			w := crypto.Block0(k, 16)
			secure.Zero(k)
			k = w
		}
		return k, nil
	}
}

type cryptoAPIDecryptor struct {
	decryptorBase
}

func newCryptoAPIDecryptor(info *EncryptionInfo) *cryptoAPIDecryptor {
	return &cryptoAPIDecryptor{newDecryptorBase(info, RC4ChunkSize)}
}

func (d *cryptoAPIDecryptor) VerifyPassword(password string) (bool, error) {
	secret, err := cryptoAPISecretKey(password, d.info.Verifier)
	if err != nil {
		return false, err
	}
	defer secure.Zero(secret)
	key0, err := cryptoAPIBlockKey(d.info.Header)(secret, 0)
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

func (d *cryptoAPIDecryptor) strategy() stream.Strategy {
	return &rc4Strategy{key: d.keys.share(), derive: cryptoAPIBlockKey(d.info.Header), dir: crypto.Decrypt}
}

func (d *cryptoAPIDecryptor) DataStream(dir container.Directory) (*stream.Reader, error) {
	return d.dataStream(dir, d.strategy())
}

func (d *cryptoAPIDecryptor) RawStream(r io.Reader, size, initialPos int64) (*stream.Reader, error) {
	return d.rawStream(r, size, initialPos, d.strategy(), "")
}

func (d *cryptoAPIDecryptor) Clone() Decryptor {
	return &cryptoAPIDecryptor{d.cloneBase()}
}

type cryptoAPIEncryptor struct {
	encryptorBase
}

func (e *cryptoAPIEncryptor) ConfirmPassword(password string) error {
	return e.ConfirmPasswordWith(password, PasswordParams{})
}

func (e *cryptoAPIEncryptor) ConfirmPasswordWith(password string, params PasswordParams) error {
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
	secret, err := cryptoAPISecretKey(password, v)
	if err != nil {
		return err
	}
	defer secure.Zero(secret)
	key0, err := cryptoAPIBlockKey(e.info.Header)(secret, 0)
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

func (e *cryptoAPIEncryptor) strategy() stream.Strategy {
	return &rc4Strategy{key: e.keys.share(), derive: cryptoAPIBlockKey(e.info.Header), dir: crypto.Encrypt}
}

func (e *cryptoAPIEncryptor) DataStream(dir container.Directory) (*stream.Writer, error) {
	return e.dataStream(dir, RC4ChunkSize, e.strategy())
}

func (e *cryptoAPIEncryptor) RawStream(w io.Writer) (*stream.Writer, error) {
	return e.rawStream(w, RC4ChunkSize, e.strategy())
}

func (e *cryptoAPIEncryptor) Clone() Encryptor {
	return &cryptoAPIEncryptor{e.cloneBase()}
}
