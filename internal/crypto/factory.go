/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// factory.go: cipher construction and the Update/DoFinal transform
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des" // #nosec G502 -- agile descriptors may name DES and 3DES
	"crypto/rc4" // #nosec G503 -- mandated by the binary RC4 and CryptoAPI formats

	"github.com/pkg/errors"

	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// Cipher is an initialized transform bound to one key, IV, algorithm,
// chaining mode and direction. Block modes require whole blocks on Update;
// DoFinal applies or strips PKCS#7 padding when the cipher was created with
// padding enabled.
type Cipher struct {
	alg     CipherAlgorithm
	mode    ChainingMode
	dir     Direction
	padding bool

	key   []byte
	block cipher.Block
	bm    cipher.BlockMode
	st    cipher.Stream
}

// GetCipher returns a cipher ready for the first Update.
func GetCipher(key []byte, alg CipherAlgorithm, mode ChainingMode, iv []byte, dir Direction, padding bool) (*Cipher, error) {
	if _, ok := cipherTable[alg]; !ok {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "cipher algorithm %d", alg)
	}
	if !alg.IsStream() {
		switch mode {
		case ChainingECB, ChainingCBC, ChainingCFB:
		default:
			return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%s with chaining mode %s", alg, mode)
		}
	}
	c := &Cipher{alg: alg, mode: mode, dir: dir, padding: padding && !alg.IsStream()}
	if err := c.Init(key, iv); err != nil {
		return nil, err
	}
	return c, nil
}

// Init re-keys the cipher for a new block. The key schedule is reused when
// key is unchanged; a nil key keeps the current one.
func (c *Cipher) Init(key, iv []byte) error {
	if key != nil && (c.key == nil || !bytes.Equal(key, c.key)) {
		secure.Zero(c.key)
		c.key = secure.Clone(key)
		c.block = nil
	}
	if c.key == nil {
		return cipherErr("init", errors.New("no key"))
	}

	if c.alg.IsStream() {
		rc, err := rc4.NewCipher(c.key)
		if err != nil {
			return cipherErr("init", err)
		}
		c.st = rc
		return nil
	}

	if c.block == nil {
		b, err := newBlock(c.alg, c.key)
		if err != nil {
			return cipherErr("init", err)
		}
		c.block = b
	}

	bs := c.block.BlockSize()
	if c.mode != ChainingECB && len(iv) != bs {
		return cipherErr("init", errors.Errorf("iv length %d, want %d", len(iv), bs))
	}
	decrypt := c.dir == Decrypt
	switch c.mode {
	case ChainingECB:
		c.bm = newECB(c.block, decrypt)
	case ChainingCBC:
		if decrypt {
			c.bm = cipher.NewCBCDecrypter(c.block, iv)
		} else {
			c.bm = cipher.NewCBCEncrypter(c.block, iv)
		}
	case ChainingCFB:
		c.st = newCFB8(c.block, iv, decrypt)
	}
	return nil
}

func newBlock(alg CipherAlgorithm, key []byte) (cipher.Block, error) {
	switch alg {
	case CipherAES128, CipherAES192, CipherAES256:
		return aes.NewCipher(key)
	case CipherDES:
		return des.NewCipher(key)
	case Cipher3DES:
		return des.NewTripleDESCipher(key)
	case Cipher3DES112:
		if len(key) != 16 {
			return nil, errors.Errorf("3DES_112 key length %d, want 16", len(key))
		}
		k := make([]byte, 0, 24)
		k = append(k, key...)
		k = append(k, key[:8]...)
		return des.NewTripleDESCipher(k)
	default:
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "cipher %s", alg)
	}
}

// Algorithm returns the configured cipher algorithm.
func (c *Cipher) Algorithm() CipherAlgorithm { return c.alg }

// BlockSize returns the block size, or 1 for stream transforms.
func (c *Cipher) BlockSize() int {
	if c.bm != nil {
		return c.bm.BlockSize()
	}
	return 1
}

// IsStream reports whether arbitrary lengths can be processed by Update.
func (c *Cipher) IsStream() bool { return c.st != nil && c.bm == nil }

// Update transforms src into dst and returns the number of bytes written.
// dst and src may overlap entirely.
func (c *Cipher) Update(dst, src []byte) (int, error) {
	if len(dst) < len(src) {
		return 0, cipherErr("update", errors.New("output buffer too small"))
	}
	if c.bm != nil {
		if len(src)%c.bm.BlockSize() != 0 {
			return 0, cipherErr("update", errors.Errorf("input length %d is not a multiple of %d", len(src), c.bm.BlockSize()))
		}
		c.bm.CryptBlocks(dst[:len(src)], src)
		return len(src), nil
	}
	if c.st == nil {
		return 0, cipherErr("update", errors.New("cipher not initialized"))
	}
	c.st.XORKeyStream(dst[:len(src)], src)
	return len(src), nil
}

// DoFinal transforms the last piece of input. With padding enabled an
// encrypting cipher appends PKCS#7 padding (dst needs room for one extra
// block) and a decrypting cipher validates and removes it.
func (c *Cipher) DoFinal(dst, src []byte) (int, error) {
	if !c.padding {
		return c.Update(dst, src)
	}
	bs := c.alg.BlockSize()
	if c.dir == Encrypt {
		pad := bs - len(src)%bs
		total := len(src) + pad
		if len(dst) < total {
			return 0, cipherErr("final", errors.New("output buffer too small for padding"))
		}
		copy(dst, src)
		for i := len(src); i < total; i++ {
			dst[i] = byte(pad)
		}
		return c.Update(dst[:total], dst[:total])
	}

	n, err := c.Update(dst, src)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, cipherErr("final", errors.New("missing padding block"))
	}
	pad := int(dst[n-1])
	if pad == 0 || pad > bs || pad > n {
		return 0, cipherErr("final", errors.New("invalid padding"))
	}
	for _, b := range dst[n-pad : n] {
		if int(b) != pad {
			return 0, cipherErr("final", errors.New("invalid padding"))
		}
	}
	return n - pad, nil
}

// Discard advances a stream transform by n bytes of keystream.
func (c *Cipher) Discard(n int) error {
	if !c.IsStream() {
		return cipherErr("discard", errors.Errorf("%s %s is not a stream transform", c.alg, c.mode))
	}
	buf := make([]byte, n)
	c.st.XORKeyStream(buf, buf)
	return nil
}

// Destroy zeroes the key copy held by the cipher.
func (c *Cipher) Destroy() {
	secure.Zero(c.key)
	c.key = nil
	c.block = nil
	c.bm = nil
	c.st = nil
}
