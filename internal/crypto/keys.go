/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// keys.go: password hashing and per-block key and IV derivation
package crypto

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"

	"github.com/gitrgoliveira/go-officecrypt/secure"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// PasswordBytes returns the UTF-16LE encoding of password without a BOM.
func PasswordBytes(password string) ([]byte, error) {
	b, err := utf16le.NewEncoder().Bytes([]byte(password))
	if err != nil {
		return nil, errors.Wrap(err, "encode password")
	}
	return b, nil
}

// EncodeUTF16 encodes s as UTF-16LE. Used for CSP names.
func EncodeUTF16(s string) ([]byte, error) {
	return utf16le.NewEncoder().Bytes([]byte(s))
}

// DecodeUTF16 decodes UTF-16LE text up to the first NUL code unit.
func DecodeUTF16(b []byte) (string, error) {
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			b = b[:i]
			break
		}
	}
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// LE32 returns v as four little-endian bytes.
func LE32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// HashPassword derives the base password hash:
//
//	h0 = H(salt || UTF16LE(password))
//	hn = H(LE32(n-1) || hn-1)  for n in 1..spinCount
func HashPassword(password string, alg HashAlgorithm, salt []byte, spinCount int) ([]byte, error) {
	if spinCount < 0 {
		return nil, errors.Errorf("invalid spin count %d", spinCount)
	}
	pw, err := PasswordBytes(password)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(pw)

	d, err := alg.New()
	if err != nil {
		return nil, err
	}
	d.Write(salt)
	d.Write(pw)
	h := d.Sum(nil)

	var iter [4]byte
	for i := 0; i < spinCount; i++ {
		binary.LittleEndian.PutUint32(iter[:], uint32(i))
		d.Reset()
		d.Write(iter[:])
		d.Write(h)
		h = d.Sum(h[:0])
	}
	return h, nil
}

// GenerateKey derives a key of keySize bytes from the base hash and a block
// key: Block36(H(passwordHash || blockKey), keySize).
func GenerateKey(passwordHash []byte, alg HashAlgorithm, blockKey []byte, keySize int) ([]byte, error) {
	h, err := alg.Sum(passwordHash, blockKey)
	if err != nil {
		return nil, err
	}
	return Block36(h, keySize), nil
}

// GenerateIV derives an initialization vector of blockSize bytes. With a
// nil blockKey the salt itself is fitted to the block size.
func GenerateIV(alg HashAlgorithm, salt, blockKey []byte, blockSize int) ([]byte, error) {
	if blockKey == nil {
		return Block36(salt, blockSize), nil
	}
	h, err := alg.Sum(salt, blockKey)
	if err != nil {
		return nil, err
	}
	return Block36(h, blockSize), nil
}

// Block36 truncates b to size or right-pads it with 0x36.
func Block36(b []byte, size int) []byte {
	return fitBlock(b, size, 0x36)
}

// Block0 truncates b to size or right-pads it with 0x00.
func Block0(b []byte, size int) []byte {
	return fitBlock(b, size, 0x00)
}

func fitBlock(b []byte, size int, fill byte) []byte {
	out := make([]byte, size)
	n := copy(out, b)
	for i := n; i < size; i++ {
		out[i] = fill
	}
	return out
}

// NextBlockSize rounds size up to a multiple of blockSize.
func NextBlockSize(size, blockSize int) int {
	if blockSize <= 1 {
		return size
	}
	return (size + blockSize - 1) / blockSize * blockSize
}
