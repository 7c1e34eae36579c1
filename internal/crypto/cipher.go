/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// cipher.go: algorithm, chaining mode and provider identifiers
package crypto

import (
	"github.com/pkg/errors"
)

// CipherAlgorithm identifies the content cipher of an encrypted package.
type CipherAlgorithm uint8

const (
	CipherNone CipherAlgorithm = iota
	CipherRC4
	CipherAES128
	CipherAES192
	CipherAES256
	CipherDES
	Cipher3DES
	Cipher3DES112
)

type cipherInfo struct {
	id        uint32 // ALG_ID
	xmlName   string
	blockSize int // 0 for stream ciphers
	keyBits   []int
	provider  CipherProvider
}

var cipherTable = map[CipherAlgorithm]cipherInfo{
	CipherRC4:     {0x6801, "RC4", 0, []int{40, 48, 56, 64, 72, 80, 88, 96, 104, 112, 120, 128}, ProviderRC4},
	CipherAES128:  {0x660E, "AES", 16, []int{128}, ProviderAES},
	CipherAES192:  {0x660F, "AES", 16, []int{192}, ProviderAES},
	CipherAES256:  {0x6610, "AES", 16, []int{256}, ProviderAES},
	CipherDES:     {0x6601, "DES", 8, []int{64}, ProviderAES},
	Cipher3DES:    {0x6603, "3DES", 8, []int{192}, ProviderAES},
	Cipher3DES112: {0x6609, "3DES_112", 8, []int{128}, ProviderAES},
}

// String returns a readable name including the key size for AES.
func (c CipherAlgorithm) String() string {
	switch c {
	case CipherAES128:
		return "AES-128"
	case CipherAES192:
		return "AES-192"
	case CipherAES256:
		return "AES-256"
	}
	if info, ok := cipherTable[c]; ok {
		return info.xmlName
	}
	return "Unknown"
}

// ID returns the binary header ALG_ID.
func (c CipherAlgorithm) ID() uint32 { return cipherTable[c].id }

// XMLName returns the agile descriptor name.
func (c CipherAlgorithm) XMLName() string { return cipherTable[c].xmlName }

// BlockSize returns the cipher block size in bytes, 0 for stream ciphers.
func (c CipherAlgorithm) BlockSize() int { return cipherTable[c].blockSize }

// IsStream reports whether the algorithm is a stream cipher.
func (c CipherAlgorithm) IsStream() bool { return c == CipherRC4 }

// Provider returns the CSP type that pairs with this algorithm.
func (c CipherAlgorithm) Provider() CipherProvider { return cipherTable[c].provider }

// DefaultKeyBits returns the smallest permitted key size.
func (c CipherAlgorithm) DefaultKeyBits() int {
	info, ok := cipherTable[c]
	if !ok || len(info.keyBits) == 0 {
		return 0
	}
	return info.keyBits[0]
}

// ValidKeyBits reports whether bits is a permitted key size.
func (c CipherAlgorithm) ValidKeyBits(bits int) bool {
	for _, b := range cipherTable[c].keyBits {
		if b == bits {
			return true
		}
	}
	return false
}

// CipherAlgorithmFromID maps a binary header ALG_ID.
func CipherAlgorithmFromID(id uint32) (CipherAlgorithm, error) {
	for alg, info := range cipherTable {
		if info.id == id {
			return alg, nil
		}
	}
	return CipherNone, errors.Wrapf(ErrUnsupportedAlgorithm, "cipher algorithm id 0x%x", id)
}

// CipherAlgorithmFromName maps an agile descriptor name. AES is ambiguous
// without the key size, so keyBits selects the variant.
func CipherAlgorithmFromName(name string, keyBits int) (CipherAlgorithm, error) {
	for alg, info := range cipherTable {
		if info.xmlName == name && alg.ValidKeyBits(keyBits) {
			return alg, nil
		}
	}
	return CipherNone, errors.Wrapf(ErrUnsupportedAlgorithm, "cipher %q with %d bit key", name, keyBits)
}

// ChainingMode is the block chaining mode.
type ChainingMode uint8

const (
	ChainingNone ChainingMode = 0
	ChainingECB  ChainingMode = 1
	ChainingCBC  ChainingMode = 2
	ChainingCFB  ChainingMode = 3 // 8-bit feedback
)

func (m ChainingMode) String() string {
	switch m {
	case ChainingECB:
		return "ECB"
	case ChainingCBC:
		return "CBC"
	case ChainingCFB:
		return "CFB8"
	default:
		return "None"
	}
}

// XMLName returns the agile descriptor name. ECB has none.
func (m ChainingMode) XMLName() string {
	switch m {
	case ChainingCBC:
		return "ChainingModeCBC"
	case ChainingCFB:
		return "ChainingModeCFB"
	default:
		return ""
	}
}

// ChainingModeFromName maps an agile descriptor name.
func ChainingModeFromName(name string) (ChainingMode, error) {
	switch name {
	case "ChainingModeCBC":
		return ChainingCBC, nil
	case "ChainingModeCFB":
		return ChainingCFB, nil
	default:
		return ChainingNone, errors.Wrapf(ErrUnsupportedAlgorithm, "chaining mode %q", name)
	}
}

// CipherProvider is the CSP type recorded in standard headers.
type CipherProvider uint32

const (
	ProviderAny CipherProvider = 0
	ProviderRC4 CipherProvider = 0x01
	ProviderAES CipherProvider = 0x18
)

// CSPName returns the canonical provider name written to new headers.
func (p CipherProvider) CSPName() string {
	switch p {
	case ProviderRC4:
		return "Microsoft Base Cryptographic Provider v1.0"
	case ProviderAES:
		return "Microsoft Enhanced RSA and AES Cryptographic Provider"
	default:
		return ""
	}
}

// Direction selects encryption or decryption.
type Direction uint8

const (
	Decrypt Direction = iota
	Encrypt
)

func (d Direction) String() string {
	if d == Encrypt {
		return "encrypt"
	}
	return "decrypt"
}
