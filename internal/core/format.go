/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// format.go: EncryptionInfo layout constants for go-officecrypt
package core

import (
	"fmt"
)

// EncryptionMode selects one of the supported envelope layouts. The set is
// closed; EncryptionInfo dispatches on it with a switch.
type EncryptionMode uint8

const (
	ModeBinaryRC4 EncryptionMode = iota + 1
	ModeCryptoAPI
	ModeStandard
	ModeAgile
)

func (m EncryptionMode) String() string {
	switch m {
	case ModeBinaryRC4:
		return "BinaryRC4"
	case ModeCryptoAPI:
		return "CryptoAPI"
	case ModeStandard:
		return "Standard"
	case ModeAgile:
		return "Agile"
	default:
		return fmt.Sprintf("EncryptionMode(%d)", uint8(m))
	}
}

// Version pairs written by new descriptors.
const (
	versionBinaryRC4Major = 1
	versionBinaryRC4Minor = 1
	versionStandardMajor  = 4
	versionStandardMinor  = 2
	versionAgileMajor     = 4
	versionAgileMinor     = 4
)

// EncryptionInfo flags.
const (
	FlagCryptoAPI uint32 = 0x04
	FlagDocProps  uint32 = 0x08
	FlagExternal  uint32 = 0x10
	FlagAES       uint32 = 0x20
	FlagAgile     uint32 = 0x40
)

// Chunk sizes of the EncryptedPackage stream.
const (
	AgileChunkSize    = 4096
	StandardChunkSize = 4096
	RC4ChunkSize      = 512
)

// Default spin counts.
const (
	AgileSpinCount    = 100000
	StandardSpinCount = 50000
)

const (
	// standardSaltSize is the only salt length the binary verifier allows.
	standardSaltSize = 16
	verifierSize     = 16
	// aesVerifierHashSize is the encrypted SHA-1 verifier hash padded to
	// two AES blocks.
	aesVerifierHashSize = 32
	// minStandardHeaderSize covers the eight fixed header fields.
	minStandardHeaderSize = 32
)

// Agile block keys, fed into GenerateKey and GenerateIV.
var (
	blockKeyVerifierInput  = []byte{0xfe, 0xa7, 0xd2, 0x76, 0x3b, 0x4b, 0x9e, 0x79}
	blockKeyVerifierValue  = []byte{0xd7, 0xaa, 0x0f, 0x6d, 0x30, 0x61, 0x34, 0x4e}
	blockKeyEncryptedKey   = []byte{0x14, 0x6e, 0x0b, 0xe7, 0xab, 0xac, 0xd0, 0xd6}
	blockKeyIntegrityKey   = []byte{0x5f, 0xb2, 0xad, 0x01, 0x0c, 0xb9, 0xe1, 0xf6}
	blockKeyIntegrityValue = []byte{0xa0, 0x67, 0x7f, 0x02, 0xb2, 0x2c, 0x84, 0x33}
)
