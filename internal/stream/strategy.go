/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package stream implements the chunked cipher reader and writer shared by
// every encryption mode. Mode specific behaviour is injected through a
// Strategy.
package stream

import (
	"io"
	"math/bits"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
)

// Streaming selects the writer sub-mode where one cipher runs across all
// chunks and is finalized only on Close.
const Streaming = -1

// Strategy supplies the two mode specific hooks of a chunked stream.
type Strategy interface {
	// InitCipherForBlock returns a cipher positioned at the start of chunk
	// block. existing is the cipher used for the previous chunk (nil the
	// first time) and may be re-initialized and returned. lastChunk is set
	// for the final partial chunk of an encrypting stream.
	InitCipherForBlock(existing *crypto.Cipher, block uint32, lastChunk bool) (*crypto.Cipher, error)

	// CalculateChecksum is called by directory-backed writers on Close with
	// the full EncryptedPackage entry content (size prefix included).
	CalculateChecksum(pkg io.Reader, plainSize int64) error
}

// destroyer is implemented by strategies that own key material; the stream
// calls it when it is closed.
type destroyer interface {
	Destroy()
}

func destroyStrategy(s Strategy) {
	if d, ok := s.(destroyer); ok {
		d.Destroy()
	}
}

func chunkShift(chunkSize int) (uint, error) {
	if chunkSize <= 0 || chunkSize&(chunkSize-1) != 0 {
		return 0, errors.Errorf("chunk size %d is not a power of two", chunkSize)
	}
	return uint(bits.TrailingZeros(uint(chunkSize))), nil
}

func blockIndex(index int64) (uint32, error) {
	if index < 0 || index > int64(^uint32(0)) {
		return 0, errors.Errorf("chunk index %d out of range", index)
	}
	return uint32(index), nil
}

func loggerOrDefault(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}
