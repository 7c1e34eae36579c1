/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"crypto/rand"
	"io"
	"sync"

	"github.com/pkg/errors"
)

var (
	randMu     sync.Mutex
	randSource io.Reader = rand.Reader
)

// SetRandSource replaces the source of salts, verifiers and content keys.
// Tests use it for reproducible output; it returns a function that
// restores the previous source.
func SetRandSource(r io.Reader) (restore func()) {
	randMu.Lock()
	prev := randSource
	randSource = r
	randMu.Unlock()
	return func() {
		randMu.Lock()
		randSource = prev
		randMu.Unlock()
	}
}

// RandomBytes returns n bytes from the configured random source.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.Errorf("invalid random length %d", n)
	}
	randMu.Lock()
	src := randSource
	randMu.Unlock()

	b := make([]byte, n)
	if _, err := io.ReadFull(src, b); err != nil {
		return nil, errors.Wrap(err, "read random bytes")
	}
	return b, nil
}
