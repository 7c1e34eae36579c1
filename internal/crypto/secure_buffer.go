/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"sync"

	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// SecureBuffer holds key material owned by a single decryptor or encryptor.
// The bytes are copied in, pinned in RAM where the platform allows it, and
// zeroed by Destroy.
type SecureBuffer struct {
	buf    []byte
	mu     sync.Mutex
	zeroed bool
	unlock func()
}

// NewSecureBuffer copies b into a new SecureBuffer.
func NewSecureBuffer(b []byte) *SecureBuffer {
	buf := secure.Clone(b)
	if buf == nil {
		buf = []byte{}
	}

	// mlock is best effort; RLIMIT_MEMLOCK is often tiny.
	unlock := func() {}
	if err := secure.Lock(buf); err == nil {
		unlock = func() {
			_ = secure.Unlock(buf)
		}
	}

	return &SecureBuffer{
		buf:    buf,
		unlock: unlock,
	}
}

// Data returns the buffer contents without copying. Callers must not retain
// the slice past Destroy.
func (s *SecureBuffer) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf
}

// Bytes returns a copy of the buffer contents.
func (s *SecureBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return secure.Clone(s.buf)
}

// Len returns the key length in bytes.
func (s *SecureBuffer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Clone returns a buffer that owns its own copy of the key bytes.
func (s *SecureBuffer) Clone() *SecureBuffer {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewSecureBuffer(s.buf)
}

// Destroy zeroes the buffer, unlocks memory, and marks it destroyed.
func (s *SecureBuffer) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.zeroed {
		secure.Zero(s.buf)
		s.zeroed = true
		if s.unlock != nil {
			s.unlock()
		}
	}
}
