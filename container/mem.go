/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package container

import (
	"bytes"
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// MemDirectory keeps entries in memory. It is safe for concurrent use.
type MemDirectory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemDirectory returns an empty directory.
func NewMemDirectory() *MemDirectory {
	return &MemDirectory{entries: make(map[string][]byte)}
}

type memReader struct {
	*bytes.Reader
}

func (memReader) Close() error { return nil }

// OpenEntry returns a seekable reader over a snapshot of the entry.
func (d *MemDirectory) OpenEntry(name string) (io.ReadCloser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.entries[name]
	if !ok {
		return nil, errors.Wrapf(ErrEntryNotFound, "%q", name)
	}
	return memReader{bytes.NewReader(data)}, nil
}

type memWriter struct {
	d      *MemDirectory
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.Errorf("entry %q already closed", w.name)
	}
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.d.Put(w.name, w.buf.Bytes())
	return nil
}

func (w *memWriter) Abort() error {
	w.closed = true
	w.buf.Reset()
	return nil
}

// CreateEntry returns a writer whose content becomes visible on Close.
func (d *MemDirectory) CreateEntry(name string) (EntryWriter, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return &memWriter{d: d, name: name}, nil
}

// HasEntry reports whether name exists.
func (d *MemDirectory) HasEntry(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.entries[name]
	return ok
}

// Bytes returns a copy of an entry's content.
func (d *MemDirectory) Bytes(name string) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.entries[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Put stores a copy of data under name.
func (d *MemDirectory) Put(name string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[name] = append([]byte(nil), data...)
}

// Names lists entries in lexical order.
func (d *MemDirectory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.entries))
	for n := range d.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
