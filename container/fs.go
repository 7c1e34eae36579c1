/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package container

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// FSDirectory maps each entry to a regular file inside a host directory.
type FSDirectory struct {
	root string
}

// OpenFSDirectory opens the directory at path, creating it when create is
// set and it does not exist.
func OpenFSDirectory(path string, create bool) (*FSDirectory, error) {
	if create {
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, errors.Wrap(err, "create directory")
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", path)
	}
	return &FSDirectory{root: path}, nil
}

// Root returns the host path.
func (d *FSDirectory) Root() string { return d.root }

// OpenEntry opens the entry file. The returned *os.File is seekable.
func (d *FSDirectory) OpenEntry(name string) (io.ReadCloser, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	// #nosec G304 -- name is validated to stay inside root
	f, err := os.Open(filepath.Join(d.root, name))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrEntryNotFound, "%q", name)
	}
	return f, err
}

type fsWriter struct {
	tmp   *os.File
	final string
	done  bool
}

func (w *fsWriter) Write(p []byte) (int, error) { return w.tmp.Write(p) }

// Close publishes the entry by renaming the temporary file over the target.
func (w *fsWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	err := w.tmp.Sync()
	err = multierr.Append(err, w.tmp.Close())
	if err == nil {
		err = os.Rename(w.tmp.Name(), w.final)
	}
	if err != nil {
		_ = os.Remove(w.tmp.Name())
		return errors.Wrap(err, "commit entry")
	}
	return nil
}

// Abort removes the temporary file without touching the entry.
func (w *fsWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	err := w.tmp.Close()
	if rmErr := os.Remove(w.tmp.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
		err = multierr.Append(err, rmErr)
	}
	return errors.Wrap(err, "abort entry")
}

// CreateEntry writes to a hidden temporary file that replaces the entry on
// Close, so readers never observe a partial entry.
func (d *FSDirectory) CreateEntry(name string) (EntryWriter, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(d.root, "."+name+"-*")
	if err != nil {
		return nil, errors.Wrap(err, "create entry")
	}
	return &fsWriter{tmp: tmp, final: filepath.Join(d.root, name)}, nil
}

// HasEntry reports whether name exists as a regular file.
func (d *FSDirectory) HasEntry(name string) bool {
	if validateName(name) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(d.root, name))
	return err == nil && info.Mode().IsRegular()
}
