/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package container is the narrow view of a compound document that the
// codec needs: a flat set of named entries that can be read and written as
// byte streams. Parsing the container file itself is left to the caller.
package container

import (
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Well known entry names.
const (
	EncryptionInfoEntry   = "EncryptionInfo"
	EncryptedPackageEntry = "EncryptedPackage"
)

var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrInvalidName   = errors.New("invalid entry name")
)

// Directory yields named entries. Readers returned by OpenEntry should also
// implement io.Seeker where the backing store allows it; encrypted streams
// use it for random access.
type Directory interface {
	OpenEntry(name string) (io.ReadCloser, error)
	// CreateEntry replaces any existing entry once the returned writer is
	// closed successfully.
	CreateEntry(name string) (EntryWriter, error)
	HasEntry(name string) bool
}

// EntryWriter stages the content of one entry. Close publishes it; Abort
// drops the staged bytes and leaves any existing entry untouched.
type EntryWriter interface {
	io.WriteCloser
	Abort() error
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`+"\x00") {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}
