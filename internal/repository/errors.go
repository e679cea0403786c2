// Package repository holds the MySQL-backed stores.  The sentinel errors
// below let the service layer tell "nothing there" and "state changed under
// you" apart from plain driver failures.
package repository

import "errors"

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional write found the row in a
// different state than the caller expected.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")
