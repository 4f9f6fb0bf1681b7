// Package repository holds the SQL access layer. Sentinel errors defined here
// let the service layer tell expected outcomes from storage failures.
package repository

import "errors"

// ErrNotFound is returned when a point lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert violates the unique email
// index. Callers treat it the same as a failed existence check.
var ErrEmailExists = errors.New("email already exists")
