// Package storage defines the error conditions repositories report to services.
package storage

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")

	// ErrNotFound indicates the target of an operation (video, comment,
	// tweet, channel) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a unique constraint prevented an insert.
	// The toggle engine relies on it to resolve concurrent duplicate writes.
	ErrDuplicate = errors.New("duplicate record")
)
