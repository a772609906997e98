// Package repository provides the durable backends that hold the schedule
// blob.  Every backend stores the whole schedule as one JSON document under
// one key and overwrites it on every write; there is no versioning.
package repository

import "errors"

// ErrBlobNotFound is returned by Read when nothing has been stored under
// the key yet.  Callers treat it as an empty schedule.
var ErrBlobNotFound = errors.New("blob not found")
