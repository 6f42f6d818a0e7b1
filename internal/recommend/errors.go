// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package recommend

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the build pipeline and query engine. Callers
// classify failures with errors.Is / errors.As; the HTTP layer maps them to
// status codes.
var (
	// ErrNotFound indicates a title or genre that resolves to no corpus row.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a malformed query parameter, such as a
	// blank title or non-positive result count.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyDataset indicates a build run whose source yielded zero
	// usable movie records after cleaning.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrNotLoaded indicates a query against an engine whose dataset load
	// has not succeeded.
	ErrNotLoaded = errors.New("dataset not loaded")
)

// DataSourceError wraps failures reading or parsing the raw movie source.
type DataSourceError struct {
	// Source identifies the failing input, typically a file path.
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// IntegrityError indicates a persisted artifact set that is internally
// inconsistent: checksum mismatches, shape disagreements between the matrix
// and the corpus, or title index entries pointing outside the corpus. An
// integrity failure always fails the load; artifacts are never partially
// accepted.
type IntegrityError struct {
	// Artifact names the artifact that failed validation.
	Artifact string

	// Reason describes the inconsistency.
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("artifact %s: integrity check failed: %s", e.Artifact, e.Reason)
}
