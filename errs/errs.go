// Package errs defines the sentinel errors returned by the hugetable storage
// core.
//
// Callers match a specific failure with errors.Is, e.g.:
//
//	row, ok, err := table.Get(pk)
//	if errors.Is(err, errs.ErrFileIntegrity) {
//	    // the on-disk buffer is corrupt or was written by an incompatible version
//	}
//
// Errors from the filesystem boundary (open, write, flush, mmap) are wrapped
// as ErrIO with the underlying error attached via %w so errors.Is/As still
// reach the original *os.PathError or similar. Programming-contract
// violations (a null primary-key column, mismatched schemas passed to
// Merge, a ColumnID above the 64-column limit) are not represented as
// errors at all: they panic immediately, since the core treats them as
// caller bugs rather than recoverable conditions.
package errs

import "errors"

var (
	// ErrIO wraps a failure at the filesystem boundary: open, write, flush, or mmap.
	ErrIO = errors.New("hugetable: i/o error")

	// ErrFileIntegrity indicates a well-formed-buffer invariant was violated while
	// decoding a row or SSTable file: an unexpected end of buffer, an unknown
	// column id, or a value that doesn't match its declared column type.
	ErrFileIntegrity = errors.New("hugetable: file integrity error")

	// ErrColumnNotFound is returned by TableSchema.Column when no column with
	// the given id is declared in the schema.
	ErrColumnNotFound = errors.New("hugetable: column not found")

	// ErrSchemaMismatch names an operation given two values that are required
	// to share a schema but don't. No function in this module returns it:
	// row.View.Merge and tombstone.PartialClusterKey.CompareTo panic on a
	// schema mismatch instead.
	ErrSchemaMismatch = errors.New("hugetable: schema mismatch")

	// ErrRowNotFound names a lookup by primary key that found no row. No
	// function in this module returns it: memtable, SSTable and table lookups
	// report a miss with a false ok result and a nil error.
	ErrRowNotFound = errors.New("hugetable: row not found")

	// ErrNotCommitted is returned by Open when an SSTable's index file is
	// missing, meaning the table was never fully flushed (or a crash happened
	// between writing the data file and the index file).
	ErrNotCommitted = errors.New("hugetable: sstable not committed")
)
