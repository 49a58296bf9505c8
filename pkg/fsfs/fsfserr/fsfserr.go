// Package fsfserr contains the error taxonomy used by the fsfs core.
//
// It would have been nice to call this package errors, but that
// clashes with github.com/pkg/errors, which the rest of the module
// uses to wrap underlying causes.
package fsfserr

import "fmt"

// NoSuchRevision is returned when a revision has not been committed.
type NoSuchRevision int64

func (e NoSuchRevision) Error() string {
	return fmt.Sprintf("error: no such revision: %d", int64(e))
}

// IsNoSuchRevision implements the NoSuchRevision marker interface.
func (e NoSuchRevision) IsNoSuchRevision() {}

// NoSuchItem is returned when (revision, item-number) is not present
// in the L2P index.
type NoSuchItem struct {
	Revision   int64
	ItemNumber uint64
}

func (e NoSuchItem) Error() string {
	return fmt.Sprintf("error: no such item: (%d, %d)", e.Revision, e.ItemNumber)
}

// IsNoSuchItem implements the NoSuchItem marker interface.
func (e NoSuchItem) IsNoSuchItem() {}

// MalformedIndex is returned on VLQ decode failure, a footer checksum
// mismatch, or any other structural defect in an index.
type MalformedIndex string

func (e MalformedIndex) Error() string { return "error: malformed index: " + string(e) }

// IsMalformedIndex implements the MalformedIndex marker interface.
func (e MalformedIndex) IsMalformedIndex() {}

// CorruptRevFile is returned when an item's FNV-1a checksum does not
// match its stored bytes, or an item header fails to parse.
type CorruptRevFile struct {
	Revision   int64
	ItemNumber uint64
	Reason     string
}

func (e CorruptRevFile) Error() string {
	return fmt.Sprintf("error: corrupt rev file: (%d, %d): %s", e.Revision, e.ItemNumber, e.Reason)
}

// IsCorruptRevFile implements the CorruptRevFile marker interface.
func (e CorruptRevFile) IsCorruptRevFile() {}

// TxnOutOfDate is returned when a commit's base revision is older
// than the current youngest revision.
type TxnOutOfDate string

func (e TxnOutOfDate) Error() string { return "error: transaction out of date: " + string(e) }

// IsTxnOutOfDate implements the TxnOutOfDate marker interface.
func (e TxnOutOfDate) IsTxnOutOfDate() {}

// FormatUnsupported is returned at open time when the repository's
// format number exceeds what this implementation understands.
type FormatUnsupported int

func (e FormatUnsupported) Error() string {
	return fmt.Sprintf("error: format not supported: %d", int(e))
}

// IsFormatUnsupported implements the FormatUnsupported marker interface.
func (e FormatUnsupported) IsFormatUnsupported() {}

// LockTimeout is returned when the write lock could not be acquired
// within the configured timeout.
type LockTimeout string

func (e LockTimeout) Error() string { return "error: lock timeout: " + string(e) }

// IsLockTimeout implements the LockTimeout marker interface.
func (e LockTimeout) IsLockTimeout() {}

// RevpropWriteStale is returned internally when a reader observes an
// odd generation older than the configured timeout; it is recovered
// by bumping the generation rather than surfaced to the caller.
type RevpropWriteStale string

func (e RevpropWriteStale) Error() string { return "error: revprop write stale: " + string(e) }

// IsRevpropWriteStale implements the RevpropWriteStale marker interface.
func (e RevpropWriteStale) IsRevpropWriteStale() {}

// IOError wraps an underlying filesystem failure.
type IOError struct {
	Op  string
	Err error
}

func (e IOError) Error() string { return "error: io: " + e.Op + ": " + e.Err.Error() }

// IsIOError implements the IOError marker interface.
func (e IOError) IsIOError() {}

// Unwrap allows errors.Is/errors.As to see through IOError.
func (e IOError) Unwrap() error { return e.Err }

// IsNoSuchRevision is the interface to implement to specify that a
// revision has not been committed.
type IsNoSuchRevision interface{ IsNoSuchRevision() }

// IsNoSuchItem is the interface to implement to specify that an item
// reference could not be resolved.
type IsNoSuchItem interface{ IsNoSuchItem() }

// IsMalformedIndex is the interface to implement to specify that an
// index failed to decode.
type IsMalformedIndex interface{ IsMalformedIndex() }

// IsCorruptRevFile is the interface to implement to specify that
// stored item bytes do not match their recorded checksum or size.
type IsCorruptRevFile interface{ IsCorruptRevFile() }

// IsTxnOutOfDate is the interface to implement to specify that a
// transaction's base revision has been superseded.
type IsTxnOutOfDate interface{ IsTxnOutOfDate() }

// IsFormatUnsupported is the interface to implement to specify that a
// repository format is newer than this implementation understands.
type IsFormatUnsupported interface{ IsFormatUnsupported() }

// IsLockTimeout is the interface to implement to specify that the
// write lock could not be acquired in time.
type IsLockTimeout interface{ IsLockTimeout() }

// IsRevpropWriteStale is the interface to implement to specify that a
// revprop writer appears to have died mid-write.
type IsRevpropWriteStale interface{ IsRevpropWriteStale() }

// IsIOError is the interface to implement to specify that an
// underlying filesystem operation failed.
type IsIOError interface{ IsIOError() }
