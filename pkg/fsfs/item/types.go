// Package item implements the codec for the seven item kinds stored
// in a revision file: node-revisions, representations, changed-paths
// records, directory entries, and the property lists that back file
// and directory properties. Node-revisions and changed-paths are
// line-oriented "key: value" text records terminated by a blank line,
// grounded on the wire format documented in original_source's
// subversion/libsvn_fs_fs/fs_fs.h and util.c.
package item

import "fmt"

// Kind distinguishes a file node from a directory node.
type Kind int

const (
	// KindFile identifies a file node-revision.
	KindFile Kind = iota
	// KindDir identifies a directory node-revision.
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the text form used on the wire.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "file":
		return KindFile, nil
	case "dir":
		return KindDir, nil
	default:
		return 0, fmt.Errorf("item: unknown node kind %q", s)
	}
}

// Type identifies what a P2L entry's bytes contain. The zero value,
// TypeUnused, marks padding inserted by the block-boundary policy.
type Type int

const (
	TypeUnused Type = iota
	TypeFileRep
	TypeDirRep
	TypeFileProps
	TypeDirProps
	TypeNodeRev
	TypeChangedPaths
	TypeGenericRep
)

var typeNames = [...]string{
	TypeUnused:       "unused",
	TypeFileRep:      "file-rep",
	TypeDirRep:       "dir-rep",
	TypeFileProps:    "file-props",
	TypeDirProps:     "dir-props",
	TypeNodeRev:      "node-rev",
	TypeChangedPaths: "changed-paths",
	TypeGenericRep:   "generic-rep",
}

func (t Type) String() string {
	if int(t) >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType parses the text form used by dump-index/load-index.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("item: unknown item type %q", s)
}

// Ref is an item reference: a (revision, item-number) pair. Item
// number 1 is reserved for a revision's changed-paths record, 2 for
// its root node-revision, and 0 means "unused".
type Ref struct {
	Revision   int64
	ItemNumber uint64
}

func (r Ref) String() string {
	return fmt.Sprintf("(%d,%d)", r.Revision, r.ItemNumber)
}

// IsNone reports whether r is the zero reference, used where a
// pointer field (e.g. a node-revision with no property
// representation) is absent.
func (r Ref) IsNone() bool { return r == Ref{} }

// NodeID identifies a node's identity across history: a node-number
// together with the copy-number and txn-or-revision that minted it.
// Distinct from a node-revision, which is one version of that node.
type NodeID struct {
	Node string
	Copy string
	// TxnOrRev is either a transaction id (during a commit in
	// progress) or a committed revision number rendered as text.
	TxnOrRev string
}

func (n NodeID) String() string {
	return n.Node + "." + n.Copy + "." + n.TxnOrRev
}

// IsNone reports whether n is the zero NodeID.
func (n NodeID) IsNone() bool { return n == NodeID{} }

// ChangeKind enumerates how a path was affected in the changed-paths
// record of a revision, as named by svn_fs_fs__add_change in
// original_source.
type ChangeKind int

const (
	ChangeModify ChangeKind = iota
	ChangeAdd
	ChangeDelete
	ChangeReplace
	ChangeReset
)

var changeKindNames = [...]string{
	ChangeModify:  "modify",
	ChangeAdd:     "add",
	ChangeDelete:  "delete",
	ChangeReplace: "replace",
	ChangeReset:   "reset",
}

func (k ChangeKind) String() string {
	if int(k) >= 0 && int(k) < len(changeKindNames) {
		return changeKindNames[k]
	}
	return fmt.Sprintf("change(%d)", int(k))
}

// ParseChangeKind parses the text form used on the wire.
func ParseChangeKind(s string) (ChangeKind, error) {
	for i, name := range changeKindNames {
		if name == s {
			return ChangeKind(i), nil
		}
	}
	return 0, fmt.Errorf("item: unknown change kind %q", s)
}
