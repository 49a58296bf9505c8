// Package layout centralizes on-disk path computation for an fsfs
// repository, grounded on the internal-path helpers in
// butonic-reva's decomposedfs (fs.lu.InternalPath and friends): one
// function per path shape, never ad-hoc string concatenation at the
// call site.
package layout

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Layout computes every path fsfs reads or writes, relative to a
// repository root.
type Layout struct {
	Root           string
	MaxFilesPerDir int64
}

// New returns a Layout rooted at root.
func New(root string, maxFilesPerDir int64) Layout {
	return Layout{Root: root, MaxFilesPerDir: maxFilesPerDir}
}

func (l Layout) db(parts ...string) string {
	return filepath.Join(append([]string{l.Root, "db"}, parts...)...)
}

// Shard returns the shard number containing revision rev.
func (l Layout) Shard(rev int64) int64 { return rev / l.MaxFilesPerDir }

// CurrentPath is db/current.
func (l Layout) CurrentPath() string { return l.db("current") }

// FormatPath is db/format.
func (l Layout) FormatPath() string { return l.db("format") }

// FSTypePath is db/fs-type.
func (l Layout) FSTypePath() string { return l.db("fs-type") }

// MinUnpackedRevPath is db/min-unpacked-rev.
func (l Layout) MinUnpackedRevPath() string { return l.db("min-unpacked-rev") }

// RevpropGenerationPath is db/revprop-generation.
func (l Layout) RevpropGenerationPath() string { return l.db("revprop-generation") }

// UUIDPath is db/uuid.
func (l Layout) UUIDPath() string { return l.db("uuid") }

// TxnCurrentPath is db/txn-current.
func (l Layout) TxnCurrentPath() string { return l.db("txn-current") }

// TxnCurrentLockPath is db/txn-current-lock.
func (l Layout) TxnCurrentLockPath() string { return l.db("txn-current-lock") }

// WriteLockPath is db/write-lock.
func (l Layout) WriteLockPath() string { return l.db("write-lock") }

// RevFilePath is db/revs/<S>/<R>, the unpacked revision file for rev.
func (l Layout) RevFilePath(rev int64) string {
	return l.db("revs", strconv.FormatInt(l.Shard(rev), 10), strconv.FormatInt(rev, 10))
}

// ShardDir is db/revs/<S>, the directory holding a shard's unpacked
// revision files.
func (l Layout) ShardDir(shard int64) string {
	return l.db("revs", strconv.FormatInt(shard, 10))
}

// PackDir is db/revs/<S>.pack, the directory holding a packed shard.
func (l Layout) PackDir(shard int64) string {
	return l.db("revs", strconv.FormatInt(shard, 10)+".pack")
}

// PackFilePath is db/revs/<S>.pack/pack.
func (l Layout) PackFilePath(shard int64) string {
	return filepath.Join(l.PackDir(shard), "pack")
}

// PackManifestPath is db/revs/<S>.pack/manifest (physical-addressing
// mode only).
func (l Layout) PackManifestPath(shard int64) string {
	return filepath.Join(l.PackDir(shard), "manifest")
}

// RevpropDir is db/revprops/<S>, the directory for a shard's unpacked
// revprop files.
func (l Layout) RevpropDir(shard int64) string {
	return l.db("revprops", strconv.FormatInt(shard, 10))
}

// RevpropPath is db/revprops/<S>/<R>, the unpacked revprop file.
func (l Layout) RevpropPath(rev int64) string {
	return filepath.Join(l.RevpropDir(l.Shard(rev)), strconv.FormatInt(rev, 10))
}

// RevpropPackDir is db/revprops/<S>.pack.
func (l Layout) RevpropPackDir(shard int64) string {
	return l.db("revprops", strconv.FormatInt(shard, 10)+".pack")
}

// RevpropManifestPath is db/revprops/<S>.pack/manifest.
func (l Layout) RevpropManifestPath(shard int64) string {
	return filepath.Join(l.RevpropPackDir(shard), "manifest")
}

// RevpropPackFilePath is db/revprops/<S>.pack/<first-rev>.<sequence>.
func (l Layout) RevpropPackFilePath(shard int64, firstRev int64, sequence int) string {
	name := strconv.FormatInt(firstRev, 10) + "." + strconv.Itoa(sequence)
	return filepath.Join(l.RevpropPackDir(shard), name)
}

// TxnDir is db/transactions/<R>-<seq>.txn.
func (l Layout) TxnDir(baseRev int64, seq string) string {
	return l.db("transactions", strconv.FormatInt(baseRev, 10)+"-"+seq+".txn")
}

// ProtoRevPath is the proto-rev staging file for an in-progress
// transaction directory.
func (l Layout) ProtoRevPath(txnDir string) string {
	return filepath.Join(txnDir, "rev")
}

// ProtoL2PPath is the proto-L2P staging file.
func (l Layout) ProtoL2PPath(txnDir string) string {
	return filepath.Join(txnDir, "rev-l2p")
}

// ProtoP2LPath is the proto-P2L staging file.
func (l Layout) ProtoP2LPath(txnDir string) string {
	return filepath.Join(txnDir, "rev-p2l")
}

// CanonicalPath defines the single canonical form every repository
// path takes once it enters fsfs: a leading "/", no trailing slash
// (except the root itself), no empty segments, and "." / ".."
// segments resolved away. Unlike the source's svn_path_canonicalize_nts,
// which the original author's own comment admits "does not fully
// canonicalize" unusual inputs, this function always produces that
// form. Nothing outside this package calls it: paths recorded
// elsewhere in the module (a node-revision's CreatedPath, for
// instance) are stored as given, without canonicalization.
func CanonicalPath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := filepath.ToSlash(filepath.Clean("/" + p))
	if cleaned == "." {
		return "/"
	}
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	if len(cleaned) > 1 && strings.HasSuffix(cleaned, "/") {
		cleaned = strings.TrimRight(cleaned, "/")
	}
	return cleaned
}
