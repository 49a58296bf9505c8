// Package pack implements the pack engine that coalesces one shard's
// worth of unpacked revisions into a single pack file with fresh,
// relocality-ordered indexes, grounded on spec.md §4.7 and
// original_source's subversion/libsvn_fs_fs/pack.c.
//
// The plan/classify/order/emit/build-indexes pipeline here operates
// on an already-decoded in-memory item set (SourceItem); the
// surrounding repository layer is responsible for the "Plan" step of
// reading each unpacked revision's P2L index to produce that set, and
// for the "Install" step of renaming the finished pack file into
// place and deleting the superseded per-revision files, both of which
// need real filesystem access this package deliberately stays free of
// so its core ordering logic can be tested without a disk.
package pack

import (
	"sort"

	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/apache/subversion-sub028/pkg/fsfs/l2p"
	"github.com/apache/subversion-sub028/pkg/fsfs/p2l"
)

// SourceItem is one item read out of an unpacked revision, along with
// enough decoded structure for the Order step to cluster related
// items for locality.
type SourceItem struct {
	Ref  item.Ref
	Type item.Type
	Raw  []byte

	// DataRep and PropRep are the node-revision's representation
	// pointers, populated only when Type is TypeNodeRev.
	DataRep item.Ref
	PropRep item.Ref

	// DeltaBase is the representation's delta base pointer, populated
	// only when Type is TypeFileRep, TypeDirRep, or TypeGenericRep and
	// the representation is a delta (zero value for a plain rep).
	DeltaBase item.Ref

	// RootOfRevision is true for the single node-revision that is a
	// revision's tree root, the seed the Order step's first pass walks
	// from.
	RootOfRevision bool
}

// byKey indexes SourceItems by their item reference for fast
// traversal during the Order step's tree walk.
type byKey map[item.Ref]SourceItem

func index(items []SourceItem) byKey {
	m := make(byKey, len(items))
	for _, it := range items {
		m[it.Ref] = it
	}
	return m
}

// Classified holds a shard's items split into four scratch streams:
// changes, file-props, dir-props, and a combined reps-and-noderevs
// stream (kept together because Order's topological
// pass interleaves them by dependency, not by type).
type Classified struct {
	Changes     []SourceItem
	FileProps   []SourceItem
	DirProps    []SourceItem
	RepsAndRevs []SourceItem
}

// Classify distributes items into Classified's streams by Type.
func Classify(items []SourceItem) Classified {
	var c Classified
	for _, it := range items {
		switch it.Type {
		case item.TypeChangedPaths:
			c.Changes = append(c.Changes, it)
		case item.TypeFileProps:
			c.FileProps = append(c.FileProps, it)
		case item.TypeDirProps:
			c.DirProps = append(c.DirProps, it)
		case item.TypeNodeRev, item.TypeFileRep, item.TypeDirRep, item.TypeGenericRep:
			c.RepsAndRevs = append(c.RepsAndRevs, it)
		}
	}
	return c
}

func sortByRevDescItemAsc(items []SourceItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Ref.Revision != items[j].Ref.Revision {
			return items[i].Ref.Revision > items[j].Ref.Revision
		}
		return items[i].Ref.ItemNumber < items[j].Ref.ItemNumber
	})
}

// OrderScalarStreams sorts the changes/file-props/dir-props streams
// by decreasing revision then increasing item-number, per spec.md
// §4.7 step 3.
func OrderScalarStreams(c *Classified) {
	sortByRevDescItemAsc(c.Changes)
	sortByRevDescItemAsc(c.FileProps)
	sortByRevDescItemAsc(c.DirProps)
}

// OrderRepsAndNodeRevs implements the two/three-pass topological
// placement of spec.md §4.7 step 3: first pass walks each revision's
// root node-revision (SourceItem.RootOfRevision) and its data-rep
// delta chain in reverse-revision order; second pass recursively
// follows directory entries via emitChildren; third pass sweeps any
// leftovers in their original relative order, so nothing is dropped
// even if the dependency walk cannot reach every item.
//
// emitChildren lets the caller supply each node-revision's directory
// children (by item.Ref) without this package needing to parse
// item.DirEntry itself; it returns nil for file nodes or nodes whose
// children are not relevant to ordering.
func OrderRepsAndNodeRevs(items []SourceItem, emitChildren func(nodeRevRef item.Ref) []item.Ref) []SourceItem {
	byRef := index(items)
	visited := make(map[item.Ref]bool, len(items))
	var ordered []SourceItem

	var walkChain func(ref item.Ref)
	walkChain = func(ref item.Ref) {
		it, ok := byRef[ref]
		if !ok || visited[ref] {
			return
		}
		visited[ref] = true
		ordered = append(ordered, it)
		if !it.DeltaBase.IsNone() {
			walkChain(it.DeltaBase)
		}
	}

	var roots []SourceItem
	for _, it := range items {
		if it.RootOfRevision {
			roots = append(roots, it)
		}
	}
	sortByRevDescItemAsc(roots)

	// First pass: each revision's root node-revision and its data-rep
	// delta chain, latest revision first.
	for _, root := range roots {
		if visited[root.Ref] {
			continue
		}
		visited[root.Ref] = true
		ordered = append(ordered, root)
		if !root.DataRep.IsNone() {
			walkChain(root.DataRep)
		}
		if !root.PropRep.IsNone() {
			walkChain(root.PropRep)
		}
	}

	// Second pass: recursively follow directory entries from each
	// visited root, emitting each child's node-revision and rep
	// chains before moving to the next sibling.
	var walkTree func(ref item.Ref)
	walkTree = func(ref item.Ref) {
		if emitChildren == nil {
			return
		}
		for _, childRef := range emitChildren(ref) {
			child, ok := byRef[childRef]
			if !ok || visited[childRef] {
				continue
			}
			visited[childRef] = true
			ordered = append(ordered, child)
			if !child.DataRep.IsNone() {
				walkChain(child.DataRep)
			}
			if !child.PropRep.IsNone() {
				walkChain(child.PropRep)
			}
			walkTree(childRef)
		}
	}
	for _, root := range roots {
		walkTree(root.Ref)
	}

	// Third pass: sweep anything not yet emitted, in original order.
	for _, it := range items {
		if !visited[it.Ref] {
			visited[it.Ref] = true
			ordered = append(ordered, it)
		}
	}

	return ordered
}

// Emission is the result of the Emit step: the pack file's item
// region bytes plus, for every original item reference, the offset it
// landed at.
type Emission struct {
	Data       []byte
	NewOffsets map[item.Ref]int64
	// Order records emission order, needed by BuildIndexes to produce
	// P2L entries and the checksum/type/size metadata alongside them.
	Order []SourceItem
}

// Emit concatenates items from the four streams in the fixed order
// spec.md §4.7 step 4 names (changes, file-props, dir-props,
// reps/node-revs), applying the P2L boundary padding policy between
// items.
func Emit(c Classified, orderedRepsAndRevs []SourceItem, blockSize int64, boundaryWaste int64) Emission {
	var streams []SourceItem
	streams = append(streams, c.Changes...)
	streams = append(streams, c.FileProps...)
	streams = append(streams, c.DirProps...)
	streams = append(streams, orderedRepsAndRevs...)

	em := Emission{NewOffsets: make(map[item.Ref]int64, len(streams))}
	var offset int64
	for _, it := range streams {
		start, padLen := p2l.PlaceItem(blockSize, boundaryWaste, offset, int64(len(it.Raw)))
		if padLen > 0 {
			em.Data = append(em.Data, make([]byte, padLen)...)
			offset += padLen
		}
		em.NewOffsets[it.Ref] = start
		em.Data = append(em.Data, it.Raw...)
		offset = start + int64(len(it.Raw))
		em.Order = append(em.Order, it)
	}
	return em
}

// BuildIndexes constructs the pack file's P2L index from the emission
// order (spec.md §4.7 step 5, "P2L entries from the emission order")
// and its L2P index by iterating all items for revisions
// [firstRev, firstRev+count) in (revision-ascending,
// item-number-ascending) order and recording their new offsets.
func BuildIndexes(em Emission, checksums map[item.Ref]uint32, blockSize int64, baseRevision int64, l2pEntriesPerPage int, firstRev int64, count int64) (*p2l.Index, *l2p.Index) {
	p2lIdx := p2l.NewIndex(blockSize, baseRevision)
	for _, it := range em.Order {
		off := em.NewOffsets[it.Ref]
		p2lIdx.AddEntry(p2l.Entry{
			Offset:     off,
			Size:       int64(len(it.Raw)),
			Type:       it.Type,
			Revision:   it.Ref.Revision,
			ItemNumber: it.Ref.ItemNumber,
			Checksum:   checksums[it.Ref],
		})
	}

	byRev := map[int64]map[uint64]int64{}
	var maxItemNumber = map[int64]uint64{}
	for ref, off := range em.NewOffsets {
		m, ok := byRev[ref.Revision]
		if !ok {
			m = map[uint64]int64{}
			byRev[ref.Revision] = m
		}
		m[ref.ItemNumber] = off
		if ref.ItemNumber > maxItemNumber[ref.Revision] {
			maxItemNumber[ref.Revision] = ref.ItemNumber
		}
	}

	l2pIdx := l2p.NewIndex(firstRev, l2pEntriesPerPage)
	for rev := firstRev; rev < firstRev+count; rev++ {
		offsets := make([]int64, maxItemNumber[rev])
		for n, off := range byRev[rev] {
			offsets[n-1] = off
		}
		l2pIdx.AddRevision(offsets)
	}
	return p2lIdx, l2pIdx
}
