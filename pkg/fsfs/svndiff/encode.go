package svndiff

const minMatchLength = 4

// EncodeWindow produces a single window that reconstructs target
// given source as its entire source view, using a greedy
// longest-match search anchored on 4-byte prefixes. It is not a
// maximal compressor, but every byte of target is accounted for by
// either a copy-from-source op or literal new data, satisfying the
// "copy-ops+new-data" contract documented in spec.md §4.1.
func EncodeWindow(source, target []byte) Window {
	index := indexFourGrams(source)

	w := Window{
		SourceViewOffset: 0,
		SourceViewLength: uint64(len(source)),
		TargetLength:     uint64(len(target)),
	}

	var literalStart int
	flushLiteral := func(end int) {
		if end > literalStart {
			w.Ops = append(w.Ops, Op{Kind: OpInsert, Length: uint64(end - literalStart)})
			w.NewData = append(w.NewData, target[literalStart:end]...)
		}
	}

	i := 0
	for i < len(target) {
		if i+minMatchLength > len(target) {
			i++
			continue
		}
		key := fourGramKey(target[i:])
		bestLen, bestOff := 0, 0
		for _, candidate := range index[key] {
			l := matchLength(source[candidate:], target[i:])
			if l > bestLen {
				bestLen, bestOff = l, candidate
			}
		}
		if bestLen >= minMatchLength {
			flushLiteral(i)
			w.Ops = append(w.Ops, Op{Kind: OpCopySource, Offset: uint64(bestOff), Length: uint64(bestLen)})
			i += bestLen
			literalStart = i
			continue
		}
		i++
	}
	flushLiteral(len(target))
	return w
}

// EncodeStream splits target into chunks of at most windowSize bytes
// and encodes each as its own window against the full source,
// producing the "stream of windows" spec.md §4.1 describes.
func EncodeStream(source, target []byte, windowSize int) []Window {
	if windowSize <= 0 {
		windowSize = len(target)
		if windowSize == 0 {
			windowSize = 1
		}
	}
	var windows []Window
	for off := 0; off < len(target); off += windowSize {
		end := off + windowSize
		if end > len(target) {
			end = len(target)
		}
		windows = append(windows, EncodeWindow(source, target[off:end]))
	}
	if len(windows) == 0 {
		windows = append(windows, EncodeWindow(source, nil))
	}
	return windows
}

func fourGramKey(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func indexFourGrams(b []byte) map[uint32][]int {
	idx := make(map[uint32][]int)
	for i := 0; i+minMatchLength <= len(b); i++ {
		key := fourGramKey(b[i:])
		// Cap the candidate list per key to keep worst-case matching
		// bounded on pathological repetitive input.
		if len(idx[key]) < 32 {
			idx[key] = append(idx[key], i)
		}
	}
	return idx
}

func matchLength(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
