package svndiff

// DecodeStream reconstructs the full target byte stream by applying
// windows in order against a single source view, threading the
// growing target through each window so OpCopyTarget references can
// reach back across window boundaries.
func DecodeStream(windows []Window, source []byte) ([]byte, error) {
	target := make([]byte, 0, len(source))
	for _, w := range windows {
		chunk, err := Apply(w, source, target)
		if err != nil {
			return nil, err
		}
		target = append(target, chunk...)
	}
	return target, nil
}
