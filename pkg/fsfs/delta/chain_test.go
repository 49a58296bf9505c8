package delta

import (
	"bytes"
	"testing"

	"github.com/apache/subversion-sub028/pkg/fsfs/item"
	"github.com/apache/subversion-sub028/pkg/fsfs/svndiff"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	reps map[item.Ref]item.Representation
	raw  map[item.Ref][]byte
}

func (f *fakeSource) FetchRepresentation(ref item.Ref) (item.Representation, []byte, error) {
	return f.reps[ref], f.raw[ref], nil
}

func encodeWindowBytes(t *testing.T, source, target []byte) []byte {
	t.Helper()
	w := svndiff.EncodeWindow(source, target)
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReconstructPlain(t *testing.T) {
	rep := item.Representation{Kind: item.RepPlain, Size: 5}
	got, err := Reconstruct(nil, rep, []byte("hello"), 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestReconstructSingleDelta(t *testing.T) {
	base := []byte("hello world")
	target := []byte("hello there, world")

	baseRef := item.Ref{Revision: 1, ItemNumber: 3}
	src := &fakeSource{
		reps: map[item.Ref]item.Representation{
			baseRef: {Kind: item.RepPlain, Size: uint64(len(base))},
		},
		raw: map[item.Ref][]byte{
			baseRef: base,
		},
	}

	deltaRep := item.Representation{Kind: item.RepDelta, Base: baseRef, ExpandedSize: uint64(len(target))}
	raw := encodeWindowBytes(t, base, target)

	got, err := Reconstruct(src, deltaRep, raw, 0)
	require.NoError(t, err)
	require.Equal(t, target, got)
}

func TestReconstructChain(t *testing.T) {
	v1 := []byte("revision one contents")
	v2 := []byte("revision two contents, a bit longer")
	v3 := []byte("revision three contents, longer still")

	v1Ref := item.Ref{Revision: 1, ItemNumber: 3}
	v2Ref := item.Ref{Revision: 2, ItemNumber: 3}

	src := &fakeSource{
		reps: map[item.Ref]item.Representation{
			v1Ref: {Kind: item.RepPlain, Size: uint64(len(v1))},
			v2Ref: {Kind: item.RepDelta, Base: v1Ref, ExpandedSize: uint64(len(v2))},
		},
		raw: map[item.Ref][]byte{
			v1Ref: v1,
			v2Ref: encodeWindowBytes(t, v1, v2),
		},
	}

	v3Rep := item.Representation{Kind: item.RepDelta, Base: v2Ref, ExpandedSize: uint64(len(v3))}
	v3Raw := encodeWindowBytes(t, v2, v3)

	got, err := Reconstruct(src, v3Rep, v3Raw, 0)
	require.NoError(t, err)
	require.Equal(t, v3, got)
}

func TestReconstructChainTooLong(t *testing.T) {
	deltaRep := item.Representation{Kind: item.RepDelta, Base: item.Ref{Revision: 1, ItemNumber: 1}}
	src := &fakeSource{
		reps: map[item.Ref]item.Representation{
			{Revision: 1, ItemNumber: 1}: {Kind: item.RepDelta, Base: item.Ref{Revision: 1, ItemNumber: 1}},
		},
		raw: map[item.Ref][]byte{},
	}
	_, err := Reconstruct(src, deltaRep, nil, 2)
	require.Error(t, err)
}
