package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context) error { return nil }

func TestAddNode_DuplicateIsAnError(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	require.NoError(t, g.AddNode("load", noop))

	err := g.AddNode("load", noop)

	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate node")
}

func TestAddEdge_Validation(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	require.NoError(t, g.AddNode("load", noop))
	require.NoError(t, g.AddNode("classify", noop))

	require.Error(t, g.AddEdge("load", "load"), "self edge")
	require.Error(t, g.AddEdge("missing", "classify"), "missing source")
	require.Error(t, g.AddEdge("load", "missing"), "missing destination")

	require.NoError(t, g.AddEdge("load", "classify"))
	require.Equal(t, int32(1), g.Nodes["classify"].depCount.Load())

	// The same edge twice is idempotent.
	require.NoError(t, g.AddEdge("load", "classify"))
	require.Equal(t, int32(1), g.Nodes["classify"].depCount.Load())
}

func TestDetectCycles(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddNode(id, noop))
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.DetectCycles())

	require.NoError(t, g.AddEdge("c", "a"))
	err := g.DetectCycles()

	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle detected")
}
