package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recorder tracks stage completion order under a lock.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) done(id string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, id)
		return nil
	}
}

func (r *recorder) indexOf(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestExecutor_RespectsDependencyOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	rec := &recorder{}
	g := NewGraph()
	for _, id := range []string{"load", "classify", "correlate", "export"} {
		require.NoError(t, g.AddNode(id, rec.done(id)))
	}
	require.NoError(t, g.AddEdge("load", "classify"))
	require.NoError(t, g.AddEdge("load", "correlate"))
	require.NoError(t, g.AddEdge("classify", "export"))
	require.NoError(t, g.AddEdge("correlate", "export"))

	// --- Act ---
	err := NewExecutor(g, 4, nil).Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, rec.order, 4)
	require.Equal(t, 0, rec.indexOf("load"))
	require.Greater(t, rec.indexOf("export"), rec.indexOf("classify"))
	require.Greater(t, rec.indexOf("export"), rec.indexOf("correlate"))
	for _, node := range g.Nodes {
		require.Equal(t, Done, node.State())
	}
}

func TestExecutor_FailureSkipsDependents(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	rec := &recorder{}
	injected := errors.New("manifest unreadable")
	g := NewGraph()
	require.NoError(t, g.AddNode("load", func(ctx context.Context) error { return injected }))
	require.NoError(t, g.AddNode("classify", rec.done("classify")))
	require.NoError(t, g.AddNode("export", rec.done("export")))
	require.NoError(t, g.AddEdge("load", "classify"))
	require.NoError(t, g.AddEdge("classify", "export"))

	// --- Act ---
	err := NewExecutor(g, 2, nil).Run(context.Background())

	// --- Assert ---
	require.Error(t, err)
	require.ErrorIs(t, err, injected)
	require.Contains(t, err.Error(), "load", "the root cause names the failed stage")
	require.NotContains(t, err.Error(), "classify", "skipped stages are symptoms, not causes")

	require.Equal(t, -1, rec.indexOf("classify"))
	require.Equal(t, -1, rec.indexOf("export"))
	require.Equal(t, Failed, g.Nodes["classify"].State())
	require.Equal(t, Failed, g.Nodes["export"].State())
}

func TestExecutor_EmitsEvents(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var mu sync.Mutex
	var events []Event
	onEvent := func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}
	g := NewGraph()
	require.NoError(t, g.AddNode("load", noop))

	// --- Act ---
	err := NewExecutor(g, 1, onEvent).Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Event{
		{Stage: "load", State: "running"},
		{Stage: "load", State: "done"},
	}, events)
}

func TestExecutor_RejectsCyclicGraph(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	require.NoError(t, g.AddNode("a", noop))
	require.NoError(t, g.AddNode("b", noop))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "a"))

	err := NewExecutor(g, 1, nil).Run(context.Background())

	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid stage graph")
}
