package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vk/bundlescope/internal/ctxlog"
)

// Event is a stage progress notification delivered to the observer.
type Event struct {
	Stage string `json:"stage"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Executor drives a Graph with a fixed pool of workers.
type Executor struct {
	graph      *Graph
	numWorkers int
	onEvent    func(Event)
	wg         sync.WaitGroup
}

// NewExecutor creates an executor. onEvent may be nil when nobody is
// watching progress.
func NewExecutor(graph *Graph, numWorkers int, onEvent func(Event)) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Executor{graph: graph, numWorkers: numWorkers, onEvent: onEvent}
}

// notify delivers a progress event for a node's current state.
func (e *Executor) notify(node *Node) {
	if e.onEvent == nil {
		return
	}
	ev := Event{Stage: node.ID, State: node.State().String()}
	if node.Err != nil {
		ev.Error = node.Err.Error()
	}
	e.onEvent(ev)
}

// Run executes the entire graph concurrently and returns an error if any
// node fails. It respects the cancellation signal from the provided context.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	if err := e.graph.DetectCycles(); err != nil {
		return fmt.Errorf("invalid stage graph: %w", err)
	}

	readyChan := make(chan *Node, len(e.graph.Nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Debug("Initializing executor, finding root nodes...")
	rootNodeCount := 0
	for _, node := range e.graph.Nodes {
		if node.depCount.Load() == 0 {
			logger.Debug("Found root node.", "nodeID", node.ID)
			readyChan <- node
			rootNodeCount++
		}
	}
	logger.Debug("Found all root nodes.", "count", rootNodeCount)

	e.wg.Add(len(e.graph.Nodes))

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	e.wg.Wait()
	close(readyChan)
	logger.Debug("All nodes completed.")

	var failedNodes []string
	var rootCauseError error
	for _, node := range e.graph.Nodes {
		if node.State() != Failed {
			continue
		}
		logger.Error("Stage failed.", "nodeID", node.ID, "error", node.Err)
		// A "skipped" error is a symptom, not a cause.
		if node.Err != nil && !strings.HasPrefix(node.Err.Error(), "skipped") && !errors.Is(node.Err, context.Canceled) {
			failedNodes = append(failedNodes, node.ID)
			if rootCauseError == nil {
				rootCauseError = node.Err
			}
		}
	}

	if rootCauseError != nil {
		return fmt.Errorf("extraction failed at %s: %w", strings.Join(failedNodes, ", "), rootCauseError)
	}
	return nil
}

// skipDependents recursively marks all downstream nodes as failed and
// settles their WaitGroup slots.
func (e *Executor) skipDependents(ctx context.Context, node *Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.Dependents {
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping dependent stage due to upstream failure.", "nodeID", dependent.ID, "dependency", node.ID)
			dependent.state.Store(int32(Failed))
			dependent.Err = fmt.Errorf("skipped due to upstream failure of '%s'", node.ID)
			e.notify(dependent)
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		})
	}
}

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *Node, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for node := range readyChan {
		workerLogger := logger.With("workerID", workerID, "nodeID", node.ID)

		if ctx.Err() != nil {
			node.skipOnce.Do(func() {
				workerLogger.Warn("Context canceled, skipping stage execution.")
				node.state.Store(int32(Failed))
				node.Err = ctx.Err()
				e.notify(node)
				e.wg.Done()
			})
			continue
		}

		workerLogger.Debug("Worker picked up stage for execution.")
		node.state.Store(int32(Running))
		e.notify(node)

		if err := node.Run(ctx); err != nil {
			workerLogger.Error("Stage execution failed.", "error", err)
			node.state.Store(int32(Failed))
			node.Err = err
			e.notify(node)
			cancel()
			e.skipDependents(ctx, node)
			e.wg.Done()
			continue
		}

		workerLogger.Debug("Stage execution succeeded.")
		node.state.Store(int32(Done))
		e.notify(node)

		for _, dependent := range node.Dependents {
			if dependent.depCount.Add(-1) == 0 {
				workerLogger.Debug("Unlocking dependent stage.", "dependentID", dependent.ID)
				readyChan <- dependent
			}
		}

		e.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}
