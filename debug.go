package arbor

import (
	"fmt"
	"os"
	"time"
)

// Debug-mode thresholds. Deep trees and huge child lists usually mean a
// runaway dialog or rope spawner, so flag them early.
const (
	debugMaxTreeDepth  = 32
	debugMaxChildCount = 1000
)

// debugStats collects per-frame timing and draw-call metrics. Populated only
// when Scene.debug is on.
type debugStats struct {
	traverseTime, sortTime   time.Duration
	batchTime, submitTime    time.Duration
	commandCount, batchCount int
	drawCallCount            int
}

func (s *Scene) debugLog(stats debugStats) {
	if !s.debug {
		return
	}

	total := stats.traverseTime + stats.sortTime + stats.batchTime + stats.submitTime
	_, _ = fmt.Fprintf(os.Stderr,
		"[arbor] traverse: %v | sort: %v | batch: %v | submit: %v | total: %v\n"+
			"[arbor] commands: %d | batches: %d | draw calls: %d\n",
		stats.traverseTime, stats.sortTime, stats.batchTime, stats.submitTime, total,
		stats.commandCount, stats.batchCount, stats.drawCallCount)
}

// debugCheckDisposed panics when a tree operation touches a disposed node.
// Callers gate on debug mode; release builds skip the check entirely.
func debugCheckDisposed(n *Node, op string) {
	if n.disposed {
		panic(fmt.Sprintf("arbor debug: %s on disposed node %q (ID was %d)", op, n.Name, n.ID))
	}
}

func debugCheckTreeDepth(n *Node) {
	var depth int
	for p := n; p != nil; p = p.Parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		_, _ = fmt.Fprintf(os.Stderr, "[arbor] warning: tree depth %d exceeds %d (node %q)\n",
			depth, debugMaxTreeDepth, n.Name)
	}
}

func debugCheckChildCount(n *Node) {
	if len(n.children) > debugMaxChildCount {
		_, _ = fmt.Fprintf(os.Stderr, "[arbor] warning: node %q has %d children (threshold %d)\n",
			n.Name, len(n.children), debugMaxChildCount)
	}
}

// countBatches reports how many contiguous same-key groups the sorted
// command list contains, i.e. the draw calls an ideal batcher would issue.
func countBatches(commands []RenderCommand) int {
	if len(commands) == 0 {
		return 0
	}
	count, prev := 1, commandBatchKey(&commands[0])
	for i := range commands[1:] {
		if key := commandBatchKey(&commands[i+1]); key != prev {
			prev = key
			count++
		}
	}
	return count
}

// countDrawCalls models the immediate submit path: one call per sprite or
// mesh, one per alive particle.
func countDrawCalls(commands []RenderCommand) int {
	count := 0
	for i := range commands {
		cmd := &commands[i]
		if cmd.Type == CommandParticle {
			if cmd.emitter != nil {
				count += cmd.emitter.alive
			}
			continue
		}
		count++
	}
	return count
}

// countDrawCallsCoalesced models the coalesced submit path: a run of
// same-key atlas sprites collapses to one call; direct images, meshes, and
// particle emitters each issue their own.
func countDrawCallsCoalesced(commands []RenderCommand) int {
	count := 0
	inRun := false
	var runKey batchKey
	for i := range commands {
		cmd := &commands[i]
		if cmd.Type != CommandSprite || cmd.directImage != nil {
			inRun = false
			count++
			continue
		}
		key := commandBatchKey(cmd)
		if !inRun || key != runKey {
			runKey = key
			inRun = true
			count++
		}
	}
	return count
}
