// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// graph.go implements the two-lane DAG executor that schedules pipeline
// stages. Stages enqueue nodes with explicit dependency edges; the
// executor validates the graph once, slices each lane into command-buffer
// segments, and realizes cross-lane edges as fence waits. Within a
// segment, pass order plus the device's storage barriers provide ordering;
// across segments of one lane, fence values keep submission in order.

package compute

import (
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// laneCount is the number of logical submission lanes. The guided filter
// splits its two box-filter chains across them so the chains overlap.
const laneCount = 2

// NodeID identifies a node added to a Graph.
type NodeID int

// node is one scheduled unit: a closure that records the stage's compute
// passes, plus the metadata the executor validates against.
type node struct {
	name string
	lane int
	deps []NodeID

	// reads and writes carry opaque buffer identity keys. The executor
	// uses them to prove every data hazard is covered by an edge.
	reads  []any
	writes []any

	record func(enc hal.CommandEncoder)
}

// segment is a run of same-lane nodes encoded into one command buffer.
// seq is the fence timeline value the segment signals on its lane.
type segment struct {
	lane  int
	seq   uint64
	nodes []NodeID

	// waits holds, per other lane, the fence value that must be reached
	// before this segment may be submitted. Zero means no wait.
	waits [laneCount]uint64
}

// SegmentTiming reports one segment's wall time from a profiled run.
type SegmentTiming struct {
	Lane    int
	Seq     uint64
	Nodes   []string
	Elapsed time.Duration
}

// Graph is a small two-lane DAG executor. Build it once per configured
// pipeline, then Execute per run; the schedule is compiled on first use
// and reused afterwards.
type Graph struct {
	eng   *Engine
	label string

	nodes    []node
	compiled bool
	segments []*segment

	// err is sticky: once the graph fails to compile or a run fails,
	// subsequent Executes return the stored error.
	err error

	profile bool
	timings []SegmentTiming
}

// NewGraph creates an empty graph executing on the engine's queue.
func NewGraph(eng *Engine, label string) *Graph {
	return &Graph{eng: eng, label: label}
}

// AddNode appends a node. reads and writes are opaque buffer identity
// keys; deps are the edges from earlier nodes. Arguments are validated at
// compile time, so a bad node surfaces from the next Execute.
func (g *Graph) AddNode(name string, lane int, record func(enc hal.CommandEncoder), reads, writes []any, deps ...NodeID) NodeID {
	g.compiled = false
	g.nodes = append(g.nodes, node{
		name:   name,
		lane:   lane,
		deps:   deps,
		reads:  reads,
		writes: writes,
		record: record,
	})
	return NodeID(len(g.nodes) - 1)
}

// SetProfile toggles profiled execution: segments run one at a time with
// a fence wait after each, and Timings reports their wall times. Profiled
// runs give up the cross-lane overlap.
func (g *Graph) SetProfile(enabled bool) { g.profile = enabled }

// Timings returns the segment timings of the last profiled Execute.
func (g *Graph) Timings() []SegmentTiming { return g.timings }

// compile validates the graph and derives the segment schedule. It is
// pure host work: no device calls happen here.
func (g *Graph) compile() error {
	n := len(g.nodes)

	for i := range g.nodes {
		nd := &g.nodes[i]
		if nd.lane < 0 || nd.lane >= laneCount {
			return fmt.Errorf("compute: graph %s: node %s has invalid lane %d", g.label, nd.name, nd.lane)
		}
		for _, d := range nd.deps {
			if int(d) < 0 || int(d) >= n {
				return fmt.Errorf("compute: graph %s: node %s depends on unknown node %d", g.label, nd.name, int(d))
			}
			if int(d) == i {
				return fmt.Errorf("compute: graph %s: node %s depends on itself", g.label, nd.name)
			}
		}
	}

	order, err := g.topoOrder()
	if err != nil {
		return err
	}
	if err := g.checkHazards(order); err != nil {
		return err
	}

	g.segments = g.buildSegments(order)
	g.compiled = true
	return nil
}

// topoOrder runs Kahn's algorithm. Ties break on insertion order so the
// schedule is deterministic. A leftover node means a cycle.
func (g *Graph) topoOrder() ([]NodeID, error) {
	n := len(g.nodes)
	indegree := make([]int, n)
	succs := make([][]NodeID, n)
	for i := range g.nodes {
		for _, d := range g.nodes[i].deps {
			indegree[i]++
			succs[d] = append(succs[d], NodeID(i))
		}
	}

	var ready []NodeID
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, NodeID(i))
		}
	}

	order := make([]NodeID, 0, n)
	for len(ready) > 0 {
		// Take the lowest ID so equal graphs always schedule equally.
		best := 0
		for i := 1; i < len(ready); i++ {
			if ready[i] < ready[best] {
				best = i
			}
		}
		id := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, id)

		for _, s := range succs[id] {
			indegree[s]--
			if indegree[s] == 0 {
				ready = append(ready, s)
			}
		}
	}

	if len(order) != n {
		var stuck []string
		for i := 0; i < n; i++ {
			if indegree[i] > 0 {
				stuck = append(stuck, g.nodes[i].name)
			}
		}
		return nil, fmt.Errorf("compute: graph %s: dependency cycle involving %v", g.label, stuck)
	}
	return order, nil
}

// checkHazards proves that every pair of nodes touching the same buffer
// with at least one writer is ordered by an edge path. This is the
// central check that no node reads a buffer before its last writer has
// signaled, and that no buffer is written on one lane while used on
// another without an intervening edge.
func (g *Graph) checkHazards(order []NodeID) error {
	n := len(g.nodes)

	// reach[i] holds the set of nodes with a path into node i.
	reach := make([][]bool, n)
	for _, id := range order {
		set := make([]bool, n)
		for _, d := range g.nodes[id].deps {
			set[d] = true
			for j := 0; j < n; j++ {
				if reach[d][j] {
					set[j] = true
				}
			}
		}
		reach[id] = set
	}
	ordered := func(a, b int) bool { return reach[b][a] || reach[a][b] }

	writers := make(map[any][]int)
	users := make(map[any][]int)
	for i := range g.nodes {
		for _, w := range g.nodes[i].writes {
			writers[w] = append(writers[w], i)
			users[w] = append(users[w], i)
		}
		for _, r := range g.nodes[i].reads {
			users[r] = append(users[r], i)
		}
	}

	for buf, ws := range writers {
		for _, w := range ws {
			for _, u := range users[buf] {
				if u == w {
					continue
				}
				if !ordered(w, u) {
					return fmt.Errorf("compute: graph %s: nodes %s and %s share a buffer without an ordering edge",
						g.label, g.nodes[w].name, g.nodes[u].name)
				}
			}
		}
	}
	return nil
}

// buildSegments walks the topological order and grows one open segment
// per lane. A cross-lane dependency seals the producing segment, so its
// fence value can be awaited, and cuts the consuming lane in front of the
// consumer: nodes already recorded there keep running without the wait.
// That cut is what lets the independent prefixes of both lanes overlap.
func (g *Graph) buildSegments(order []NodeID) []*segment {
	var sealed []*segment
	var open [laneCount]*segment
	var seq [laneCount]uint64
	segOf := make([]*segment, len(g.nodes))

	seal := func(lane int) {
		if open[lane] != nil {
			sealed = append(sealed, open[lane])
			open[lane] = nil
		}
	}

	for _, id := range order {
		nd := &g.nodes[id]

		var need [laneCount]uint64
		for _, d := range nd.deps {
			ds := segOf[d]
			if ds.lane == nd.lane {
				continue
			}
			if open[ds.lane] == ds {
				seal(ds.lane)
			}
			if ds.seq > need[ds.lane] {
				need[ds.lane] = ds.seq
			}
		}

		s := open[nd.lane]
		if s != nil {
			for lane, v := range need {
				if v > s.waits[lane] {
					seal(nd.lane)
					s = nil
					break
				}
			}
		}
		if s == nil {
			seq[nd.lane]++
			s = &segment{lane: nd.lane, seq: seq[nd.lane]}
			open[nd.lane] = s
		}
		for lane, v := range need {
			if v > s.waits[lane] {
				s.waits[lane] = v
			}
		}
		s.nodes = append(s.nodes, id)
		segOf[id] = s
	}

	seal(0)
	seal(1)
	return sealed
}

// graphResources tracks per-run GPU resources for cleanup.
type graphResources struct {
	device  hal.Device
	fences  [laneCount]hal.Fence
	cmdBufs []hal.CommandBuffer
}

func (r *graphResources) cleanup() {
	for i, f := range r.fences {
		if f != nil {
			r.device.DestroyFence(f)
			r.fences[i] = nil
		}
	}
	for _, cb := range r.cmdBufs {
		r.device.FreeCommandBuffer(cb)
	}
	r.cmdBufs = nil
}

// Execute compiles the schedule on first use, then encodes and submits
// every segment. Cross-lane waits and same-lane ordering both go through
// the per-lane fence timelines; the final drain waits for both lanes.
func (g *Graph) Execute() error {
	if g.err != nil {
		return g.err
	}
	if !g.compiled {
		if err := g.compile(); err != nil {
			g.err = err
			return err
		}
	}
	if len(g.segments) == 0 {
		return nil
	}

	res := &graphResources{device: g.eng.device}
	defer res.cleanup()

	if g.profile {
		g.timings = g.timings[:0]
	}

	var last [laneCount]uint64
	for _, seg := range g.segments {
		if res.fences[seg.lane] == nil {
			fence, err := g.eng.device.CreateFence()
			if err != nil {
				return g.fail(fmt.Errorf("compute: graph %s: create fence: %w", g.label, err))
			}
			res.fences[seg.lane] = fence
		}

		// Same-lane segments stay in order; cross-lane edges wait on the
		// producing lane's recorded fence value.
		if seg.seq > 1 {
			if err := g.await(res, seg.lane, seg.seq-1); err != nil {
				return g.fail(err)
			}
		}
		for lane, v := range seg.waits {
			if v > 0 {
				if err := g.await(res, lane, v); err != nil {
					return g.fail(err)
				}
			}
		}

		start := time.Now()
		cmdBuf, err := g.encodeSegment(seg)
		if err != nil {
			return g.fail(err)
		}
		res.cmdBufs = append(res.cmdBufs, cmdBuf)

		if err := g.eng.queue.Submit([]hal.CommandBuffer{cmdBuf}, res.fences[seg.lane], seg.seq); err != nil {
			return g.fail(fmt.Errorf("compute: graph %s: submit lane %d segment %d: %w",
				g.label, seg.lane, seg.seq, err))
		}
		last[seg.lane] = seg.seq

		if g.profile {
			if err := g.await(res, seg.lane, seg.seq); err != nil {
				return g.fail(err)
			}
			names := make([]string, len(seg.nodes))
			for i, id := range seg.nodes {
				names[i] = g.nodes[id].name
			}
			g.timings = append(g.timings, SegmentTiming{
				Lane:    seg.lane,
				Seq:     seg.seq,
				Nodes:   names,
				Elapsed: time.Since(start),
			})
		}
	}

	for lane, v := range last {
		if v > 0 {
			if err := g.await(res, lane, v); err != nil {
				return g.fail(err)
			}
		}
	}

	slogger().Debug("compute: graph executed",
		"graph", g.label,
		"segments", len(g.segments),
		"profiled", g.profile)
	return nil
}

// await blocks until a lane's fence reaches a timeline value.
func (g *Graph) await(res *graphResources, lane int, value uint64) error {
	ok, err := g.eng.device.Wait(res.fences[lane], value, fenceTimeout)
	if err != nil {
		return fmt.Errorf("compute: graph %s: wait lane %d value %d: %w", g.label, lane, value, err)
	}
	if !ok {
		return fmt.Errorf("compute: graph %s: GPU timeout after %v (lane %d, value %d)",
			g.label, fenceTimeout, lane, value)
	}
	return nil
}

// encodeSegment records every node of a segment into one command buffer.
func (g *Graph) encodeSegment(seg *segment) (hal.CommandBuffer, error) {
	label := fmt.Sprintf("%s_l%d_s%d", g.label, seg.lane, seg.seq)
	encoder, err := g.eng.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label,
	})
	if err != nil {
		return nil, fmt.Errorf("compute: graph %s: create command encoder: %w", g.label, err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("compute: graph %s: begin encoding: %w", g.label, err)
	}

	for _, id := range seg.nodes {
		g.nodes[id].record(encoder)
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("compute: graph %s: end encoding: %w", g.label, err)
	}
	return cmdBuf, nil
}

// fail stores a run error so later Executes refuse cheaply. The device
// state after a failed submission is unknown, so the pipeline must be
// rebuilt.
func (g *Graph) fail(err error) error {
	g.err = err
	return err
}
