// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// guided.go wires the guided filter pipelines. Both variants are built
// from the primitive stages: four or six box filters, the element-wise
// coefficient kernels, and a final assembly pass. The stages land on two
// graph lanes so the independent box chains overlap; the coefficient
// kernels join the lanes where the algebra forces it.

package compute

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/guidedfilter"
)

// SelfGuidedStage runs the I = p guided filter entirely on the device:
//
//	mean_p  = box(p)        mean_p2 = box(p*p)
//	var     = mean_p2 - mean_p^2
//	a       = var / (var + eps)
//	b       = (1 - a) * mean_p
//	q       = (box(a)*p + box(b)) * output_scaling
//
// Mirrors SelfGuided in internal/satcompute/guided.go.
type SelfGuidedStage struct {
	state stageState
	cfg   guidedfilter.Config

	squared *PownStage
	boxP    *BoxFilterSATStage
	boxP2   *BoxFilterSATStage
	boxA    *BoxFilterSATStage
	boxB    *BoxFilterSATStage

	uAB  hal.Buffer
	uQ   hal.Buffer
	bgAB hal.BindGroup
	bgQ  hal.BindGroup

	graph *Graph
}

// NewSelfGuidedStage creates an unconfigured self-guided pipeline.
func NewSelfGuidedStage(eng *Engine, staging guidedfilter.Staging) *SelfGuidedStage {
	return newSelfGuidedStage(eng, "selfguided", staging)
}

func newSelfGuidedStage(eng *Engine, label string, staging guidedfilter.Staging) *SelfGuidedStage {
	s := &SelfGuidedStage{}
	s.state.init(eng, label, staging)
	return s
}

// Bind attaches a caller-provided buffer to a slot before Configure.
func (s *SelfGuidedStage) Bind(role Role, buf hal.Buffer) error { return s.state.bind(role, buf) }

// Buffer exposes a slot's buffer for chaining into another stage.
func (s *SelfGuidedStage) Buffer(role Role) hal.Buffer { return s.state.buffer(role) }

// Config returns the pipeline's configuration, including parameter
// updates applied after Configure.
func (s *SelfGuidedStage) Config() guidedfilter.Config { return s.cfg }

// Configure freezes the pipeline for cfg. Staging in cfg is ignored in
// favor of the stage's own mode.
func (s *SelfGuidedStage) Configure(cfg guidedfilter.Config) error {
	if s.state.configured {
		return fmt.Errorf("compute: %s: already configured", s.state.label)
	}
	if !s.state.eng.ready() {
		return fmt.Errorf("compute: %s: engine not initialized", s.state.label)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg

	pixels := cfg.Width * cfg.Height
	planeBytes := uint64(pixels) * 4
	if err := s.state.allocate([]slotSpec{
		{role: RoleIn, size: planeBytes, usage: usageUpload},
		{role: RoleOut, size: planeBytes, usage: usageReadout},
		{role: RoleA, size: planeBytes, usage: usageInternal},
		{role: RoleB, size: planeBytes, usage: usageInternal},
	}); err != nil {
		return err
	}
	if err := s.build(); err != nil {
		s.Free()
		return err
	}
	return nil
}

func (s *SelfGuidedStage) build() error {
	eng := s.state.eng
	label := s.state.label
	cfg := s.cfg
	pixels := cfg.Width * cfg.Height
	in := s.state.buffer(RoleIn)

	s.squared = newPownStage(eng, label+"_p2", guidedfilter.StagingNone)
	if err := s.squared.Bind(RoleIn, in); err != nil {
		return err
	}
	if err := s.squared.Configure(pixels, 2); err != nil {
		return err
	}

	boxes := []struct {
		stage **BoxFilterSATStage
		name  string
		src   hal.Buffer
	}{
		{&s.boxP, "mean_p", in},
		{&s.boxP2, "mean_p2", s.squared.Buffer(RoleOut)},
		{&s.boxA, "mean_a", s.state.buffer(RoleA)},
		{&s.boxB, "mean_b", s.state.buffer(RoleB)},
	}
	for _, bx := range boxes {
		st := newBoxFilterSATStage(eng, label+"_"+bx.name, guidedfilter.StagingNone)
		if err := st.Bind(RoleIn, bx.src); err != nil {
			return err
		}
		if err := st.Configure(cfg.Width, cfg.Height, cfg.Radius, cfg.BoxScaling); err != nil {
			return err
		}
		*bx.stage = st
	}

	uAB, err := s.state.newUniform("ab_cfg", s.abConfig().toBytes())
	if err != nil {
		return err
	}
	s.uAB = uAB
	bgAB, err := s.state.newBindGroup(kSelfAB, []gputypes.BindGroupEntry{
		bufferEntry(0, s.uAB),
		bufferEntry(1, s.boxP.Buffer(RoleOut)),
		bufferEntry(2, s.boxP2.Buffer(RoleOut)),
		bufferEntry(3, s.state.buffer(RoleA)),
		bufferEntry(4, s.state.buffer(RoleB)),
	})
	if err != nil {
		return err
	}
	s.bgAB = bgAB

	uQ, err := s.state.newUniform("q_cfg", s.qConfig().toBytes())
	if err != nil {
		return err
	}
	s.uQ = uQ
	bgQ, err := s.state.newBindGroup(kQ, []gputypes.BindGroupEntry{
		bufferEntry(0, s.uQ),
		bufferEntry(1, in),
		bufferEntry(2, s.boxA.Buffer(RoleOut)),
		bufferEntry(3, s.boxB.Buffer(RoleOut)),
		bufferEntry(4, s.state.buffer(RoleOut)),
	})
	if err != nil {
		return err
	}
	s.bgQ = bgQ

	s.graph = s.buildGraph()
	return nil
}

func (s *SelfGuidedStage) buildGraph() *Graph {
	g := NewGraph(s.state.eng, s.state.label)
	s.addNodes(g, "")
	return g
}

// addNodes appends the pipeline's passes to g. Lane 0 carries the
// mean_p chain through to the output, lane 1 the squared chain and the
// mean_b filter, so the two box pipelines overlap between the joins.
// Entry passes additionally wait on after, and the returned ID is the
// final output pass, which lets a composite splice several pipelines
// into one graph.
func (s *SelfGuidedStage) addNodes(g *Graph, prefix string, after ...NodeID) NodeID {
	eng := s.state.eng
	pixels := s.cfg.Width * s.cfg.Height
	groups := uint32(ceilDiv(pixels/4, wgSize))

	in := s.state.buffer(RoleIn)
	out := s.state.buffer(RoleOut)
	a := s.state.buffer(RoleA)
	b := s.state.buffer(RoleB)
	p2 := s.squared.Buffer(RoleOut)
	meanP := s.boxP.Buffer(RoleOut)
	meanP2 := s.boxP2.Buffer(RoleOut)
	meanA := s.boxA.Buffer(RoleOut)
	meanB := s.boxB.Buffer(RoleOut)

	nMeanP := g.AddNode(prefix+"mean_p", 0, s.boxP.record,
		[]any{in}, []any{meanP}, after...)
	nSquare := g.AddNode(prefix+"square", 1, s.squared.record,
		[]any{in}, []any{p2}, after...)
	nMeanP2 := g.AddNode(prefix+"mean_p2", 1, s.boxP2.record,
		[]any{p2}, []any{meanP2}, nSquare)
	nAB := g.AddNode(prefix+"ab", 0, func(enc hal.CommandEncoder) {
		eng.recordPass(enc, s.state.label+"_ab", kSelfAB, s.bgAB, groups, 1)
	}, []any{meanP, meanP2}, []any{a, b}, nMeanP, nMeanP2)
	nMeanB := g.AddNode(prefix+"mean_b", 1, s.boxB.record,
		[]any{b}, []any{meanB}, nAB)
	nMeanA := g.AddNode(prefix+"mean_a", 0, s.boxA.record,
		[]any{a}, []any{meanA}, nAB)
	return g.AddNode(prefix+"q", 0, func(enc hal.CommandEncoder) {
		eng.recordPass(enc, s.state.label+"_q", kQ, s.bgQ, groups, 1)
	}, []any{in, meanA, meanB}, []any{out}, nMeanA, nMeanB)
}

func (s *SelfGuidedStage) abConfig() algebraConfig {
	return algebraConfig{
		NVec4: uint32(s.cfg.Width * s.cfg.Height / 4),
		Eps:   s.cfg.Eps,
	}
}

func (s *SelfGuidedStage) qConfig() algebraConfig {
	zero := uint32(0)
	if s.cfg.ZeroOut {
		zero = 1
	}
	return algebraConfig{
		NVec4:   uint32(s.cfg.Width * s.cfg.Height / 4),
		Scaling: s.cfg.OutputScaling,
		ZeroOut: zero,
	}
}

// SetRadius rewrites the window radius of all four box filters.
func (s *SelfGuidedStage) SetRadius(radius int) error {
	if !s.state.configured {
		return fmt.Errorf("compute: %s: SetRadius before Configure", s.state.label)
	}
	for _, bx := range []*BoxFilterSATStage{s.boxP, s.boxP2, s.boxA, s.boxB} {
		if err := bx.SetRadius(radius); err != nil {
			return err
		}
	}
	s.cfg.Radius = radius
	return nil
}

// SetEps rewrites the regularization term.
func (s *SelfGuidedStage) SetEps(eps float32) error {
	if !s.state.configured {
		return fmt.Errorf("compute: %s: SetEps before Configure", s.state.label)
	}
	s.cfg.Eps = eps
	s.state.eng.queue.WriteBuffer(s.uAB, 0, s.abConfig().toBytes())
	return nil
}

// SetBoxScaling rewrites the table scaling of all four box filters.
func (s *SelfGuidedStage) SetBoxScaling(scaling float32) error {
	if !s.state.configured {
		return fmt.Errorf("compute: %s: SetBoxScaling before Configure", s.state.label)
	}
	for _, bx := range []*BoxFilterSATStage{s.boxP, s.boxP2, s.boxA, s.boxB} {
		if err := bx.SetScaling(scaling); err != nil {
			return err
		}
	}
	s.cfg.BoxScaling = scaling
	return nil
}

// SetOutputScaling rewrites the final output multiplier.
func (s *SelfGuidedStage) SetOutputScaling(scaling float32) error {
	if !s.state.configured {
		return fmt.Errorf("compute: %s: SetOutputScaling before Configure", s.state.label)
	}
	s.cfg.OutputScaling = scaling
	s.state.eng.queue.WriteBuffer(s.uQ, 0, s.qConfig().toBytes())
	return nil
}

// SetZeroOut rewrites the zero-propagation policy.
func (s *SelfGuidedStage) SetZeroOut(zeroOut bool) error {
	if !s.state.configured {
		return fmt.Errorf("compute: %s: SetZeroOut before Configure", s.state.label)
	}
	s.cfg.ZeroOut = zeroOut
	s.state.eng.queue.WriteBuffer(s.uQ, 0, s.qConfig().toBytes())
	return nil
}

// SetProfile toggles per-segment timing on the next Runs.
func (s *SelfGuidedStage) SetProfile(enabled bool) {
	if s.graph != nil {
		s.graph.SetProfile(enabled)
	}
}

// Timings returns the segment timings of the last profiled Run.
func (s *SelfGuidedStage) Timings() []SegmentTiming {
	if s.graph == nil {
		return nil
	}
	return s.graph.Timings()
}

// Write uploads the input plane, gated by the staging mode.
func (s *SelfGuidedStage) Write(p []float32) error {
	return s.state.writeBytes(RoleIn, floatsToBytes(p))
}

// Read downloads the filtered plane, gated by the staging mode.
func (s *SelfGuidedStage) Read(q []float32) error {
	tmp := make([]byte, len(q)*4)
	if err := s.state.readBytes(tmp); err != nil {
		return err
	}
	bytesToFloats(tmp, q)
	return nil
}

// Run executes the pipeline graph and waits for both lanes to drain.
func (s *SelfGuidedStage) Run() error {
	if !s.state.configured {
		return fmt.Errorf("compute: %s: Run before Configure", s.state.label)
	}
	return s.graph.Execute()
}

// Free releases the pipeline and its internal stages.
func (s *SelfGuidedStage) Free() {
	if s.squared != nil {
		s.squared.Free()
		s.squared = nil
	}
	for _, bx := range []*BoxFilterSATStage{s.boxP, s.boxP2, s.boxA, s.boxB} {
		if bx != nil {
			bx.Free()
		}
	}
	s.boxP, s.boxP2, s.boxA, s.boxB = nil, nil, nil, nil
	s.graph = nil
	s.state.free()
	s.uAB, s.uQ = nil, nil
	s.bgAB, s.bgQ = nil, nil
}

// CrossGuidedStage runs the I != p guided filter: the input is smoothed
// under the structure of a separate guide image.
//
//	var_I  = box(I*I) - mean_I^2
//	cov_Ip = box(I*p) - mean_I*mean_p
//	a      = cov_Ip / (var_I + eps)
//	b      = mean_p - a*mean_I
//	q      = box(a)*I + box(b)
//
// Output scaling is fixed at 1 and the zero-out policy gates on the
// guide, matching the CPU variant.
//
// Mirrors CrossGuided in internal/satcompute/guided.go.
type CrossGuidedStage struct {
	state stageState
	cfg   guidedfilter.Config

	multII *MultStage
	multIp *MultStage
	boxI   *BoxFilterSATStage
	boxP   *BoxFilterSATStage
	boxII  *BoxFilterSATStage
	boxIp  *BoxFilterSATStage
	boxA   *BoxFilterSATStage
	boxB   *BoxFilterSATStage

	uVar  hal.Buffer
	uAB   hal.Buffer
	uQ    hal.Buffer
	bgVar hal.BindGroup
	bgAB  hal.BindGroup
	bgQ   hal.BindGroup

	graph *Graph
}

// NewCrossGuidedStage creates an unconfigured cross-guided pipeline.
func NewCrossGuidedStage(eng *Engine, staging guidedfilter.Staging) *CrossGuidedStage {
	return newCrossGuidedStage(eng, "crossguided", staging)
}

func newCrossGuidedStage(eng *Engine, label string, staging guidedfilter.Staging) *CrossGuidedStage {
	c := &CrossGuidedStage{}
	c.state.init(eng, label, staging)
	return c
}

// Bind attaches a caller-provided buffer to a slot before Configure.
func (c *CrossGuidedStage) Bind(role Role, buf hal.Buffer) error { return c.state.bind(role, buf) }

// Buffer exposes a slot's buffer for chaining into another stage.
func (c *CrossGuidedStage) Buffer(role Role) hal.Buffer { return c.state.buffer(role) }

// Config returns the pipeline's configuration.
func (c *CrossGuidedStage) Config() guidedfilter.Config { return c.cfg }

// Configure freezes the pipeline for cfg.
func (c *CrossGuidedStage) Configure(cfg guidedfilter.Config) error {
	if c.state.configured {
		return fmt.Errorf("compute: %s: already configured", c.state.label)
	}
	if !c.state.eng.ready() {
		return fmt.Errorf("compute: %s: engine not initialized", c.state.label)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	pixels := cfg.Width * cfg.Height
	planeBytes := uint64(pixels) * 4
	if err := c.state.allocate([]slotSpec{
		{role: RoleIn, size: planeBytes, usage: usageUpload},
		{role: RoleGuide, size: planeBytes, usage: usageUpload},
		{role: RoleOut, size: planeBytes, usage: usageReadout},
		{role: RoleA, size: planeBytes, usage: usageInternal},
		{role: RoleB, size: planeBytes, usage: usageInternal},
		{role: RoleVarI, size: planeBytes, usage: usageInternal},
		{role: RoleCovIp, size: planeBytes, usage: usageInternal},
	}); err != nil {
		return err
	}
	if err := c.build(); err != nil {
		c.Free()
		return err
	}
	return nil
}

func (c *CrossGuidedStage) build() error {
	eng := c.state.eng
	label := c.state.label
	cfg := c.cfg
	pixels := cfg.Width * cfg.Height
	in := c.state.buffer(RoleIn)
	guide := c.state.buffer(RoleGuide)

	c.multII = newMultStage(eng, label+"_ii", guidedfilter.StagingNone)
	if err := c.multII.Bind(RoleIn, guide); err != nil {
		return err
	}
	if err := c.multII.Bind(RoleGuide, guide); err != nil {
		return err
	}
	if err := c.multII.Configure(pixels); err != nil {
		return err
	}

	c.multIp = newMultStage(eng, label+"_ip", guidedfilter.StagingNone)
	if err := c.multIp.Bind(RoleIn, guide); err != nil {
		return err
	}
	if err := c.multIp.Bind(RoleGuide, in); err != nil {
		return err
	}
	if err := c.multIp.Configure(pixels); err != nil {
		return err
	}

	boxes := []struct {
		stage **BoxFilterSATStage
		name  string
		src   hal.Buffer
	}{
		{&c.boxI, "mean_i", guide},
		{&c.boxP, "mean_p", in},
		{&c.boxII, "corr_i", c.multII.Buffer(RoleOut)},
		{&c.boxIp, "corr_ip", c.multIp.Buffer(RoleOut)},
		{&c.boxA, "mean_a", c.state.buffer(RoleA)},
		{&c.boxB, "mean_b", c.state.buffer(RoleB)},
	}
	for _, bx := range boxes {
		st := newBoxFilterSATStage(eng, label+"_"+bx.name, guidedfilter.StagingNone)
		if err := st.Bind(RoleIn, bx.src); err != nil {
			return err
		}
		if err := st.Configure(cfg.Width, cfg.Height, cfg.Radius, cfg.BoxScaling); err != nil {
			return err
		}
		*bx.stage = st
	}

	uVar, err := c.state.newUniform("var_cfg", algebraConfig{
		NVec4: uint32(pixels / 4),
	}.toBytes())
	if err != nil {
		return err
	}
	c.uVar = uVar
	bgVar, err := c.state.newBindGroup(kVarIp, []gputypes.BindGroupEntry{
		bufferEntry(0, c.uVar),
		bufferEntry(1, c.boxI.Buffer(RoleOut)),
		bufferEntry(2, c.boxP.Buffer(RoleOut)),
		bufferEntry(3, c.boxII.Buffer(RoleOut)),
		bufferEntry(4, c.boxIp.Buffer(RoleOut)),
		bufferEntry(5, c.state.buffer(RoleVarI)),
		bufferEntry(6, c.state.buffer(RoleCovIp)),
	})
	if err != nil {
		return err
	}
	c.bgVar = bgVar

	uAB, err := c.state.newUniform("ab_cfg", c.abConfig().toBytes())
	if err != nil {
		return err
	}
	c.uAB = uAB
	bgAB, err := c.state.newBindGroup(kCrossAB, []gputypes.BindGroupEntry{
		bufferEntry(0, c.uAB),
		bufferEntry(1, c.state.buffer(RoleVarI)),
		bufferEntry(2, c.state.buffer(RoleCovIp)),
		bufferEntry(3, c.boxI.Buffer(RoleOut)),
		bufferEntry(4, c.boxP.Buffer(RoleOut)),
		bufferEntry(5, c.state.buffer(RoleA)),
		bufferEntry(6, c.state.buffer(RoleB)),
	})
	if err != nil {
		return err
	}
	c.bgAB = bgAB

	uQ, err := c.state.newUniform("q_cfg", c.qConfig().toBytes())
	if err != nil {
		return err
	}
	c.uQ = uQ
	bgQ, err := c.state.newBindGroup(kQ, []gputypes.BindGroupEntry{
		bufferEntry(0, c.uQ),
		bufferEntry(1, guide),
		bufferEntry(2, c.boxA.Buffer(RoleOut)),
		bufferEntry(3, c.boxB.Buffer(RoleOut)),
		bufferEntry(4, c.state.buffer(RoleOut)),
	})
	if err != nil {
		return err
	}
	c.bgQ = bgQ

	c.graph = c.buildGraph()
	return nil
}

// buildGraph lays the stages out on the two lanes: the guide statistics
// on lane 0, the input statistics on lane 1, joined at the coefficient
// kernels and again at the output.
func (c *CrossGuidedStage) buildGraph() *Graph {
	eng := c.state.eng
	pixels := c.cfg.Width * c.cfg.Height
	groups := uint32(ceilDiv(pixels/4, wgSize))

	in := c.state.buffer(RoleIn)
	guide := c.state.buffer(RoleGuide)
	out := c.state.buffer(RoleOut)
	a := c.state.buffer(RoleA)
	b := c.state.buffer(RoleB)
	varI := c.state.buffer(RoleVarI)
	covIp := c.state.buffer(RoleCovIp)
	prodII := c.multII.Buffer(RoleOut)
	prodIp := c.multIp.Buffer(RoleOut)
	meanI := c.boxI.Buffer(RoleOut)
	meanP := c.boxP.Buffer(RoleOut)
	corrI := c.boxII.Buffer(RoleOut)
	corrIp := c.boxIp.Buffer(RoleOut)
	meanA := c.boxA.Buffer(RoleOut)
	meanB := c.boxB.Buffer(RoleOut)

	g := NewGraph(eng, c.state.label)
	nMeanI := g.AddNode("mean_i", 0, c.boxI.record,
		[]any{guide}, []any{meanI})
	nMeanP := g.AddNode("mean_p", 1, c.boxP.record,
		[]any{in}, []any{meanP})
	nMultII := g.AddNode("mult_ii", 0, c.multII.record,
		[]any{guide}, []any{prodII})
	nCorrI := g.AddNode("corr_i", 0, c.boxII.record,
		[]any{prodII}, []any{corrI}, nMultII)
	nMultIp := g.AddNode("mult_ip", 1, c.multIp.record,
		[]any{guide, in}, []any{prodIp})
	nCorrIp := g.AddNode("corr_ip", 1, c.boxIp.record,
		[]any{prodIp}, []any{corrIp}, nMultIp)
	nVar := g.AddNode("var", 0, func(enc hal.CommandEncoder) {
		eng.recordPass(enc, c.state.label+"_var", kVarIp, c.bgVar, groups, 1)
	}, []any{meanI, meanP, corrI, corrIp}, []any{varI, covIp},
		nMeanI, nMeanP, nCorrI, nCorrIp)
	nAB := g.AddNode("ab", 0, func(enc hal.CommandEncoder) {
		eng.recordPass(enc, c.state.label+"_ab", kCrossAB, c.bgAB, groups, 1)
	}, []any{varI, covIp, meanI, meanP}, []any{a, b}, nVar)
	nMeanB := g.AddNode("mean_b", 1, c.boxB.record,
		[]any{b}, []any{meanB}, nAB)
	nMeanA := g.AddNode("mean_a", 0, c.boxA.record,
		[]any{a}, []any{meanA}, nAB)
	g.AddNode("q", 0, func(enc hal.CommandEncoder) {
		eng.recordPass(enc, c.state.label+"_q", kQ, c.bgQ, groups, 1)
	}, []any{guide, meanA, meanB}, []any{out}, nMeanA, nMeanB)
	return g
}

func (c *CrossGuidedStage) abConfig() algebraConfig {
	return algebraConfig{
		NVec4: uint32(c.cfg.Width * c.cfg.Height / 4),
		Eps:   c.cfg.Eps,
	}
}

func (c *CrossGuidedStage) qConfig() algebraConfig {
	zero := uint32(0)
	if c.cfg.ZeroOut {
		zero = 1
	}
	// Output scaling is pinned to 1 in the cross variant.
	return algebraConfig{
		NVec4:   uint32(c.cfg.Width * c.cfg.Height / 4),
		Scaling: 1,
		ZeroOut: zero,
	}
}

func (c *CrossGuidedStage) allBoxes() []*BoxFilterSATStage {
	return []*BoxFilterSATStage{c.boxI, c.boxP, c.boxII, c.boxIp, c.boxA, c.boxB}
}

// SetRadius rewrites the window radius of all six box filters.
func (c *CrossGuidedStage) SetRadius(radius int) error {
	if !c.state.configured {
		return fmt.Errorf("compute: %s: SetRadius before Configure", c.state.label)
	}
	for _, bx := range c.allBoxes() {
		if err := bx.SetRadius(radius); err != nil {
			return err
		}
	}
	c.cfg.Radius = radius
	return nil
}

// SetEps rewrites the regularization term.
func (c *CrossGuidedStage) SetEps(eps float32) error {
	if !c.state.configured {
		return fmt.Errorf("compute: %s: SetEps before Configure", c.state.label)
	}
	c.cfg.Eps = eps
	c.state.eng.queue.WriteBuffer(c.uAB, 0, c.abConfig().toBytes())
	return nil
}

// SetBoxScaling rewrites the table scaling of all six box filters.
func (c *CrossGuidedStage) SetBoxScaling(scaling float32) error {
	if !c.state.configured {
		return fmt.Errorf("compute: %s: SetBoxScaling before Configure", c.state.label)
	}
	for _, bx := range c.allBoxes() {
		if err := bx.SetScaling(scaling); err != nil {
			return err
		}
	}
	c.cfg.BoxScaling = scaling
	return nil
}

// SetZeroOut rewrites the zero-propagation policy.
func (c *CrossGuidedStage) SetZeroOut(zeroOut bool) error {
	if !c.state.configured {
		return fmt.Errorf("compute: %s: SetZeroOut before Configure", c.state.label)
	}
	c.cfg.ZeroOut = zeroOut
	c.state.eng.queue.WriteBuffer(c.uQ, 0, c.qConfig().toBytes())
	return nil
}

// SetProfile toggles per-segment timing on the next Runs.
func (c *CrossGuidedStage) SetProfile(enabled bool) {
	if c.graph != nil {
		c.graph.SetProfile(enabled)
	}
}

// Timings returns the segment timings of the last profiled Run.
func (c *CrossGuidedStage) Timings() []SegmentTiming {
	if c.graph == nil {
		return nil
	}
	return c.graph.Timings()
}

// Write uploads the input plane, gated by the staging mode.
func (c *CrossGuidedStage) Write(p []float32) error {
	return c.state.writeBytes(RoleIn, floatsToBytes(p))
}

// WriteGuide uploads the guide plane, gated by the staging mode.
func (c *CrossGuidedStage) WriteGuide(guide []float32) error {
	return c.state.writeBytes(RoleGuide, floatsToBytes(guide))
}

// Read downloads the filtered plane, gated by the staging mode.
func (c *CrossGuidedStage) Read(q []float32) error {
	tmp := make([]byte, len(q)*4)
	if err := c.state.readBytes(tmp); err != nil {
		return err
	}
	bytesToFloats(tmp, q)
	return nil
}

// Run executes the pipeline graph and waits for both lanes to drain.
func (c *CrossGuidedStage) Run() error {
	if !c.state.configured {
		return fmt.Errorf("compute: %s: Run before Configure", c.state.label)
	}
	return c.graph.Execute()
}

// Free releases the pipeline and its internal stages.
func (c *CrossGuidedStage) Free() {
	for _, m := range []*MultStage{c.multII, c.multIp} {
		if m != nil {
			m.Free()
		}
	}
	c.multII, c.multIp = nil, nil
	for _, bx := range c.allBoxes() {
		if bx != nil {
			bx.Free()
		}
	}
	c.boxI, c.boxP, c.boxII, c.boxIp, c.boxA, c.boxB = nil, nil, nil, nil, nil, nil
	c.graph = nil
	c.state.free()
	c.uVar, c.uAB, c.uQ = nil, nil, nil
	c.bgVar, c.bgAB, c.bgQ = nil, nil, nil
}
