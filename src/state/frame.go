package state

import llvm "tinygo.org/x/go-llvm"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// PC (program counter) names exactly where execution is: a function, the
// basic block currently executing within it, and an offset into that
// block's instruction list. Re-entering a block (loop back-edge) resets
// Instr to zero; stepping forward increments it.
type PC struct {
	Function llvm.Value
	Block    llvm.BasicBlock
	Instr    int
}

// Callsite is pushed on call/invoke and popped on ret, matching spec's
// `{ caller_pc, destination_local_or_none, resume_block_on_invoke_or_none }`.
// DestLocal is empty for a call whose result is discarded; NormalBlock is
// the zero value for a plain call (only invoke sets it, for the
// exception-normal edge ret resumes on).
type Callsite struct {
	CallerPC    PC
	DestLocal   llvm.Value
	HasDest     bool
	NormalBlock llvm.BasicBlock
	IsInvoke    bool
	ScopeDepth  int // VarMap depth to restore on return
}

// CallStack is a LIFO stack of Callsite, one per live (non-returned) call.
type CallStack struct {
	frames []Callsite
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewCallStack returns an empty call stack.
func NewCallStack() *CallStack { return &CallStack{} }

// Push records a new callsite on entering a call/invoke.
func (c *CallStack) Push(site Callsite) { c.frames = append(c.frames, site) }

// Pop removes and returns the innermost callsite; ok is false on an empty
// stack, which the executor reads as "the entry function is returning".
func (c *CallStack) Pop() (Callsite, bool) {
	if len(c.frames) == 0 {
		return Callsite{}, false
	}
	top := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	return top, true
}

// Depth returns how many calls are currently live, enforced against
// max_call_depth by the executor.
func (c *CallStack) Depth() int { return len(c.frames) }

// Frames returns the live callsites, outermost first, used to render a
// failure's stack trace.
func (c *CallStack) Frames() []Callsite {
	out := make([]Callsite, len(c.frames))
	copy(out, c.frames)
	return out
}

// Clone deep-copies the stack for State.Fork.
func (c *CallStack) Clone() *CallStack {
	out := &CallStack{frames: make([]Callsite, len(c.frames))}
	copy(out.frames, c.frames)
	return out
}
