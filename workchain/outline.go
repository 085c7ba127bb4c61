// Package workchain implements an outline tree of declarative
// instructions (sequence, conditional, loop, single step) and the
// stepper that walks it one leaf call at a time, suspending and
// resuming exactly like any other process step.
package workchain

import "errors"

// ErrReturn is a sentinel a step function can return to end the
// outline early, the same way a bare "return" inside a WorkChain's
// outline method does in the reference design.
var ErrReturn = errors.New("workchain: return from outline")

// StepFn is a single leaf call in an outline: a named method on the
// owning WorkChain's body, taking the WorkChain for access to its
// shared context and the underlying Process.
type StepFn func(wc *WorkChain) error

// Predicate guards a conditional or loop body.
type Predicate func(wc *WorkChain) bool

// Instruction is a node in the outline tree. CreateStepper builds a
// fresh Stepper positioned at the start of this instruction.
type Instruction interface {
	CreateStepper() Stepper
}

// Stepper walks an Instruction one leaf call at a time. Step runs the
// next pending leaf call (or advances past a conditional/loop's own
// bookkeeping with no call of its own) and reports whether the
// instruction has nothing left to do.
type Stepper interface {
	// Step advances by exactly one leaf call. finished reports whether
	// this instruction (and everything nested under it) has completed.
	Step(wc *WorkChain) (finished bool, err error)

	// Save returns a path this stepper can be recreated from: a sequence
	// of child indices from the root down to wherever execution is
	// currently positioned, outermost-first.
	Save() []int

	// Restore repositions the stepper at the path previously returned by
	// Save, rebuilding any nested steppers needed to resume mid-sequence,
	// mid-conditional, or mid-loop.
	Restore(path []int)
}

// Step builds a single named-call leaf instruction.
func Step(name string, fn StepFn) Instruction {
	return &stepInstruction{name: name, fn: fn}
}

type stepInstruction struct {
	name string
	fn   StepFn
}

func (s *stepInstruction) CreateStepper() Stepper { return &stepStepper{instr: s} }

type stepStepper struct {
	instr *stepInstruction
	done  bool
}

func (s *stepStepper) Step(wc *WorkChain) (bool, error) {
	if s.done {
		return true, nil
	}
	s.done = true
	return true, s.instr.fn(wc)
}

func (s *stepStepper) Save() []int {
	if s.done {
		return []int{1}
	}
	return []int{0}
}

func (s *stepStepper) Restore(path []int) {
	if len(path) > 0 && path[0] == 1 {
		s.done = true
	}
}

// Sequence builds an ordered composite of instructions, each run to
// completion before the next starts.
func Sequence(instrs ...Instruction) Instruction {
	return &sequenceInstruction{children: instrs}
}

type sequenceInstruction struct {
	children []Instruction
}

func (s *sequenceInstruction) CreateStepper() Stepper {
	st := &sequenceStepper{instr: s}
	if len(s.children) > 0 {
		st.child = s.children[0].CreateStepper()
	}
	return st
}

type sequenceStepper struct {
	instr *sequenceInstruction
	pos   int
	child Stepper
}

func (s *sequenceStepper) Step(wc *WorkChain) (bool, error) {
	if s.pos >= len(s.instr.children) {
		return true, nil
	}

	finished, err := s.child.Step(wc)
	if err != nil {
		return false, err
	}
	if !finished {
		return false, nil
	}

	s.pos++
	if s.pos >= len(s.instr.children) {
		s.child = nil
		return true, nil
	}
	s.child = s.instr.children[s.pos].CreateStepper()
	return false, nil
}

func (s *sequenceStepper) Save() []int {
	if s.child == nil {
		return []int{s.pos}
	}
	return append([]int{s.pos}, s.child.Save()...)
}

func (s *sequenceStepper) Restore(path []int) {
	if len(path) == 0 {
		return
	}
	s.pos = path[0]
	if s.pos >= len(s.instr.children) {
		s.child = nil
		return
	}
	s.child = s.instr.children[s.pos].CreateStepper()
	if len(path) > 1 {
		s.child.Restore(path[1:])
	}
}

// conditionalBranch pairs a predicate with the instruction to run when
// it is the first branch (in order) whose predicate is true.
type conditionalBranch struct {
	predicate Predicate
	body      Instruction
}

// ifInstruction is the builder behind If/ElseIf/Else: a list of
// predicate-guarded branches evaluated in order, at most one of which
// runs.
type ifInstruction struct {
	branches []conditionalBranch
}

// If starts a conditional instruction whose body runs if predicate is
// true. Chain ElseIf/Else off the returned value to add more branches.
func If(predicate Predicate, body ...Instruction) *IfBuilder {
	ib := &ifInstruction{}
	ib.branches = append(ib.branches, conditionalBranch{predicate: predicate, body: Sequence(body...)})
	return &IfBuilder{instr: ib}
}

// IfBuilder accumulates ElseIf/Else branches onto an If instruction.
type IfBuilder struct {
	instr *ifInstruction
}

// ElseIf adds another predicate-guarded branch.
func (b *IfBuilder) ElseIf(predicate Predicate, body ...Instruction) *IfBuilder {
	b.instr.branches = append(b.instr.branches, conditionalBranch{predicate: predicate, body: Sequence(body...)})
	return b
}

// Else adds an unconditional final branch.
func (b *IfBuilder) Else(body ...Instruction) *IfBuilder {
	b.instr.branches = append(b.instr.branches, conditionalBranch{predicate: func(*WorkChain) bool { return true }, body: Sequence(body...)})
	return b
}

// CreateStepper makes *IfBuilder itself an Instruction, so it can be
// passed wherever an Instruction is expected once no more Else/ElseIf
// branches will be added.
func (b *IfBuilder) CreateStepper() Stepper {
	return b.instr.CreateStepper()
}

func (ib *ifInstruction) CreateStepper() Stepper {
	return &ifStepper{instr: ib, pos: -1}
}

type ifStepper struct {
	instr *ifInstruction
	pos   int // index of the branch chosen, or -1 until chosen, or len(branches) once none matched
	child Stepper
}

func (s *ifStepper) Step(wc *WorkChain) (bool, error) {
	if s.pos == -1 {
		s.pos = len(s.instr.branches)
		for i, b := range s.instr.branches {
			if b.predicate(wc) {
				s.pos = i
				break
			}
		}
		if s.pos >= len(s.instr.branches) {
			return true, nil
		}
		s.child = s.instr.branches[s.pos].body.CreateStepper()
	}
	if s.child == nil {
		return true, nil
	}
	finished, err := s.child.Step(wc)
	if finished {
		s.child = nil
	}
	return finished, err
}

func (s *ifStepper) Save() []int {
	if s.pos == -1 || s.child == nil {
		return []int{s.pos}
	}
	return append([]int{s.pos}, s.child.Save()...)
}

func (s *ifStepper) Restore(path []int) {
	if len(path) == 0 {
		return
	}
	s.pos = path[0]
	if s.pos < 0 || s.pos >= len(s.instr.branches) {
		s.child = nil
		return
	}
	s.child = s.instr.branches[s.pos].body.CreateStepper()
	if len(path) > 1 {
		s.child.Restore(path[1:])
	}
}

// whileInstruction repeats body for as long as predicate holds,
// re-evaluating the predicate once at the start of every iteration.
type whileInstruction struct {
	predicate Predicate
	body      Instruction
}

// While builds a loop instruction.
func While(predicate Predicate, body ...Instruction) Instruction {
	return &whileInstruction{predicate: predicate, body: Sequence(body...)}
}

func (w *whileInstruction) CreateStepper() Stepper {
	return &whileStepper{instr: w}
}

type whileStepper struct {
	instr *whileInstruction
	child Stepper
	done  bool
}

func (s *whileStepper) Step(wc *WorkChain) (bool, error) {
	if s.done {
		return true, nil
	}
	if s.child == nil {
		if !s.instr.predicate(wc) {
			s.done = true
			return true, nil
		}
		s.child = s.instr.body.CreateStepper()
	}

	finished, err := s.child.Step(wc)
	if err != nil {
		return false, err
	}
	if finished {
		s.child = nil
	}
	return false, nil
}

func (s *whileStepper) Save() []int {
	if s.done {
		return []int{1}
	}
	if s.child == nil {
		return []int{0}
	}
	return append([]int{0}, s.child.Save()...)
}

func (s *whileStepper) Restore(path []int) {
	if len(path) == 0 {
		return
	}
	if path[0] == 1 {
		s.done = true
		return
	}
	if len(path) > 1 {
		s.child = s.instr.body.CreateStepper()
		s.child.Restore(path[1:])
	}
}

// Return builds a leaf instruction that unconditionally ends the
// outline early via ErrReturn, the outline-tree equivalent of a bare
// "return" statement inside a reference-design outline method.
func Return() Instruction {
	return Step("return", func(*WorkChain) error { return ErrReturn })
}
