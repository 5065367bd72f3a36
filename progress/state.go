// Package progress implements the hierarchical, weighted progress tree
// shared by every Job (spec §3/§4.C): a State node composes child
// percentages into its own, supports cancellation shared down the
// tree, and brackets named resource locks.
package progress

import (
	"errors"
	"sync"
)

var (
	// ErrStateInvalid is returned by StepDone when called more times
	// than the node has steps.
	ErrStateInvalid = errors.New("state: step_done called past the last step")
	// ErrCancelled is returned by StepDone/Finished once the state
	// tree's cancellable has been flipped.
	ErrCancelled = errors.New("state: cancelled")
	// ErrWeightsInvalid is returned by New when the weights don't sum
	// to 100.
	ErrWeightsInvalid = errors.New("state: weights must sum to 100")
)

// cancellable is shared by a State node and every descendant created
// via Child, so a single Cancel() call at the root reaches the whole
// tree (spec §4.C/§5).
type cancellable struct {
	mu        sync.Mutex
	cancelled bool
}

func (c *cancellable) cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
}

func (c *cancellable) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// State is a single-producer progress node: only the goroutine running
// the role mutates it, but reads (Percentage, IsCancelled) are safe
// from any goroutine.
type State struct {
	mu sync.Mutex

	weights     []int
	currentStep int // index of the last fully-completed step, -1 if none
	percentage  int
	finished    bool

	action      string
	actionHint  string
	allowCancel bool
	speed       uint64

	parent          *State
	parentStepIndex int

	cancel *cancellable

	locks *lockSet

	onPercentage  []func(int)
	onAction      []func(action, hint string)
	onAllowCancel []func(bool)
	onSpeed       []func(uint64)
}

// New creates a root State with an explicit weight list, which must
// sum to 100.
func New(weights []int) (*State, error) {
	sum := 0
	for _, w := range weights {
		sum += w
	}
	if sum != 100 {
		return nil, ErrWeightsInvalid
	}
	ws := make([]int, len(weights))
	copy(ws, weights)
	return &State{
		weights:         ws,
		currentStep:     -1,
		allowCancel:     true,
		cancel:          &cancellable{},
		locks:           newLockSet(),
		parentStepIndex: -1,
	}, nil
}

// NewSteps is the set_number_steps(n) convenience: n equal-ish weights
// summing to exactly 100 (the last step absorbs any remainder so the
// "ends at exactly 100" invariant always holds regardless of whether n
// divides 100 evenly).
func NewSteps(n int) (*State, error) {
	if n <= 0 {
		return nil, ErrWeightsInvalid
	}
	weights := make([]int, n)
	base := 100 / n
	for i := range weights {
		weights[i] = base
	}
	weights[n-1] += 100 - base*n
	return New(weights)
}

// StepDone advances to the next step, setting percentage to the sum of
// weights up to and including it, and notifies percentage-changed
// subscribers. It fails with ErrStateInvalid once every step is done,
// and with ErrCancelled if the tree has been cancelled.
func (s *State) StepDone() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel.isCancelled() {
		return ErrCancelled
	}
	next := s.currentStep + 1
	if next >= len(s.weights) {
		return ErrStateInvalid
	}
	s.currentStep = next
	s.percentage = s.completedSumLocked(next)
	s.notifyPercentageLocked()
	s.propagateToParentLocked()
	return nil
}

// completedSumLocked sums weights[0..upTo] inclusive. Caller holds s.mu.
func (s *State) completedSumLocked(upTo int) int {
	if upTo < 0 {
		return 0
	}
	sum := 0
	for i := 0; i <= upTo && i < len(s.weights); i++ {
		sum += s.weights[i]
	}
	return sum
}

// Child returns a new State bound to the step following the last one
// completed on s. Its percentage contributes weights[boundStep] *
// child% / 100 to s's own percentage while the child is in progress.
func (s *State) Child() (*State, error) {
	s.mu.Lock()
	boundStep := s.currentStep + 1
	if boundStep >= len(s.weights) {
		s.mu.Unlock()
		return nil, ErrStateInvalid
	}
	s.mu.Unlock()

	child := &State{
		currentStep:     -1,
		allowCancel:     true,
		cancel:          s.cancel,
		locks:           s.locks,
		parent:          s,
		parentStepIndex: boundStep,
	}
	return child, nil
}

// SetWeights reconfigures the node's step weights, which must sum to
// 100. Used to configure a freshly created child (Child returns one
// with no weights yet).
func (s *State) SetWeights(weights []int) error {
	sum := 0
	for _, w := range weights {
		sum += w
	}
	if sum != 100 {
		return ErrWeightsInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := make([]int, len(weights))
	copy(ws, weights)
	s.weights = ws
	s.currentStep = -1
	return nil
}

// SetNumberSteps is the set_number_steps(n) convenience applied to an
// existing node (typically one just returned by Child).
func (s *State) SetNumberSteps(n int) error {
	if n <= 0 {
		return ErrWeightsInvalid
	}
	weights := make([]int, n)
	base := 100 / n
	for i := range weights {
		weights[i] = base
	}
	weights[n-1] += 100 - base*n
	return s.SetWeights(weights)
}

// ChildSteps is Child followed by SetNumberSteps(n) applied to the
// returned child, the common case in role implementations.
func (s *State) ChildSteps(n int) (*State, error) {
	child, err := s.Child()
	if err != nil {
		return nil, err
	}
	if err := child.SetNumberSteps(n); err != nil {
		return nil, err
	}
	return child, nil
}

// propagateToParentLocked recomputes the parent's (and transitively the
// grandparent's...) percentage from this node's current percentage.
// Caller holds s.mu; parent locking is separate to avoid deadlock since
// parent != s.
func (s *State) propagateToParentLocked() {
	parent := s.parent
	stepIdx := s.parentStepIndex
	childPct := s.percentage
	if parent == nil {
		return
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	base := parent.completedSumLocked(stepIdx - 1)
	contribution := 0
	if stepIdx >= 0 && stepIdx < len(parent.weights) {
		contribution = parent.weights[stepIdx] * childPct / 100
	}
	parent.percentage = base + contribution
	parent.notifyPercentageLocked()
	parent.propagateToParentLocked()
}

// Finished short-circuits the remainder of this branch straight to
// 100, without emitting the intermediate percentages a full run of
// StepDone would have produced.
func (s *State) Finished() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel.isCancelled() {
		return ErrCancelled
	}
	s.currentStep = len(s.weights) - 1
	s.percentage = 100
	s.finished = true
	s.notifyPercentageLocked()
	s.propagateToParentLocked()
	return nil
}

// Percentage returns the node's current percentage, safe from any
// goroutine.
func (s *State) Percentage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percentage
}

// SetAction updates the current action/hint, notifying subscribers
// only when the value actually changes.
func (s *State) SetAction(action, hint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.action == action && s.actionHint == hint {
		return
	}
	s.action, s.actionHint = action, hint
	for _, fn := range s.onAction {
		fn(action, hint)
	}
}

// SetAllowCancel updates whether this branch may currently be
// cancelled, notifying subscribers only on change.
func (s *State) SetAllowCancel(allow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allowCancel == allow {
		return
	}
	s.allowCancel = allow
	for _, fn := range s.onAllowCancel {
		fn(allow)
	}
}

// AllowCancel reports whether this branch currently permits
// cancellation.
func (s *State) AllowCancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowCancel
}

// SetSpeed updates the current transfer speed (bytes/sec), notifying
// subscribers only on change.
func (s *State) SetSpeed(bytesPerSec uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.speed == bytesPerSec {
		return
	}
	s.speed = bytesPerSec
	for _, fn := range s.onSpeed {
		fn(bytesPerSec)
	}
}

// Cancel flips the shared cancellable atomically. It rejects the
// request (returning false) if this branch currently disallows
// cancellation.
func (s *State) Cancel() bool {
	if !s.AllowCancel() {
		return false
	}
	s.cancel.cancel()
	return true
}

// IsCancelled reports whether this branch (or an ancestor) has been
// cancelled.
func (s *State) IsCancelled() bool {
	return s.cancel.isCancelled()
}

// OnPercentage registers a percentage-changed subscriber.
func (s *State) OnPercentage(fn func(int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPercentage = append(s.onPercentage, fn)
}

// OnAction registers an action-changed subscriber.
func (s *State) OnAction(fn func(action, hint string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAction = append(s.onAction, fn)
}

// OnAllowCancel registers an allow-cancel-changed subscriber.
func (s *State) OnAllowCancel(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAllowCancel = append(s.onAllowCancel, fn)
}

// OnSpeed registers a speed-changed subscriber.
func (s *State) OnSpeed(fn func(uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSpeed = append(s.onSpeed, fn)
}

func (s *State) notifyPercentageLocked() {
	for _, fn := range s.onPercentage {
		fn(s.percentage)
	}
}
