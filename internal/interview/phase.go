// Package interview sequences an interview through its phases and drives the
// local spoken variant turn by turn.
package interview

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

type Phase string

const (
	PhaseCreated          Phase = "created"
	PhaseResumeProcessing Phase = "resume_processing"
	PhaseQuestionsReady   Phase = "questions_ready"
	PhaseAsking           Phase = "asking"
	PhaseAwaitingAnswer   Phase = "awaiting_answer"
	PhaseEvaluating       Phase = "evaluating"
	PhaseCompleted        Phase = "completed"
	PhaseAborted          Phase = "aborted"
)

var ErrInvalidTransition = errors.New("interview: invalid phase transition")

// State is a phase plus the 1-based question it refers to. Question is zero
// for phases outside the question loop.
type State struct {
	Phase    Phase
	Question int
}

func (s State) String() string {
	if s.Question > 0 {
		return fmt.Sprintf("%s(%d)", s.Phase, s.Question)
	}
	return string(s.Phase)
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s.Phase == PhaseCompleted || s.Phase == PhaseAborted
}

// ParseState reads the form produced by State.String.
func ParseState(v string) (State, error) {
	v = strings.TrimSpace(v)
	name, rest, indexed := strings.Cut(v, "(")
	st := State{Phase: Phase(name)}
	if indexed {
		n, err := strconv.Atoi(strings.TrimSuffix(rest, ")"))
		if err != nil || n <= 0 || !strings.HasSuffix(rest, ")") {
			return State{}, fmt.Errorf("interview: bad phase %q", v)
		}
		st.Question = n
	}
	if !st.valid() {
		return State{}, fmt.Errorf("interview: bad phase %q", v)
	}
	return st, nil
}

func (s State) valid() bool {
	switch s.Phase {
	case PhaseAsking, PhaseAwaitingAnswer, PhaseEvaluating:
		return s.Question > 0
	case PhaseCreated, PhaseResumeProcessing, PhaseQuestionsReady, PhaseCompleted, PhaseAborted:
		return s.Question == 0
	default:
		return false
	}
}

// Machine guards the phase sequence of one interview. It is safe for
// concurrent use.
//
//	created -> resume_processing -> questions_ready -> asking(1)
//	asking(i) -> awaiting_answer(i) -> evaluating(i) -> asking(i+1) | completed
//	resume_processing -> aborted
//
// With deferred evaluation awaiting_answer(i) moves straight to asking(i+1)
// or completed and scoring happens after submission.
type Machine struct {
	mu       sync.Mutex
	state    State
	total    int
	deferred bool
	history  []State
}

func NewMachine() *Machine {
	return &Machine{state: State{Phase: PhaseCreated}, history: []State{{Phase: PhaseCreated}}}
}

// NewMachineAt restores a machine for an already prepared interview.
func NewMachineAt(st State, total int, deferred bool) (*Machine, error) {
	if !st.valid() || st.Question > total {
		return nil, fmt.Errorf("%w: cannot restore %s with %d questions", ErrInvalidTransition, st, total)
	}
	return &Machine{state: st, total: total, deferred: deferred, history: []State{st}}, nil
}

// DeferEvaluation lets awaiting_answer skip the evaluating phase.
func (m *Machine) DeferEvaluation() {
	m.mu.Lock()
	m.deferred = true
	m.mu.Unlock()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// History lists every state entered, oldest first.
func (m *Machine) History() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.history...)
}

func (m *Machine) StartResumeProcessing() error {
	return m.transition(State{Phase: PhaseResumeProcessing})
}

// QuestionsReady records how many questions the interview will ask.
func (m *Machine) QuestionsReady(total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if total <= 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidTransition)
	}
	if err := m.move(State{Phase: PhaseQuestionsReady}); err != nil {
		return err
	}
	m.total = total
	return nil
}

// Abort ends an interview whose resume could not be processed.
func (m *Machine) Abort() error {
	return m.transition(State{Phase: PhaseAborted})
}

// Ask moves to asking the next question and returns its number.
func (m *Machine) Ask() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := State{Phase: PhaseAsking, Question: m.state.Question + 1}
	if m.state.Phase == PhaseQuestionsReady {
		next.Question = 1
	}
	if err := m.move(next); err != nil {
		return 0, err
	}
	return next.Question, nil
}

// Await is entered once the current question has been spoken in full.
func (m *Machine) Await() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(State{Phase: PhaseAwaitingAnswer, Question: m.state.Question})
}

func (m *Machine) Evaluate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(State{Phase: PhaseEvaluating, Question: m.state.Question})
}

// Complete finishes the interview after the last question.
func (m *Machine) Complete() error {
	return m.transition(State{Phase: PhaseCompleted})
}

// HasNext reports whether another question follows the current one.
func (m *Machine) HasNext() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Question < m.total
}

func (m *Machine) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(to)
}

func (m *Machine) move(to State) error {
	if !m.allowed(m.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.state = to
	m.history = append(m.history, to)
	return nil
}

func (m *Machine) allowed(from, to State) bool {
	switch from.Phase {
	case PhaseCreated:
		return to.Phase == PhaseResumeProcessing
	case PhaseResumeProcessing:
		return to.Phase == PhaseQuestionsReady || to.Phase == PhaseAborted
	case PhaseQuestionsReady:
		return to == State{Phase: PhaseAsking, Question: 1}
	case PhaseAsking:
		return to == State{Phase: PhaseAwaitingAnswer, Question: from.Question}
	case PhaseAwaitingAnswer:
		if to == (State{Phase: PhaseEvaluating, Question: from.Question}) {
			return true
		}
		return m.deferred && m.leavesTurn(from, to)
	case PhaseEvaluating:
		return m.leavesTurn(from, to)
	default:
		return false
	}
}

// leavesTurn accepts the step after question i: the next question, or
// completion after the last one.
func (m *Machine) leavesTurn(from, to State) bool {
	if from.Question < m.total {
		return to == State{Phase: PhaseAsking, Question: from.Question + 1}
	}
	return to.Phase == PhaseCompleted && to.Question == 0
}
