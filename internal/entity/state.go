package entity

type State int

const (
	StateStarted State = iota
	StateActive
	StateCancelled
	StateInterrupted
	StateCompleted
)

func (s State) String() string {
	return [...]string{"started", "active", "cancelled", "interrupted", "completed"}[s]
}

func (s State) Terminal() bool {
	return s >= StateCancelled
}

// Outcome is carried by the single terminal event of an item.
type Outcome int

const (
	OutcomeCancelled Outcome = iota
	OutcomeInterrupted
	OutcomeCompleted
)

func (o Outcome) String() string {
	return [...]string{"cancelled", "interrupted", "completed"}[o]
}

func (o Outcome) State() State {
	switch o {
	case OutcomeCancelled:
		return StateCancelled
	case OutcomeInterrupted:
		return StateInterrupted
	default:
		return StateCompleted
	}
}
