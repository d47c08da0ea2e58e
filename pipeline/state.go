package pipeline

// State is a position in the orchestrator's state machine:
// Idle -> Stage1 -> Stage2 -> Stage3 -> Stage4 -> Complete, with Failed
// reachable from any StageN.
type State int

const (
	StateIdle State = iota
	StateStage1
	StateStage2
	StateStage3
	StateStage4
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStage1:
		return "stage_1"
	case StateStage2:
		return "stage_2"
	case StateStage3:
		return "stage_3"
	case StateStage4:
		return "stage_4"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// stageIndex maps StageN to its index in Stages().
func (s State) stageIndex() (int, bool) {
	if s >= StateStage1 && s <= StateStage4 {
		return int(s - StateStage1), true
	}
	return 0, false
}

// next is the successor on success.
func (s State) next() State {
	switch s {
	case StateIdle:
		return StateStage1
	case StateStage4:
		return StateComplete
	case StateStage1, StateStage2, StateStage3:
		return s + 1
	default:
		return s
	}
}
