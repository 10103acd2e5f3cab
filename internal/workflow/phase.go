package workflow

// Phase is one of the three fixed pipeline stages. The zero value is not a
// phase; a pipeline that has not entered Explore reports PhaseNone.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseExplore
	PhaseEngineer
	PhaseCrystallize
)

// Phases lists the pipeline stages in execution order.
var Phases = []Phase{PhaseExplore, PhaseEngineer, PhaseCrystallize}

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseExplore:
		return "explore"
	case PhaseEngineer:
		return "engineer"
	case PhaseCrystallize:
		return "crystallize"
	default:
		return "unknown"
	}
}

// Label is the indicator text shown by display surfaces.
func (p Phase) Label() string {
	switch p {
	case PhaseExplore:
		return "🔍 EXPLORE"
	case PhaseEngineer:
		return "🤖 ENGINEER"
	case PhaseCrystallize:
		return "📝 CRYSTALLIZE"
	default:
		return p.String()
	}
}

// Index is the position of p in Phases, or -1.
func (p Phase) Index() int {
	for i, candidate := range Phases {
		if candidate == p {
			return i
		}
	}
	return -1
}

func (p Phase) Valid() bool {
	return p.Index() >= 0
}

// Next returns the phase after p. PhaseNone is followed by the first phase.
func (p Phase) Next() (Phase, bool) {
	if p == PhaseNone {
		return Phases[0], true
	}
	idx := p.Index()
	if idx < 0 || idx+1 >= len(Phases) {
		return PhaseNone, false
	}
	return Phases[idx+1], true
}

// Progress describes how a phase relates to the current one.
type Progress int

const (
	ProgressPending Progress = iota
	ProgressCurrent
	ProgressCompleted
)

// ProgressOf derives the indicator styling of p purely from its position
// relative to current.
func ProgressOf(p, current Phase) Progress {
	pi, ci := p.Index(), current.Index()
	switch {
	case pi < 0 || ci < 0:
		return ProgressPending
	case pi < ci:
		return ProgressCompleted
	case pi == ci:
		return ProgressCurrent
	default:
		return ProgressPending
	}
}
