package deploy

import "fmt"

// Phase represents a phase of an install run.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnected
	PhaseProbed
	PhaseUpdatePath
	PhaseFreshInstall
	PhaseConfigured
	PhaseActivated
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnected:
		return "connected"
	case PhaseProbed:
		return "probed"
	case PhaseUpdatePath:
		return "update-path"
	case PhaseFreshInstall:
		return "fresh-install"
	case PhaseConfigured:
		return "configured"
	case PhaseActivated:
		return "activated"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// transitions lists the legal successors of each phase. Failed is reachable
// from every non-terminal phase and is absorbing.
var transitions = map[Phase][]Phase{
	PhaseDisconnected: {PhaseConnected},
	PhaseConnected:    {PhaseProbed},
	PhaseProbed:       {PhaseUpdatePath, PhaseFreshInstall},
	PhaseUpdatePath:   {PhaseDone},
	PhaseFreshInstall: {PhaseConfigured},
	PhaseConfigured:   {PhaseActivated},
	PhaseActivated:    {PhaseDone},
}

// CanTransition reports whether from → to is a legal step.
func CanTransition(from, to Phase) bool {
	if from == PhaseDone || from == PhaseFailed {
		return false
	}
	if to == PhaseFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Stage names the step that was running when a run failed.
type Stage string

const (
	StageConnect     Stage = "connect"
	StageProbe       Stage = "probe"
	StagePull        Stage = "pull"
	StageRestart     Stage = "restart"
	StagePackages    Stage = "packages"
	StageBootstrap   Stage = "bootstrap"
	StageClone       Stage = "clone"
	StageEnvironment Stage = "environment"
	StageUnit        Stage = "unit"
	StageReload      Stage = "reload"
	StageUnmask      Stage = "unmask"
	StageEnable      Stage = "enable"
	StageStart       Stage = "start"
	StageStop        Stage = "stop"
	StageDisable     Stage = "disable"
	StageRemoveUnit  Stage = "remove-unit"
)

// InstallState tracks where an install run is.
type InstallState struct {
	Phase   Phase
	Service string
	// Existed is set once the probe found a prior registration
	Existed bool
	History []Phase
}

// NewInstallState creates the state of a run that has not connected yet.
func NewInstallState(service string) *InstallState {
	return &InstallState{
		Phase:   PhaseDisconnected,
		Service: service,
		History: []Phase{PhaseDisconnected},
	}
}

// Advance moves to the next phase, refusing illegal transitions.
func (s *InstallState) Advance(to Phase) error {
	if !CanTransition(s.Phase, to) {
		return fmt.Errorf("illegal phase transition %s -> %s", s.Phase, to)
	}
	s.Phase = to
	s.History = append(s.History, to)
	return nil
}

// Connected reports whether a session was established during the run.
func (s *InstallState) Connected() bool {
	return len(s.History) > 1 && s.History[1] == PhaseConnected
}
