package loop

// State is a node of the run state machine.
type State int

const (
	Init State = iota
	HeaderExtracted
	BugsHypothesized
	Synthesized
	Validating
	Repairing
	Done
	GaveUp
)

var stateNames = [...]string{
	Init:             "init",
	HeaderExtracted:  "header_extracted",
	BugsHypothesized: "bugs_hypothesized",
	Synthesized:      "synthesized",
	Validating:       "validating",
	Repairing:        "repairing",
	Done:             "done",
	GaveUp:           "gave_up",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool { return s == Done || s == GaveUp }
