package replication

// State is the phase of a sync cycle.
type State int32

const (
	Idle State = iota
	FetchingCursor
	SelectingDelta
	Transferring
	Reporting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FetchingCursor:
		return "fetching_cursor"
	case SelectingDelta:
		return "selecting_delta"
	case Transferring:
		return "transferring"
	case Reporting:
		return "reporting"
	default:
		return "unknown"
	}
}
