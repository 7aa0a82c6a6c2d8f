// Package status maps Transmission torrent status codes onto lifecycle states.
//
// Transmission changed its status encoding with RPC version 14: older daemons
// report a single set bit, newer ones a plain ordinal. A Generation is chosen
// once per cycle from the daemon's rpc-version and used for every lookup in
// that cycle.
package status

type State int

const (
	Unknown State = iota
	Stopped
	CheckPending
	Checking
	DownloadPending
	Downloading
	SeedPending
	Seeding
)

var stateNames = map[State]string{
	Unknown:         "unknown",
	Stopped:         "stopped",
	CheckPending:    "check pending",
	Checking:        "checking",
	DownloadPending: "download pending",
	Downloading:     "downloading",
	SeedPending:     "seed pending",
	Seeding:         "seeding",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return stateNames[Unknown]
}

// IsTerminal reports whether a download in this state is finished and may be
// stopped and removed from the daemon.
func (s State) IsTerminal() bool {
	switch s {
	case Seeding, Stopped, SeedPending:
		return true
	default:
		return false
	}
}

type Generation int

const (
	Legacy Generation = iota
	Current
)

// CurrentMinVersion is the first rpc-version reporting ordinal status codes.
const CurrentMinVersion = 14

func (g Generation) String() string {
	if g == Current {
		return "current"
	}
	return "legacy"
}

func GenerationFor(rpcVersion int) Generation {
	if rpcVersion >= CurrentMinVersion {
		return Current
	}
	return Legacy
}

var currentStates = map[int]State{
	0: Stopped,
	1: CheckPending,
	2: Checking,
	3: DownloadPending,
	4: Downloading,
	5: SeedPending,
	6: Seeding,
}

var legacyStates = map[int]State{
	1 << 0: CheckPending,
	1 << 1: Checking,
	1 << 2: Downloading,
	1 << 3: Seeding,
	1 << 4: Stopped,
}

// Classify looks the code up verbatim in the generation's table. Codes not in
// the table, including combined legacy bitmasks, yield Unknown.
func (g Generation) Classify(code int) State {
	table := legacyStates
	if g == Current {
		table = currentStates
	}
	if state, ok := table[code]; ok {
		return state
	}
	return Unknown
}

func Classify(code, rpcVersion int) State {
	return GenerationFor(rpcVersion).Classify(code)
}
