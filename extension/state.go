package extension

// LoadState tracks a candidate through the load pipeline.
type LoadState int

const (
	LoadValidated           LoadState = iota // Descriptor produced by the scanner
	LoadExtracted                            // Archive unpacked into a work directory
	LoadDependenciesChecked                  // Installer finished (success or not)
	LoadConstructed                          // Entry point produced a Module
	LoadRegistered                           // Module inserted into the registry
	LoadRejected                             // Dropped at any step
)

// String returns a human-readable state name.
func (s LoadState) String() string {
	switch s {
	case LoadValidated:
		return "validated"
	case LoadExtracted:
		return "extracted"
	case LoadDependenciesChecked:
		return "dependencies-checked"
	case LoadConstructed:
		return "constructed"
	case LoadRegistered:
		return "registered"
	case LoadRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// State represents the lifecycle state of a loaded module.
type State int

const (
	StateRegistered     State = iota // In the registry, no lifecycle call yet
	StatePreInitialized              // PreInitialize() succeeded
	StateInitialized                 // Initialize() succeeded, contributions registered
	StatePostInitialized             // PostInitialize() succeeded, running
	StateFailed                      // A lifecycle call failed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StatePreInitialized:
		return "pre-initialized"
	case StateInitialized:
		return "initialized"
	case StatePostInitialized:
		return "post-initialized"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state cannot transition further in normal flow.
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StatePostInitialized
}
