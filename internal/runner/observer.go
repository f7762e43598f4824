package runner

// Observer receives lifecycle notifications for executions.
type Observer interface {
	// Started is called once the command passed validation, before launch.
	Started(runID, command string)
	// Finished is called with the terminal outcome.
	Finished(outcome *Outcome)
}

type noopObserver struct{}

func (noopObserver) Started(string, string) {}

func (noopObserver) Finished(*Outcome) {}
