package execshell

// CommandEventObserver receives lifecycle notifications for shell command execution.
type CommandEventObserver interface {
	// CommandStarted is called before the command runs.
	CommandStarted(command ShellCommand)
	// CommandCompleted is called once the command exits, whatever its exit code.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports commands that could not be run at all.
	CommandExecutionFailed(command ShellCommand, failure error)
}

// observerSet fans events out to every registered observer in registration order.
type observerSet []CommandEventObserver

func newObserverSet(observers []CommandEventObserver) observerSet {
	registeredObservers := make(observerSet, 0, len(observers))
	for _, observer := range observers {
		if observer != nil {
			registeredObservers = append(registeredObservers, observer)
		}
	}
	return registeredObservers
}

func (observers observerSet) started(command ShellCommand) {
	for _, observer := range observers {
		observer.CommandStarted(command)
	}
}

func (observers observerSet) completed(command ShellCommand, result ExecutionResult) {
	for _, observer := range observers {
		observer.CommandCompleted(command, result)
	}
}

func (observers observerSet) failed(command ShellCommand, failure error) {
	for _, observer := range observers {
		observer.CommandExecutionFailed(command, failure)
	}
}
