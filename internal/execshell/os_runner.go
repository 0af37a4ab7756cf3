package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
)

const (
	environmentAssignmentSeparatorConstant = "="
	gitTerminalPromptVariableConstant      = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledConstant      = "0"
	gitSSHCommandVariableConstant          = "GIT_SSH_COMMAND"
	gitSSHBatchModeCommandConstant         = "ssh -o BatchMode=yes"
)

// OSCommandRunner executes commands using os/exec.
// Git commands never prompt: credential and host-key questions fail the command instead.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs a runner backed by os/exec.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run executes the command. A non-zero exit is reported in the result, not as an error;
// a command stopped by context cancellation returns the context error.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executable := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	executable.Dir = command.Details.WorkingDirectory
	executable.Env = buildEnvironment(command)

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	executable.Stdout = &standardOutputBuffer
	executable.Stderr = &standardErrorBuffer
	if len(command.Details.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	result := ExecutionResult{}
	runError := executable.Run()
	if runError != nil {
		if contextError := executionContext.Err(); contextError != nil {
			return ExecutionResult{}, contextError
		}
		var exitError *exec.ExitError
		if !errors.As(runError, &exitError) {
			return ExecutionResult{}, runError
		}
		result.ExitCode = exitError.ExitCode()
	}

	result.StandardOutput = standardOutputBuffer.String()
	result.StandardError = standardErrorBuffer.String()
	return result, nil
}

func buildEnvironment(command ShellCommand) []string {
	overrides := map[string]string{}
	if command.Name == CommandGit {
		overrides[gitTerminalPromptVariableConstant] = gitTerminalPromptDisabledConstant
		if _, configured := os.LookupEnv(gitSSHCommandVariableConstant); !configured {
			overrides[gitSSHCommandVariableConstant] = gitSSHBatchModeCommandConstant
		}
	}
	for environmentKey, environmentValue := range command.Details.EnvironmentVariables {
		overrides[environmentKey] = environmentValue
	}
	if len(overrides) == 0 {
		return nil
	}

	overrideKeys := make([]string, 0, len(overrides))
	for environmentKey := range overrides {
		overrideKeys = append(overrideKeys, environmentKey)
	}
	sort.Strings(overrideKeys)

	mergedEnvironment := os.Environ()
	for _, environmentKey := range overrideKeys {
		mergedEnvironment = append(mergedEnvironment, environmentKey+environmentAssignmentSeparatorConstant+overrides[environmentKey])
	}
	return mergedEnvironment
}
