package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandFailedErrorTemplateConstant        = "%s failed with exit code %d%s"
	commandExecutionErrorTemplateConstant     = "%s could not be executed: %v"
	commandOutputSuffixTemplateConstant       = ": %s"
	commandStartedLogMessageConstant          = "executing command"
	commandSucceededLogMessageConstant        = "command completed"
	commandFailedLogMessageConstant           = "command failed"
	commandExecutionFailedLogMessageConstant  = "command execution failed"
	logFieldCommandNameConstant               = "command"
	logFieldCommandArgumentsConstant          = "arguments"
	logFieldWorkingDirectoryConstant          = "working_directory"
	logFieldExitCodeConstant                  = "exit_code"
	logFieldStandardErrorConstant             = "stderr"
	commandLabelSeparatorConstant             = " "
)

// CommandName identifies an executable supported by the shell executor.
type CommandName string

// Supported command names.
const (
	CommandGit CommandName = CommandName("git")
)

// CommandDetails describes arguments and process settings for a command invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand pairs an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// Label renders the command and its arguments as a single line.
func (command ShellCommand) Label() string {
	commandParts := append([]string{string(command.Name)}, command.Details.Arguments...)
	return strings.Join(commandParts, commandLabelSeparatorConstant)
}

// ExecutionResult captures process output and exit status.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CombinedOutput joins standard output and standard error, trimmed.
func (result ExecutionResult) CombinedOutput() string {
	outputParts := make([]string, 0, 2)
	for _, candidate := range []string{result.StandardOutput, result.StandardError} {
		trimmedCandidate := strings.TrimSpace(candidate)
		if len(trimmedCandidate) > 0 {
			outputParts = append(outputParts, trimmedCandidate)
		}
	}
	return strings.Join(outputParts, "\n")
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

var (
	// ErrLoggerNotConfigured indicates a missing logger dependency.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates a missing runner dependency.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// CommandFailedError reports a command that ran but exited with a non-zero status.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command including its captured output.
func (failedError CommandFailedError) Error() string {
	outputSuffix := ""
	if combinedOutput := failedError.Result.CombinedOutput(); len(combinedOutput) > 0 {
		outputSuffix = fmt.Sprintf(commandOutputSuffixTemplateConstant, combinedOutput)
	}
	return fmt.Sprintf(commandFailedErrorTemplateConstant, failedError.Command.Label(), failedError.Result.ExitCode, outputSuffix)
}

// CommandExecutionError reports a command that could not be started or awaited.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, executionError.Command.Label(), executionError.Cause)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// ShellExecutor runs commands through a CommandRunner with structured logging.
type ShellExecutor struct {
	logger    *zap.Logger
	runner    CommandRunner
	observers observerSet
}

// NewShellExecutor constructs a ShellExecutor. Observers receive lifecycle events in addition to the logger.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, observers ...CommandEventObserver) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	return &ShellExecutor{logger: logger, runner: runner, observers: newObserverSet(observers)}, nil
}

// Execute runs the command and converts non-zero exit codes into CommandFailedError.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.logger.Debug(
		commandStartedLogMessageConstant,
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldCommandArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	)
	executor.observers.started(command)

	executionResult, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.logger.Warn(
			commandExecutionFailedLogMessageConstant,
			zap.String(logFieldCommandNameConstant, string(command.Name)),
			zap.Strings(logFieldCommandArgumentsConstant, command.Details.Arguments),
			zap.Error(runError),
		)
		executor.observers.failed(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.observers.completed(command, executionResult)

	if executionResult.ExitCode != 0 {
		executor.logger.Warn(
			commandFailedLogMessageConstant,
			zap.String(logFieldCommandNameConstant, string(command.Name)),
			zap.Strings(logFieldCommandArgumentsConstant, command.Details.Arguments),
			zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
			zap.String(logFieldStandardErrorConstant, strings.TrimSpace(executionResult.StandardError)),
		)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Debug(
		commandSucceededLogMessageConstant,
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldCommandArgumentsConstant, command.Details.Arguments),
	)

	return executionResult, nil
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}
