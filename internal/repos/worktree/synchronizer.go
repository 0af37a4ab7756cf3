// Package worktree keeps local working copies of remote repositories current.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/repostamp/internal/execshell"
	"github.com/temirov/repostamp/internal/githubrepos"
)

const (
	gitCloneSubcommandConstant             = "clone"
	gitPullSubcommandConstant              = "pull"
	gitDirectoryFlagConstant               = "-C"
	workingCopyPermissionsConstant         = fs.FileMode(0o755)
	parentDirectoryReferenceConstant       = ".."
	executorNotConfiguredMessageConstant   = "git executor not configured"
	filesystemNotConfiguredMessageConstant = "filesystem not configured"
	invalidRepositoryNameMessageConstant   = "invalid repository name"
	missingCloneURLMessageConstant         = "repository has no ssh clone url"
	syncErrorTemplateConstant              = "%s of %s failed"
	syncErrorExitCodeTemplateConstant      = " (exit code %d)"
	syncErrorCauseTemplateConstant         = ": %v"
	prepareDirectoryErrorTemplateConstant  = "unable to prepare %s: %w"
	inspectDirectoryErrorTemplateConstant  = "unable to inspect %s: %w"
	synchronizeLogMessageConstant          = "synchronizing working copy"
	logFieldRepositoryConstant             = "repository"
	logFieldPathConstant                   = "path"
	logFieldOperationConstant              = "operation"
)

// Operation names the git action taken to synchronize a working copy.
type Operation string

// Synchronization operations.
const (
	OperationPrepare Operation = Operation("prepare")
	OperationClone   Operation = Operation("clone")
	OperationPull    Operation = Operation("pull")
)

var (
	// ErrExecutorNotConfigured indicates a missing git executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	// ErrFileSystemNotConfigured indicates a missing filesystem.
	ErrFileSystemNotConfigured = errors.New(filesystemNotConfiguredMessageConstant)
	errInvalidRepositoryName   = errors.New(invalidRepositoryNameMessageConstant)
	errMissingCloneURL         = errors.New(missingCloneURLMessageConstant)
)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// SyncError reports a failure to clone or update one repository.
type SyncError struct {
	Repository string
	Operation  Operation
	ExitCode   int
	Output     string
	Cause      error
}

// Error describes the synchronization failure.
func (syncError SyncError) Error() string {
	message := fmt.Sprintf(syncErrorTemplateConstant, syncError.Operation, syncError.Repository)
	if syncError.ExitCode != 0 {
		message += fmt.Sprintf(syncErrorExitCodeTemplateConstant, syncError.ExitCode)
	}
	if syncError.Cause != nil {
		message += fmt.Sprintf(syncErrorCauseTemplateConstant, syncError.Cause)
	}
	return message
}

// Unwrap exposes the underlying cause.
func (syncError SyncError) Unwrap() error {
	return syncError.Cause
}

// Synchronizer clones missing working copies and pulls existing ones.
type Synchronizer struct {
	logger     *zap.Logger
	executor   GitExecutor
	fileSystem afero.Fs
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(logger *zap.Logger, executor GitExecutor, fileSystem afero.Fs) (*Synchronizer, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{logger: logger, executor: executor, fileSystem: fileSystem}, nil
}

// LocalPath returns the working copy location for a repository under rootDirectory.
func LocalPath(rootDirectory string, repositoryName string) string {
	return filepath.Join(rootDirectory, repositoryName)
}

// Synchronize ensures rootDirectory/<name> holds an up-to-date working copy and returns its path.
// An empty directory is cloned into; a non-empty one is pulled.
func (synchronizer *Synchronizer) Synchronize(executionContext context.Context, descriptor githubrepos.RepositoryDescriptor, rootDirectory string) (string, error) {
	if !isValidRepositoryName(descriptor.Name) {
		return "", SyncError{Repository: descriptor.Name, Operation: OperationPrepare, Cause: errInvalidRepositoryName}
	}

	localPath := LocalPath(rootDirectory, descriptor.Name)
	if mkdirError := synchronizer.fileSystem.MkdirAll(localPath, workingCopyPermissionsConstant); mkdirError != nil {
		return "", SyncError{Repository: descriptor.Name, Operation: OperationPrepare, Cause: fmt.Errorf(prepareDirectoryErrorTemplateConstant, localPath, mkdirError)}
	}

	directoryEmpty, inspectError := afero.IsEmpty(synchronizer.fileSystem, localPath)
	if inspectError != nil {
		return "", SyncError{Repository: descriptor.Name, Operation: OperationPrepare, Cause: fmt.Errorf(inspectDirectoryErrorTemplateConstant, localPath, inspectError)}
	}

	operation := OperationPull
	commandDetails := execshell.CommandDetails{Arguments: []string{gitDirectoryFlagConstant, localPath, gitPullSubcommandConstant}}
	if directoryEmpty {
		if len(strings.TrimSpace(descriptor.SSHCloneURL)) == 0 {
			return "", SyncError{Repository: descriptor.Name, Operation: OperationClone, Cause: errMissingCloneURL}
		}
		operation = OperationClone
		commandDetails = execshell.CommandDetails{Arguments: []string{gitCloneSubcommandConstant, descriptor.SSHCloneURL, localPath}}
	}

	synchronizer.logger.Info(
		synchronizeLogMessageConstant,
		zap.String(logFieldRepositoryConstant, descriptor.Name),
		zap.String(logFieldPathConstant, localPath),
		zap.String(logFieldOperationConstant, string(operation)),
	)

	if _, executionError := synchronizer.executor.ExecuteGit(executionContext, commandDetails); executionError != nil {
		return "", newSyncError(descriptor.Name, operation, executionError)
	}

	return localPath, nil
}

func newSyncError(repositoryName string, operation Operation, cause error) SyncError {
	syncError := SyncError{Repository: repositoryName, Operation: operation, Cause: cause}

	var failedError execshell.CommandFailedError
	if errors.As(cause, &failedError) {
		syncError.ExitCode = failedError.Result.ExitCode
		syncError.Output = failedError.Result.CombinedOutput()
	}

	return syncError
}

func isValidRepositoryName(repositoryName string) bool {
	trimmedName := strings.TrimSpace(repositoryName)
	if len(trimmedName) == 0 || trimmedName != repositoryName {
		return false
	}
	if repositoryName == "." || repositoryName == parentDirectoryReferenceConstant {
		return false
	}
	return !strings.ContainsAny(repositoryName, `/\`)
}
