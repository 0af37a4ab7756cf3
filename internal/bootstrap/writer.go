package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/temirov/repostamp/internal/render"
)

const (
	// DockerfileNameConstant is the container build file written at the working copy root.
	DockerfileNameConstant = "Dockerfile"

	artifactFilePermissionsConstant        = fs.FileMode(0o644)
	artifactDirectoryPermissionsConstant   = fs.FileMode(0o755)
	writeErrorTemplateConstant             = "unable to write %s: %v"
	writerFileSystemMissingMessageConstant = "artifact writer filesystem not configured"
)

// ErrWriterFileSystemNotConfigured indicates a missing filesystem dependency.
var ErrWriterFileSystemNotConfigured = errors.New(writerFileSystemMissingMessageConstant)

// WriteError reports an artifact that could not be persisted.
type WriteError struct {
	Path  string
	Cause error
}

// Error describes the write failure.
func (writeError WriteError) Error() string {
	return fmt.Sprintf(writeErrorTemplateConstant, writeError.Path, writeError.Cause)
}

// Unwrap exposes the filesystem error.
func (writeError WriteError) Unwrap() error {
	return writeError.Cause
}

// ArtifactFileWriter overwrites rendered artifacts inside a working copy.
type ArtifactFileWriter struct {
	fileSystem   afero.Fs
	workflowPath string
}

// NewArtifactFileWriter constructs an ArtifactFileWriter. workflowPath is relative to the working copy.
func NewArtifactFileWriter(fileSystem afero.Fs, workflowPath string) (*ArtifactFileWriter, error) {
	if fileSystem == nil {
		return nil, ErrWriterFileSystemNotConfigured
	}
	trimmedWorkflowPath := strings.TrimSpace(workflowPath)
	if len(trimmedWorkflowPath) == 0 {
		trimmedWorkflowPath = DefaultWorkflowPathConstant
	}
	return &ArtifactFileWriter{fileSystem: fileSystem, workflowPath: filepath.FromSlash(trimmedWorkflowPath)}, nil
}

// WorkflowFilePath returns the workflow location inside localPath.
func (writer *ArtifactFileWriter) WorkflowFilePath(localPath string) string {
	return filepath.Join(localPath, writer.workflowPath)
}

// Write fully replaces the Dockerfile and workflow file in localPath.
func (writer *ArtifactFileWriter) Write(localPath string, artifacts render.Artifacts) error {
	dockerfilePath := filepath.Join(localPath, DockerfileNameConstant)
	if writeError := afero.WriteFile(writer.fileSystem, dockerfilePath, []byte(artifacts.Dockerfile), artifactFilePermissionsConstant); writeError != nil {
		return WriteError{Path: dockerfilePath, Cause: writeError}
	}

	workflowFilePath := writer.WorkflowFilePath(localPath)
	if mkdirError := writer.fileSystem.MkdirAll(filepath.Dir(workflowFilePath), artifactDirectoryPermissionsConstant); mkdirError != nil {
		return WriteError{Path: workflowFilePath, Cause: mkdirError}
	}
	if writeError := afero.WriteFile(writer.fileSystem, workflowFilePath, []byte(artifacts.Workflow), artifactFilePermissionsConstant); writeError != nil {
		return WriteError{Path: workflowFilePath, Cause: writeError}
	}

	return nil
}
