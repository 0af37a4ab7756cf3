package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repostamp/internal/githubrepos"
	"github.com/temirov/repostamp/internal/render"
	"github.com/temirov/repostamp/internal/repos/overrides"
	"github.com/temirov/repostamp/internal/repos/worktree"
)

const (
	minimumConcurrencyConstant = 2
	maximumConcurrencyConstant = 8

	listerMissingMessageConstant         = "repository lister not configured"
	synchronizerMissingMessageConstant   = "repository synchronizer not configured"
	overrideLoaderMissingMessageConstant = "override loader not configured"
	rendererMissingMessageConstant       = "artifact renderer not configured"
	writerMissingMessageConstant         = "artifact writer not configured"
	listingFailedErrorTemplateConstant   = "unable to list repositories: %w"
	repositoryFailuresTemplateConstant   = "%d of %d repositories failed: %v"

	runStartedLogMessageConstant          = "bootstrap run started"
	runCompletedLogMessageConstant        = "bootstrap run completed"
	repositorySucceededLogMessageConstant = "repository bootstrapped"
	repositoryFailedLogMessageConstant    = "repository bootstrap failed"
	dryRunWriteSkippedLogMessageConstant  = "dry run: artifacts not written"
	logFieldOwnerConstant                 = "owner"
	logFieldPrefixConstant                = "prefix"
	logFieldRootDirectoryConstant         = "root"
	logFieldConcurrencyConstant           = "concurrency"
	logFieldDryRunConstant                = "dry_run"
	logFieldRepositoryConstant            = "repository"
	logFieldLocalPathConstant             = "path"
	logFieldStageConstant                 = "stage"
	logFieldDiscoveredConstant            = "discovered"
	logFieldSucceededConstant             = "succeeded"
	logFieldFailedConstant                = "failed"
	logFieldOverrideKeysConstant          = "override_keys"
	logFieldDockerfileOverriddenConstant  = "dockerfile_overridden"
)

// Stage identifies a step of per-repository processing.
type Stage string

// Processing stages in execution order.
const (
	StageSync      Stage = Stage("sync")
	StageOverrides Stage = Stage("overrides")
	StageRender    Stage = Stage("render")
	StageWrite     Stage = Stage("write")
	StageComplete  Stage = Stage("done")
)

var (
	// ErrListerNotConfigured indicates a missing lister dependency.
	ErrListerNotConfigured = errors.New(listerMissingMessageConstant)
	// ErrSynchronizerNotConfigured indicates a missing synchronizer dependency.
	ErrSynchronizerNotConfigured = errors.New(synchronizerMissingMessageConstant)
	// ErrOverrideLoaderNotConfigured indicates a missing override loader dependency.
	ErrOverrideLoaderNotConfigured = errors.New(overrideLoaderMissingMessageConstant)
	// ErrRendererNotConfigured indicates a missing renderer dependency.
	ErrRendererNotConfigured = errors.New(rendererMissingMessageConstant)
	// ErrWriterNotConfigured indicates a missing writer dependency.
	ErrWriterNotConfigured = errors.New(writerMissingMessageConstant)
)

// RepositoryLister enumerates candidate repositories.
type RepositoryLister interface {
	ListRepositories(executionContext context.Context, owner string, prefix string) ([]githubrepos.RepositoryDescriptor, error)
}

// RepositorySynchronizer ensures a local working copy is current.
type RepositorySynchronizer interface {
	Synchronize(executionContext context.Context, descriptor githubrepos.RepositoryDescriptor, rootDirectory string) (string, error)
}

// OverrideLoader reads per-repository overrides.
type OverrideLoader interface {
	Load(localPath string) (overrides.Configuration, error)
}

// ArtifactRenderer renders repository artifacts.
type ArtifactRenderer interface {
	Render(descriptor githubrepos.RepositoryDescriptor, overrideConfiguration overrides.Configuration) (render.Artifacts, error)
}

// ArtifactWriter persists rendered artifacts into a working copy.
type ArtifactWriter interface {
	Write(localPath string, artifacts render.Artifacts) error
}

// Dependencies bundles the collaborators required by Service.
type Dependencies struct {
	Lister         RepositoryLister
	Synchronizer   RepositorySynchronizer
	OverrideLoader OverrideLoader
	Renderer       ArtifactRenderer
	Writer         ArtifactWriter
}

// RunOptions configures a single bootstrap run.
type RunOptions struct {
	Owner         string
	Prefix        string
	RootDirectory string
	Concurrency   int
	DryRun        bool
}

// RepositoryOutcome records how processing of one repository ended.
type RepositoryOutcome struct {
	Repository githubrepos.RepositoryDescriptor
	LocalPath  string
	Stage      Stage
	Error      error
}

// Succeeded reports whether every stage completed.
func (outcome RepositoryOutcome) Succeeded() bool {
	return outcome.Error == nil
}

// RunSummary aggregates outcomes in listing order.
type RunSummary struct {
	Outcomes []RepositoryOutcome
}

// SucceededCount returns the number of repositories processed without error.
func (summary RunSummary) SucceededCount() int {
	succeededCount := 0
	for _, outcome := range summary.Outcomes {
		if outcome.Succeeded() {
			succeededCount++
		}
	}
	return succeededCount
}

// FailedCount returns the number of repositories that failed.
func (summary RunSummary) FailedCount() int {
	return len(summary.Outcomes) - summary.SucceededCount()
}

// RepositoryFailuresError aggregates per-repository failures of a run.
type RepositoryFailuresError struct {
	FailedCount int
	TotalCount  int
	Cause       error
}

// Error describes the aggregated failures.
func (failuresError RepositoryFailuresError) Error() string {
	return fmt.Sprintf(repositoryFailuresTemplateConstant, failuresError.FailedCount, failuresError.TotalCount, failuresError.Cause)
}

// Unwrap exposes the combined per-repository errors.
func (failuresError RepositoryFailuresError) Unwrap() error {
	return failuresError.Cause
}

// Service orchestrates listing and per-repository bootstrapping.
type Service struct {
	logger       *zap.Logger
	dependencies Dependencies
}

// NewService validates dependencies and constructs a Service.
func NewService(logger *zap.Logger, dependencies Dependencies) (*Service, error) {
	switch {
	case dependencies.Lister == nil:
		return nil, ErrListerNotConfigured
	case dependencies.Synchronizer == nil:
		return nil, ErrSynchronizerNotConfigured
	case dependencies.OverrideLoader == nil:
		return nil, ErrOverrideLoaderNotConfigured
	case dependencies.Renderer == nil:
		return nil, ErrRendererNotConfigured
	case dependencies.Writer == nil:
		return nil, ErrWriterNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger, dependencies: dependencies}, nil
}

// DefaultConcurrency returns the worker count used when none is configured.
func DefaultConcurrency() int {
	return min(max(runtime.NumCPU(), minimumConcurrencyConstant), maximumConcurrencyConstant)
}

// Run lists repositories once and processes each on the worker pool.
// A listing failure aborts the run. Repository failures never cancel siblings;
// they are collected into the summary and returned as RepositoryFailuresError.
func (service *Service) Run(executionContext context.Context, options RunOptions) (RunSummary, error) {
	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency()
	}

	service.logger.Info(
		runStartedLogMessageConstant,
		zap.String(logFieldOwnerConstant, options.Owner),
		zap.String(logFieldPrefixConstant, options.Prefix),
		zap.String(logFieldRootDirectoryConstant, options.RootDirectory),
		zap.Int(logFieldConcurrencyConstant, concurrency),
		zap.Bool(logFieldDryRunConstant, options.DryRun),
	)

	descriptors, listingError := service.dependencies.Lister.ListRepositories(executionContext, options.Owner, options.Prefix)
	if listingError != nil {
		return RunSummary{}, fmt.Errorf(listingFailedErrorTemplateConstant, listingError)
	}

	outcomes := make([]RepositoryOutcome, len(descriptors))
	var workerGroup errgroup.Group
	workerGroup.SetLimit(concurrency)
	for descriptorIndex, descriptor := range descriptors {
		workerGroup.Go(func() error {
			outcomes[descriptorIndex] = service.processRepository(executionContext, descriptor, options)
			return nil
		})
	}
	_ = workerGroup.Wait()

	summary := RunSummary{Outcomes: outcomes}
	service.logger.Info(
		runCompletedLogMessageConstant,
		zap.Int(logFieldDiscoveredConstant, len(outcomes)),
		zap.Int(logFieldSucceededConstant, summary.SucceededCount()),
		zap.Int(logFieldFailedConstant, summary.FailedCount()),
	)

	var combinedError error
	for _, outcome := range outcomes {
		combinedError = multierr.Append(combinedError, outcome.Error)
	}
	if combinedError != nil {
		return summary, RepositoryFailuresError{FailedCount: summary.FailedCount(), TotalCount: len(outcomes), Cause: combinedError}
	}

	return summary, nil
}

func (service *Service) processRepository(executionContext context.Context, descriptor githubrepos.RepositoryDescriptor, options RunOptions) RepositoryOutcome {
	outcome := RepositoryOutcome{Repository: descriptor, Stage: StageSync}

	if options.DryRun {
		outcome.LocalPath = worktree.LocalPath(options.RootDirectory, descriptor.Name)
	} else {
		localPath, synchronizeError := service.dependencies.Synchronizer.Synchronize(executionContext, descriptor, options.RootDirectory)
		if synchronizeError != nil {
			return service.recordFailure(outcome, synchronizeError)
		}
		outcome.LocalPath = localPath
	}

	outcome.Stage = StageOverrides
	overrideConfiguration, loadError := service.dependencies.OverrideLoader.Load(outcome.LocalPath)
	if loadError != nil {
		return service.recordFailure(outcome, loadError)
	}
	_, dockerfileOverridden := overrideConfiguration.Dockerfile()

	outcome.Stage = StageRender
	artifacts, renderError := service.dependencies.Renderer.Render(descriptor, overrideConfiguration)
	if renderError != nil {
		return service.recordFailure(outcome, renderError)
	}

	outcome.Stage = StageWrite
	if options.DryRun {
		service.logger.Info(
			dryRunWriteSkippedLogMessageConstant,
			zap.String(logFieldRepositoryConstant, descriptor.Name),
			zap.String(logFieldLocalPathConstant, outcome.LocalPath),
			zap.Bool(logFieldDockerfileOverriddenConstant, dockerfileOverridden),
		)
	} else if writeError := service.dependencies.Writer.Write(outcome.LocalPath, artifacts); writeError != nil {
		return service.recordFailure(outcome, writeError)
	}

	outcome.Stage = StageComplete
	service.logger.Info(
		repositorySucceededLogMessageConstant,
		zap.String(logFieldRepositoryConstant, descriptor.Name),
		zap.String(logFieldLocalPathConstant, outcome.LocalPath),
		zap.Int(logFieldOverrideKeysConstant, len(overrideConfiguration)),
		zap.Bool(logFieldDockerfileOverriddenConstant, dockerfileOverridden),
	)

	return outcome
}

func (service *Service) recordFailure(outcome RepositoryOutcome, failure error) RepositoryOutcome {
	outcome.Error = failure
	service.logger.Warn(
		repositoryFailedLogMessageConstant,
		zap.String(logFieldRepositoryConstant, outcome.Repository.Name),
		zap.String(logFieldStageConstant, string(outcome.Stage)),
		zap.Error(failure),
	)
	return outcome
}
