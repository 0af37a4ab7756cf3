package bootstrap_test

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/repostamp/internal/bootstrap"
	"github.com/temirov/repostamp/internal/githubrepos"
	"github.com/temirov/repostamp/internal/render"
	"github.com/temirov/repostamp/internal/repos/overrides"
	"github.com/temirov/repostamp/internal/repos/worktree"
)

const (
	testOwnerConstant             = "CdaProd"
	testPrefixConstant            = "cda"
	testRootDirectoryConstant     = "/workspace/cda_REPOS"
	testFailingRepositoryConstant = "cda-broken"
)

type stubLister struct {
	descriptors []githubrepos.RepositoryDescriptor
	listError   error
	calls       atomic.Int32
}

func (lister *stubLister) ListRepositories(context.Context, string, string) ([]githubrepos.RepositoryDescriptor, error) {
	lister.calls.Add(1)
	return lister.descriptors, lister.listError
}

type stubSynchronizer struct {
	failures     map[string]error
	delay        time.Duration
	inFlight     atomic.Int32
	maxInFlight  atomic.Int32
	synchronized sync.Map
}

func (synchronizer *stubSynchronizer) Synchronize(_ context.Context, descriptor githubrepos.RepositoryDescriptor, rootDirectory string) (string, error) {
	current := synchronizer.inFlight.Add(1)
	defer synchronizer.inFlight.Add(-1)
	for {
		observed := synchronizer.maxInFlight.Load()
		if current <= observed || synchronizer.maxInFlight.CompareAndSwap(observed, current) {
			break
		}
	}
	if synchronizer.delay > 0 {
		time.Sleep(synchronizer.delay)
	}

	synchronizer.synchronized.Store(descriptor.Name, true)
	if failure, shouldFail := synchronizer.failures[descriptor.Name]; shouldFail {
		return "", failure
	}
	return worktree.LocalPath(rootDirectory, descriptor.Name), nil
}

type stubOverrideLoader struct {
	configurations map[string]overrides.Configuration
	failures       map[string]error
}

func (loader *stubOverrideLoader) Load(localPath string) (overrides.Configuration, error) {
	repositoryName := filepath.Base(localPath)
	if failure, shouldFail := loader.failures[repositoryName]; shouldFail {
		return nil, failure
	}
	if configuration, present := loader.configurations[repositoryName]; present {
		return configuration, nil
	}
	return overrides.Configuration{}, nil
}

type recordingWriter struct {
	mutex   sync.Mutex
	written map[string]render.Artifacts
}

func (writer *recordingWriter) Write(localPath string, artifacts render.Artifacts) error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	if writer.written == nil {
		writer.written = map[string]render.Artifacts{}
	}
	writer.written[localPath] = artifacts
	return nil
}

func (writer *recordingWriter) paths() []string {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	paths := make([]string, 0, len(writer.written))
	for path := range writer.written {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func descriptorsNamed(names ...string) []githubrepos.RepositoryDescriptor {
	descriptors := make([]githubrepos.RepositoryDescriptor, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, githubrepos.RepositoryDescriptor{Name: name, SSHCloneURL: "git@github.com:CdaProd/" + name + ".git"})
	}
	return descriptors
}

func newTestService(testInstance *testing.T, logger *zap.Logger, dependencies bootstrap.Dependencies) *bootstrap.Service {
	testInstance.Helper()
	if dependencies.Renderer == nil {
		dependencies.Renderer = render.NewRenderer(render.Settings{Owner: testOwnerConstant})
	}
	if dependencies.OverrideLoader == nil {
		dependencies.OverrideLoader = &stubOverrideLoader{}
	}
	service, creationError := bootstrap.NewService(logger, dependencies)
	require.NoError(testInstance, creationError)
	return service
}

func defaultRunOptions() bootstrap.RunOptions {
	return bootstrap.RunOptions{
		Owner:         testOwnerConstant,
		Prefix:        testPrefixConstant,
		RootDirectory: testRootDirectoryConstant,
		Concurrency:   4,
	}
}

func TestServiceRunIsolatesRepositoryFailures(testInstance *testing.T) {
	observerCore, observerLogs := observer.New(zap.DebugLevel)
	syncFailure := worktree.SyncError{Repository: testFailingRepositoryConstant, Operation: worktree.OperationClone, ExitCode: 128, Cause: errors.New("exit status 128")}

	lister := &stubLister{descriptors: descriptorsNamed("cda-api", testFailingRepositoryConstant, "cda-web", "cda-worker")}
	synchronizer := &stubSynchronizer{failures: map[string]error{testFailingRepositoryConstant: syncFailure}}
	writer := &recordingWriter{}

	service := newTestService(testInstance, zap.New(observerCore), bootstrap.Dependencies{
		Lister:       lister,
		Synchronizer: synchronizer,
		Writer:       writer,
	})

	summary, runError := service.Run(context.Background(), defaultRunOptions())
	require.Error(testInstance, runError)

	var failuresError bootstrap.RepositoryFailuresError
	require.ErrorAs(testInstance, runError, &failuresError)
	require.Equal(testInstance, 1, failuresError.FailedCount)
	require.Equal(testInstance, 4, failuresError.TotalCount)

	var syncError worktree.SyncError
	require.ErrorAs(testInstance, runError, &syncError)
	require.Equal(testInstance, testFailingRepositoryConstant, syncError.Repository)

	require.Len(testInstance, summary.Outcomes, 4)
	require.Equal(testInstance, 3, summary.SucceededCount())
	require.Equal(testInstance, 1, summary.FailedCount())
	for _, outcome := range summary.Outcomes {
		if outcome.Repository.Name == testFailingRepositoryConstant {
			require.Equal(testInstance, bootstrap.StageSync, outcome.Stage)
			require.ErrorIs(testInstance, outcome.Error, syncFailure)
			continue
		}
		require.Equal(testInstance, bootstrap.StageComplete, outcome.Stage)
		require.NoError(testInstance, outcome.Error)
	}

	require.Equal(testInstance, []string{
		filepath.Join(testRootDirectoryConstant, "cda-api"),
		filepath.Join(testRootDirectoryConstant, "cda-web"),
		filepath.Join(testRootDirectoryConstant, "cda-worker"),
	}, writer.paths())
	require.Equal(testInstance, int32(1), lister.calls.Load())

	failureLogs := observerLogs.FilterMessage("repository bootstrap failed").All()
	require.Len(testInstance, failureLogs, 1)
	require.Equal(testInstance, testFailingRepositoryConstant, failureLogs[0].ContextMap()["repository"])
	require.Equal(testInstance, "sync", failureLogs[0].ContextMap()["stage"])
}

func TestServiceRunPreservesListingOrder(testInstance *testing.T) {
	names := []string{"cda-a", "cda-b", "cda-c", "cda-d", "cda-e"}
	service := newTestService(testInstance, zap.NewNop(), bootstrap.Dependencies{
		Lister:       &stubLister{descriptors: descriptorsNamed(names...)},
		Synchronizer: &stubSynchronizer{},
		Writer:       &recordingWriter{},
	})

	summary, runError := service.Run(context.Background(), defaultRunOptions())
	require.NoError(testInstance, runError)

	actualNames := make([]string, 0, len(summary.Outcomes))
	for _, outcome := range summary.Outcomes {
		actualNames = append(actualNames, outcome.Repository.Name)
	}
	require.Equal(testInstance, names, actualNames)
}

func TestServiceRunStageFailures(testInstance *testing.T) {
	testCases := []struct {
		name          string
		loader        *stubOverrideLoader
		renderer      bootstrap.ArtifactRenderer
		expectedStage bootstrap.Stage
		expectedError any
	}{
		{
			name:          "override_parse_failure",
			loader:        &stubOverrideLoader{failures: map[string]error{testFailingRepositoryConstant: overrides.ConfigParseError{Path: "cda.yml", Cause: errors.New("bad yaml")}}},
			renderer:      render.NewRenderer(render.Settings{Owner: testOwnerConstant}),
			expectedStage: bootstrap.StageOverrides,
			expectedError: &overrides.ConfigParseError{},
		},
		{
			name:          "render_failure",
			loader:        &stubOverrideLoader{},
			renderer:      render.NewRenderer(render.Settings{}),
			expectedStage: bootstrap.StageRender,
			expectedError: &render.RenderError{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			writer := &recordingWriter{}
			service := newTestService(testInstance, zap.NewNop(), bootstrap.Dependencies{
				Lister:         &stubLister{descriptors: descriptorsNamed(testFailingRepositoryConstant)},
				Synchronizer:   &stubSynchronizer{},
				OverrideLoader: testCase.loader,
				Renderer:       testCase.renderer,
				Writer:         writer,
			})

			summary, runError := service.Run(context.Background(), defaultRunOptions())
			require.Error(testInstance, runError)
			require.ErrorAs(testInstance, runError, testCase.expectedError)
			require.Len(testInstance, summary.Outcomes, 1)
			require.Equal(testInstance, testCase.expectedStage, summary.Outcomes[0].Stage)
			require.Empty(testInstance, writer.paths())
		})
	}
}

func TestServiceRunWriteFailure(testInstance *testing.T) {
	fileSystem := afero.NewReadOnlyFs(afero.NewMemMapFs())
	writer, writerError := bootstrap.NewArtifactFileWriter(fileSystem, "")
	require.NoError(testInstance, writerError)

	service := newTestService(testInstance, zap.NewNop(), bootstrap.Dependencies{
		Lister:       &stubLister{descriptors: descriptorsNamed("cda-api")},
		Synchronizer: &stubSynchronizer{},
		Writer:       writer,
	})

	summary, runError := service.Run(context.Background(), defaultRunOptions())
	var writeError bootstrap.WriteError
	require.ErrorAs(testInstance, runError, &writeError)
	require.Equal(testInstance, bootstrap.StageWrite, summary.Outcomes[0].Stage)
}

func TestServiceRunListingFailureAborts(testInstance *testing.T) {
	listingFailure := githubrepos.ListingError{Owner: testOwnerConstant, Page: 1, StatusCode: 500}
	synchronizer := &stubSynchronizer{}
	service := newTestService(testInstance, zap.NewNop(), bootstrap.Dependencies{
		Lister:       &stubLister{listError: listingFailure},
		Synchronizer: synchronizer,
		Writer:       &recordingWriter{},
	})

	summary, runError := service.Run(context.Background(), defaultRunOptions())
	require.ErrorIs(testInstance, runError, listingFailure)
	require.Empty(testInstance, summary.Outcomes)
	require.Equal(testInstance, int32(0), synchronizer.maxInFlight.Load())
}

func TestServiceRunDryRunSkipsSyncAndWrite(testInstance *testing.T) {
	observerCore, observerLogs := observer.New(zap.InfoLevel)
	synchronizer := &stubSynchronizer{}
	writer := &recordingWriter{}
	service := newTestService(testInstance, zap.New(observerCore), bootstrap.Dependencies{
		Lister:       &stubLister{descriptors: descriptorsNamed("cda-api", "cda-web")},
		Synchronizer: synchronizer,
		Writer:       writer,
	})

	options := defaultRunOptions()
	options.DryRun = true
	summary, runError := service.Run(context.Background(), options)
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 2, summary.SucceededCount())
	require.Equal(testInstance, filepath.Join(testRootDirectoryConstant, "cda-api"), summary.Outcomes[0].LocalPath)
	require.Equal(testInstance, int32(0), synchronizer.maxInFlight.Load())
	require.Empty(testInstance, writer.paths())
	require.Len(testInstance, observerLogs.FilterMessage("dry run: artifacts not written").All(), 2)
}

func TestServiceRunBoundsConcurrency(testInstance *testing.T) {
	synchronizer := &stubSynchronizer{delay: 10 * time.Millisecond}
	service := newTestService(testInstance, zap.NewNop(), bootstrap.Dependencies{
		Lister:       &stubLister{descriptors: descriptorsNamed("cda-1", "cda-2", "cda-3", "cda-4", "cda-5", "cda-6")},
		Synchronizer: synchronizer,
		Writer:       &recordingWriter{},
	})

	options := defaultRunOptions()
	options.Concurrency = 2
	_, runError := service.Run(context.Background(), options)
	require.NoError(testInstance, runError)
	require.LessOrEqual(testInstance, synchronizer.maxInFlight.Load(), int32(2))
	require.GreaterOrEqual(testInstance, synchronizer.maxInFlight.Load(), int32(1))
}

func TestNewServiceValidation(testInstance *testing.T) {
	complete := bootstrap.Dependencies{
		Lister:         &stubLister{},
		Synchronizer:   &stubSynchronizer{},
		OverrideLoader: &stubOverrideLoader{},
		Renderer:       render.NewRenderer(render.Settings{Owner: testOwnerConstant}),
		Writer:         &recordingWriter{},
	}

	testCases := []struct {
		name          string
		mutate        func(dependencies *bootstrap.Dependencies)
		expectedError error
	}{
		{name: "missing_lister", mutate: func(dependencies *bootstrap.Dependencies) { dependencies.Lister = nil }, expectedError: bootstrap.ErrListerNotConfigured},
		{name: "missing_synchronizer", mutate: func(dependencies *bootstrap.Dependencies) { dependencies.Synchronizer = nil }, expectedError: bootstrap.ErrSynchronizerNotConfigured},
		{name: "missing_loader", mutate: func(dependencies *bootstrap.Dependencies) { dependencies.OverrideLoader = nil }, expectedError: bootstrap.ErrOverrideLoaderNotConfigured},
		{name: "missing_renderer", mutate: func(dependencies *bootstrap.Dependencies) { dependencies.Renderer = nil }, expectedError: bootstrap.ErrRendererNotConfigured},
		{name: "missing_writer", mutate: func(dependencies *bootstrap.Dependencies) { dependencies.Writer = nil }, expectedError: bootstrap.ErrWriterNotConfigured},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			dependencies := complete
			testCase.mutate(&dependencies)
			service, creationError := bootstrap.NewService(zap.NewNop(), dependencies)
			require.ErrorIs(testInstance, creationError, testCase.expectedError)
			require.Nil(testInstance, service)
		})
	}
}
