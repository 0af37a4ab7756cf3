package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repostamp/internal/execshell"
	"github.com/temirov/repostamp/internal/githubauth"
	"github.com/temirov/repostamp/internal/githubrepos"
	"github.com/temirov/repostamp/internal/render"
	"github.com/temirov/repostamp/internal/repos/overrides"
	"github.com/temirov/repostamp/internal/repos/worktree"
	"github.com/temirov/repostamp/internal/ui"
	pathutils "github.com/temirov/repostamp/internal/utils/path"
)

const (
	bootstrapCommandUseConstant              = "bootstrap"
	bootstrapCommandShortDescriptionConstant = "Clone or update matching repositories and stamp Dockerfile and CI workflow"
	bootstrapCommandLongDescriptionConstant  = "bootstrap lists every repository of the owner whose name starts with the prefix, clones or pulls it under the root directory, and overwrites its Dockerfile and GitHub Actions workflow."
	listCommandUseConstant                   = "list"
	listCommandShortDescriptionConstant      = "List repositories selected by the owner and prefix"
	renderCommandUseConstant                 = "render <repository-name>"
	renderCommandShortDescriptionConstant    = "Print the Dockerfile and workflow generated for a repository"
	flagOwnerNameConstant                    = "owner"
	flagOwnerDescriptionConstant             = "GitHub account whose repositories are processed"
	flagPrefixNameConstant                   = "prefix"
	flagPrefixDescriptionConstant            = "Repository name prefix selecting repositories"
	flagRootNameConstant                     = "root"
	flagRootDescriptionConstant              = "Directory holding local working copies"
	flagConcurrencyNameConstant              = "concurrency"
	flagConcurrencyDescriptionConstant       = "Maximum repositories processed in parallel (0 selects a CPU-based default)"
	flagDryRunNameConstant                   = "dry-run"
	flagDryRunDescriptionConstant            = "Render artifacts without running git or writing files"
	flagAPIURLNameConstant                   = "api-url"
	flagAPIURLDescriptionConstant            = "GitHub REST API base URL"
	flagOverrideFileNameConstant             = "override-file"
	flagOverrideFileDescriptionConstant      = "Override file applied when rendering"
	renderArgumentCountConstant              = 1
	renderSectionTemplateConstant            = "# %s\n%s\n"
	tokenMissingMessageTemplateConstant      = "a GitHub token is required: set %s"
	unexpectedArgumentsMessageConstant       = "command does not accept positional arguments"
	bootstrapFailedErrorTemplateConstant     = "bootstrap failed: %w"
	listFailedErrorTemplateConstant          = "list failed: %w"
	renderFailedErrorTemplateConstant        = "render failed: %w"
	overrideFileReadErrorTemplateConstant    = "unable to read override file %s: %w"
)

var (
	// ErrTokenMissing indicates that no GitHub token was found in the environment.
	ErrTokenMissing        = fmt.Errorf(tokenMissingMessageTemplateConstant, githubauth.EnvGitHubCLIToken)
	errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the bootstrap configuration resolved at startup.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the Cobra commands for bootstrapping repositories.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        ConfigurationProvider
	Executor                     worktree.GitExecutor
	FileSystem                   afero.Fs
	HTTPClient                   *http.Client
	Environment                  map[string]string
	Output                       io.Writer
	HomeExpander                 *pathutils.HomeExpander
}

// Build constructs the bootstrap command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   bootstrapCommandUseConstant,
		Short: bootstrapCommandShortDescriptionConstant,
		Long:  bootstrapCommandLongDescriptionConstant,
		RunE:  builder.runBootstrap,
	}

	command.Flags().String(flagOwnerNameConstant, "", flagOwnerDescriptionConstant)
	command.Flags().String(flagPrefixNameConstant, "", flagPrefixDescriptionConstant)
	command.Flags().String(flagRootNameConstant, "", flagRootDescriptionConstant)
	command.Flags().Int(flagConcurrencyNameConstant, 0, flagConcurrencyDescriptionConstant)
	command.Flags().Bool(flagDryRunNameConstant, false, flagDryRunDescriptionConstant)
	command.Flags().String(flagAPIURLNameConstant, "", flagAPIURLDescriptionConstant)

	return command, nil
}

// BuildList constructs the list command.
func (builder *CommandBuilder) BuildList() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   listCommandUseConstant,
		Short: listCommandShortDescriptionConstant,
		RunE:  builder.runList,
	}

	command.Flags().String(flagOwnerNameConstant, "", flagOwnerDescriptionConstant)
	command.Flags().String(flagPrefixNameConstant, "", flagPrefixDescriptionConstant)
	command.Flags().String(flagAPIURLNameConstant, "", flagAPIURLDescriptionConstant)

	return command, nil
}

// BuildRender constructs the render command.
func (builder *CommandBuilder) BuildRender() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   renderCommandUseConstant,
		Short: renderCommandShortDescriptionConstant,
		Args:  cobra.ExactArgs(renderArgumentCountConstant),
		RunE:  builder.runRender,
	}

	command.Flags().String(flagOwnerNameConstant, "", flagOwnerDescriptionConstant)
	command.Flags().String(flagOverrideFileNameConstant, "", flagOverrideFileDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) runBootstrap(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	configuration := builder.resolveConfiguration(command)
	token, tokenError := builder.resolveToken()
	if tokenError != nil {
		return tokenError
	}

	logger := builder.resolveLogger()
	lister, listerError := githubrepos.NewLister(logger, githubrepos.ClientConfiguration{
		APIBaseURL: configuration.APIBaseURL,
		Token:      token,
		HTTPClient: builder.HTTPClient,
	})
	if listerError != nil {
		return listerError
	}

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return executorError
	}

	fileSystem := builder.resolveFileSystem()
	synchronizer, synchronizerError := worktree.NewSynchronizer(logger, executor, fileSystem)
	if synchronizerError != nil {
		return synchronizerError
	}

	overrideLoader, loaderError := overrides.NewLoader(fileSystem, configuration.OverrideFile)
	if loaderError != nil {
		return loaderError
	}

	artifactWriter, writerError := NewArtifactFileWriter(fileSystem, configuration.WorkflowPath)
	if writerError != nil {
		return writerError
	}

	service, serviceError := NewService(logger, Dependencies{
		Lister:         lister,
		Synchronizer:   synchronizer,
		OverrideLoader: overrideLoader,
		Renderer:       render.NewRenderer(configuration.RenderSettings()),
		Writer:         artifactWriter,
	})
	if serviceError != nil {
		return serviceError
	}

	summary, runError := service.Run(command.Context(), RunOptions{
		Owner:         configuration.Owner,
		Prefix:        configuration.Prefix,
		RootDirectory: configuration.RootDirectory,
		Concurrency:   configuration.Concurrency,
		DryRun:        configuration.DryRun,
	})
	var failuresError RepositoryFailuresError
	if runError == nil || errors.As(runError, &failuresError) {
		ui.NewSummaryPrinter(builder.resolveOutput(command)).PrintSummary(summaryStatuses(summary))
	}
	if runError != nil {
		return fmt.Errorf(bootstrapFailedErrorTemplateConstant, runError)
	}

	return nil
}

func (builder *CommandBuilder) runList(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	configuration := builder.resolveConfiguration(command)
	token, tokenError := builder.resolveToken()
	if tokenError != nil {
		return tokenError
	}

	lister, listerError := githubrepos.NewLister(builder.resolveLogger(), githubrepos.ClientConfiguration{
		APIBaseURL: configuration.APIBaseURL,
		Token:      token,
		HTTPClient: builder.HTTPClient,
	})
	if listerError != nil {
		return listerError
	}

	descriptors, listError := lister.ListRepositories(command.Context(), configuration.Owner, configuration.Prefix)
	if listError != nil {
		return fmt.Errorf(listFailedErrorTemplateConstant, listError)
	}

	repositoryNames := make([]string, 0, len(descriptors))
	for _, descriptor := range descriptors {
		repositoryNames = append(repositoryNames, descriptor.Name)
	}
	ui.NewSummaryPrinter(builder.resolveOutput(command)).PrintRepositoryNames(repositoryNames)

	return nil
}

func (builder *CommandBuilder) runRender(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration(command)

	overrideConfiguration := overrides.Configuration{}
	overrideFilePath, _ := command.Flags().GetString(flagOverrideFileNameConstant)
	if trimmedPath := strings.TrimSpace(overrideFilePath); len(trimmedPath) > 0 {
		fileContent, readError := afero.ReadFile(builder.resolveFileSystem(), trimmedPath)
		if readError != nil {
			return fmt.Errorf(overrideFileReadErrorTemplateConstant, trimmedPath, readError)
		}
		parsedConfiguration, parseError := overrides.Parse(trimmedPath, fileContent)
		if parseError != nil {
			return fmt.Errorf(renderFailedErrorTemplateConstant, parseError)
		}
		overrideConfiguration = parsedConfiguration
	}

	descriptor := githubrepos.RepositoryDescriptor{Name: strings.TrimSpace(arguments[0])}
	artifacts, renderError := render.NewRenderer(configuration.RenderSettings()).Render(descriptor, overrideConfiguration)
	if renderError != nil {
		return fmt.Errorf(renderFailedErrorTemplateConstant, renderError)
	}

	output := builder.resolveOutput(command)
	fmt.Fprintf(output, renderSectionTemplateConstant, DockerfileNameConstant, artifacts.Dockerfile)
	fmt.Fprintf(output, renderSectionTemplateConstant, configuration.WorkflowPath, artifacts.Workflow)

	return nil
}

func (builder *CommandBuilder) resolveConfiguration(command *cobra.Command) CommandConfiguration {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	flagSet := command.Flags()
	if flagSet.Changed(flagOwnerNameConstant) {
		configuration.Owner, _ = flagSet.GetString(flagOwnerNameConstant)
	}
	if flagSet.Changed(flagPrefixNameConstant) {
		configuration.Prefix, _ = flagSet.GetString(flagPrefixNameConstant)
	}
	if flagSet.Changed(flagRootNameConstant) {
		configuration.RootDirectory, _ = flagSet.GetString(flagRootNameConstant)
	}
	if flagSet.Changed(flagConcurrencyNameConstant) {
		configuration.Concurrency, _ = flagSet.GetInt(flagConcurrencyNameConstant)
	}
	if flagSet.Changed(flagDryRunNameConstant) {
		configuration.DryRun, _ = flagSet.GetBool(flagDryRunNameConstant)
	}
	if flagSet.Changed(flagAPIURLNameConstant) {
		configuration.APIBaseURL, _ = flagSet.GetString(flagAPIURLNameConstant)
	}
	if len(strings.TrimSpace(configuration.WorkflowPath)) == 0 {
		configuration.WorkflowPath = DefaultWorkflowPathConstant
	}

	sanitized := configuration.sanitize()

	homeExpander := builder.HomeExpander
	if homeExpander == nil {
		homeExpander = pathutils.NewHomeExpander()
	}
	sanitized.RootDirectory = homeExpander.Expand(sanitized.RootDirectory)

	return sanitized
}

func (builder *CommandBuilder) resolveToken() (string, error) {
	token, found := githubauth.ResolveToken(builder.Environment)
	if !found {
		return "", ErrTokenMissing
	}
	return token, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (worktree.GitExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	var observers []execshell.CommandEventObserver
	if builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider() {
		observers = append(observers, ui.NewConsoleCommandEventLogger(logger))
	}

	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), observers...)
	if creationError != nil {
		return nil, creationError
	}

	return shellExecutor, nil
}

func (builder *CommandBuilder) resolveFileSystem() afero.Fs {
	if builder.FileSystem != nil {
		return builder.FileSystem
	}
	return afero.NewOsFs()
}

func (builder *CommandBuilder) resolveOutput(command *cobra.Command) io.Writer {
	if builder.Output != nil {
		return builder.Output
	}
	if command != nil {
		return command.OutOrStdout()
	}
	return os.Stdout
}

func summaryStatuses(summary RunSummary) []ui.RepositoryStatus {
	statuses := make([]ui.RepositoryStatus, 0, len(summary.Outcomes))
	for _, outcome := range summary.Outcomes {
		statuses = append(statuses, ui.RepositoryStatus{
			Name:  outcome.Repository.Name,
			Stage: string(outcome.Stage),
			Error: outcome.Error,
		})
	}
	return statuses
}
