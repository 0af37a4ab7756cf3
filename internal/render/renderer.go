package render

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/repostamp/internal/githubrepos"
	"github.com/temirov/repostamp/internal/repos/overrides"
)

// Template defaults.
const (
	DefaultDockerfileConstant        = "FROM python:3.8-slim\nCOPY . /app\nWORKDIR /app\nCMD python app.py"
	DefaultPrimaryRegistryConstant   = "docker.io"
	DefaultSecondaryRegistryConstant = "ghcr.io"
	DefaultRunnerConstant            = "self-hosted"
)

// DefaultPlatforms lists the architectures images are built for.
var DefaultPlatforms = []string{"linux/amd64", "linux/arm64"}

const (
	workflowNameConstant                  = "Docker Build and Push"
	workflowPushTriggerConstant           = "push"
	workflowBuildJobNameConstant          = "build"
	checkoutActionConstant                = "actions/checkout@v2"
	qemuStepNameConstant                  = "Set up QEMU"
	qemuActionConstant                    = "docker/setup-qemu-action@v1"
	buildxStepNameConstant                = "Set up Docker Buildx"
	buildxActionConstant                  = "docker/setup-buildx-action@v1"
	dockerHubLoginStepNameConstant        = "Log in to Docker Hub"
	registryLoginStepNameConstant         = "Log in to GitHub Container Registry"
	loginActionConstant                   = "docker/login-action@v1"
	buildPushStepNameConstant             = "Build and push"
	buildPushActionConstant               = "docker/build-push-action@v2"
	dockerHubUsernameSecretConstant       = "${{ secrets.DOCKERHUB_USERNAME }}"
	dockerHubPasswordSecretConstant       = "${{ secrets.DOCKERHUB_TOKEN }}"
	registryUsernameReferenceConstant     = "${{ github.repository_owner }}"
	registryPasswordSecretConstant        = "${{ secrets.GH_TOKEN }}"
	buildContextConstant                  = "."
	buildPushEnabledConstant              = "true"
	imageTagTemplateConstant              = "%s/%s/%s:latest"
	platformSeparatorConstant             = ","
	yamlIndentConstant                    = 2
	missingRepositoryNameMessageConstant  = "repository name is required"
	missingOwnerMessageConstant           = "owner account is required"
	renderErrorTemplateConstant           = "rendering artifacts for %q failed: %v"
	workflowEncodingErrorTemplateConstant = "unable to encode workflow: %w"
)

var (
	errMissingRepositoryName = errors.New(missingRepositoryNameMessageConstant)
	errMissingOwner          = errors.New(missingOwnerMessageConstant)
)

// RenderError reports structurally invalid render input.
type RenderError struct {
	Repository string
	Cause      error
}

// Error describes the render failure.
func (renderError RenderError) Error() string {
	return fmt.Sprintf(renderErrorTemplateConstant, renderError.Repository, renderError.Cause)
}

// Unwrap exposes the underlying cause.
func (renderError RenderError) Unwrap() error {
	return renderError.Cause
}

// Settings configures the templates shared by every repository.
type Settings struct {
	Owner             string
	PrimaryRegistry   string
	SecondaryRegistry string
	Platforms         []string
	Runner            string
	DefaultDockerfile string
}

// Artifacts holds the rendered file contents.
type Artifacts struct {
	Dockerfile string
	Workflow   string
}

// Renderer renders artifacts from immutable Settings.
type Renderer struct {
	settings Settings
}

// NewRenderer constructs a Renderer, filling unset settings with defaults.
func NewRenderer(settings Settings) *Renderer {
	resolvedSettings := Settings{
		Owner:             strings.TrimSpace(settings.Owner),
		PrimaryRegistry:   valueOrDefault(settings.PrimaryRegistry, DefaultPrimaryRegistryConstant),
		SecondaryRegistry: valueOrDefault(settings.SecondaryRegistry, DefaultSecondaryRegistryConstant),
		Runner:            valueOrDefault(settings.Runner, DefaultRunnerConstant),
		DefaultDockerfile: settings.DefaultDockerfile,
	}
	if len(strings.TrimSpace(resolvedSettings.DefaultDockerfile)) == 0 {
		resolvedSettings.DefaultDockerfile = DefaultDockerfileConstant
	}

	for _, platform := range settings.Platforms {
		if trimmedPlatform := strings.TrimSpace(platform); len(trimmedPlatform) > 0 {
			resolvedSettings.Platforms = append(resolvedSettings.Platforms, trimmedPlatform)
		}
	}
	if len(resolvedSettings.Platforms) == 0 {
		resolvedSettings.Platforms = append([]string{}, DefaultPlatforms...)
	}

	return &Renderer{settings: resolvedSettings}
}

// Settings returns the resolved settings.
func (renderer *Renderer) Settings() Settings {
	settingsCopy := renderer.settings
	settingsCopy.Platforms = append([]string{}, renderer.settings.Platforms...)
	return settingsCopy
}

// ImageTags returns the image references pushed for repositoryName.
func (renderer *Renderer) ImageTags(repositoryName string) []string {
	return []string{
		fmt.Sprintf(imageTagTemplateConstant, renderer.settings.PrimaryRegistry, renderer.settings.Owner, repositoryName),
		fmt.Sprintf(imageTagTemplateConstant, renderer.settings.SecondaryRegistry, renderer.settings.Owner, repositoryName),
	}
}

// Render produces the Dockerfile and workflow for a repository.
func (renderer *Renderer) Render(descriptor githubrepos.RepositoryDescriptor, overrideConfiguration overrides.Configuration) (Artifacts, error) {
	repositoryName := strings.TrimSpace(descriptor.Name)
	if len(repositoryName) == 0 {
		return Artifacts{}, RenderError{Repository: descriptor.Name, Cause: errMissingRepositoryName}
	}
	if len(renderer.settings.Owner) == 0 {
		return Artifacts{}, RenderError{Repository: repositoryName, Cause: errMissingOwner}
	}

	dockerfileContent := renderer.settings.DefaultDockerfile
	if overrideDockerfile, present := overrideConfiguration.Dockerfile(); present {
		dockerfileContent = overrideDockerfile
	}

	workflowContent, encodingError := encodeWorkflow(renderer.buildWorkflow(repositoryName))
	if encodingError != nil {
		return Artifacts{}, RenderError{Repository: repositoryName, Cause: encodingError}
	}

	return Artifacts{Dockerfile: dockerfileContent, Workflow: workflowContent}, nil
}

func (renderer *Renderer) buildWorkflow(repositoryName string) workflowDocument {
	return workflowDocument{
		Name: workflowNameConstant,
		On:   []string{workflowPushTriggerConstant},
		Jobs: map[string]workflowJob{
			workflowBuildJobNameConstant: {
				RunsOn: renderer.settings.Runner,
				Steps: []workflowStep{
					{Uses: checkoutActionConstant},
					{Name: qemuStepNameConstant, Uses: qemuActionConstant},
					{Name: buildxStepNameConstant, Uses: buildxActionConstant},
					{
						Name: dockerHubLoginStepNameConstant,
						Uses: loginActionConstant,
						With: &stepInputs{
							Username: dockerHubUsernameSecretConstant,
							Password: dockerHubPasswordSecretConstant,
						},
					},
					{
						Name: registryLoginStepNameConstant,
						Uses: loginActionConstant,
						With: &stepInputs{
							Registry: renderer.settings.SecondaryRegistry,
							Username: registryUsernameReferenceConstant,
							Password: registryPasswordSecretConstant,
						},
					},
					{
						Name: buildPushStepNameConstant,
						Uses: buildPushActionConstant,
						With: &stepInputs{
							Context:   buildContextConstant,
							Push:      buildPushEnabledConstant,
							Tags:      renderer.ImageTags(repositoryName),
							Platforms: strings.Join(renderer.settings.Platforms, platformSeparatorConstant),
						},
					},
				},
			},
		},
	}
}

func encodeWorkflow(document workflowDocument) (string, error) {
	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(yamlIndentConstant)
	if encodeError := encoder.Encode(document); encodeError != nil {
		return "", fmt.Errorf(workflowEncodingErrorTemplateConstant, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return "", fmt.Errorf(workflowEncodingErrorTemplateConstant, closeError)
	}
	return buffer.String(), nil
}

func valueOrDefault(value string, defaultValue string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return defaultValue
	}
	return trimmedValue
}
