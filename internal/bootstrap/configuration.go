package bootstrap

import (
	"strings"

	"github.com/temirov/repostamp/internal/githubrepos"
	"github.com/temirov/repostamp/internal/render"
	"github.com/temirov/repostamp/internal/repos/overrides"
)

const (
	defaultOwnerConstant         = "CdaProd"
	defaultPrefixConstant        = "cda"
	defaultRootDirectoryConstant = "cda_REPOS"
	// DefaultWorkflowPathConstant is the workflow location relative to the working copy root.
	DefaultWorkflowPathConstant       = ".github/workflows/docker-build-and-push.yml"
	configurationKeySeparatorConstant = "."
)

// CommandConfiguration captures configuration values for the bootstrap commands.
type CommandConfiguration struct {
	Owner         string                `mapstructure:"owner"`
	Prefix        string                `mapstructure:"prefix"`
	RootDirectory string                `mapstructure:"root"`
	APIBaseURL    string                `mapstructure:"api_base_url"`
	Concurrency   int                   `mapstructure:"concurrency"`
	OverrideFile  string                `mapstructure:"override_file"`
	WorkflowPath  string                `mapstructure:"workflow_path"`
	DryRun        bool                  `mapstructure:"dry_run"`
	Template      TemplateConfiguration `mapstructure:"template"`
}

// TemplateConfiguration configures the rendered artifacts.
type TemplateConfiguration struct {
	DefaultDockerfile string   `mapstructure:"default_dockerfile"`
	PrimaryRegistry   string   `mapstructure:"primary_registry"`
	SecondaryRegistry string   `mapstructure:"secondary_registry"`
	Platforms         []string `mapstructure:"platforms"`
	Runner            string   `mapstructure:"runner"`
}

// DefaultCommandConfiguration provides baseline configuration values.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Owner:         defaultOwnerConstant,
		Prefix:        defaultPrefixConstant,
		RootDirectory: defaultRootDirectoryConstant,
		APIBaseURL:    githubrepos.DefaultAPIBaseURLConstant,
		Concurrency:   0,
		OverrideFile:  overrides.DefaultFileNameConstant,
		WorkflowPath:  DefaultWorkflowPathConstant,
		DryRun:        false,
		Template: TemplateConfiguration{
			DefaultDockerfile: render.DefaultDockerfileConstant,
			PrimaryRegistry:   render.DefaultPrimaryRegistryConstant,
			SecondaryRegistry: render.DefaultSecondaryRegistryConstant,
			Platforms:         append([]string{}, render.DefaultPlatforms...),
			Runner:            render.DefaultRunnerConstant,
		},
	}
}

// DefaultConfigurationValues returns viper defaults keyed under configurationKey.
func DefaultConfigurationValues(configurationKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		joinKey(configurationKey, "owner"):                       defaults.Owner,
		joinKey(configurationKey, "prefix"):                      defaults.Prefix,
		joinKey(configurationKey, "root"):                        defaults.RootDirectory,
		joinKey(configurationKey, "api_base_url"):                defaults.APIBaseURL,
		joinKey(configurationKey, "concurrency"):                 defaults.Concurrency,
		joinKey(configurationKey, "override_file"):               defaults.OverrideFile,
		joinKey(configurationKey, "workflow_path"):               defaults.WorkflowPath,
		joinKey(configurationKey, "dry_run"):                     defaults.DryRun,
		joinKey(configurationKey, "template.default_dockerfile"): defaults.Template.DefaultDockerfile,
		joinKey(configurationKey, "template.primary_registry"):   defaults.Template.PrimaryRegistry,
		joinKey(configurationKey, "template.secondary_registry"): defaults.Template.SecondaryRegistry,
		joinKey(configurationKey, "template.platforms"):          defaults.Template.Platforms,
		joinKey(configurationKey, "template.runner"):             defaults.Template.Runner,
	}
}

// RenderSettings converts the template configuration into renderer settings.
func (configuration CommandConfiguration) RenderSettings() render.Settings {
	return render.Settings{
		Owner:             configuration.Owner,
		PrimaryRegistry:   configuration.Template.PrimaryRegistry,
		SecondaryRegistry: configuration.Template.SecondaryRegistry,
		Platforms:         append([]string{}, configuration.Template.Platforms...),
		Runner:            configuration.Template.Runner,
		DefaultDockerfile: configuration.Template.DefaultDockerfile,
	}
}

// sanitize trims configuration values without applying implicit defaults.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration

	sanitized.Owner = strings.TrimSpace(configuration.Owner)
	sanitized.RootDirectory = strings.TrimSpace(configuration.RootDirectory)
	sanitized.APIBaseURL = strings.TrimSpace(configuration.APIBaseURL)
	sanitized.OverrideFile = strings.TrimSpace(configuration.OverrideFile)
	sanitized.WorkflowPath = strings.TrimSpace(configuration.WorkflowPath)
	if sanitized.Concurrency < 0 {
		sanitized.Concurrency = 0
	}

	return sanitized
}

func joinKey(prefix string, key string) string {
	if len(prefix) == 0 {
		return key
	}
	return prefix + configurationKeySeparatorConstant + key
}
