// Package overrides reads the optional per-repository override file that tunes
// the generated artifacts.
package overrides

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileNameConstant is the override file looked up at the working copy root.
	DefaultFileNameConstant = "cda.yml"
	// DockerfileKeyConstant selects a verbatim Dockerfile replacing the default template.
	DockerfileKeyConstant = "dockerfile"

	filesystemNotConfiguredMessageConstant = "override loader filesystem not configured"
	configParseErrorTemplateConstant       = "unable to parse %s: %v"
	readErrorTemplateConstant              = "unable to read %s: %w"
	scalarValueTemplateConstant            = "%v"
	mapstructureTagNameConstant            = "mapstructure"
)

// ErrFileSystemNotConfigured indicates a missing filesystem dependency.
var ErrFileSystemNotConfigured = errors.New(filesystemNotConfiguredMessageConstant)

// Configuration maps override keys to their values.
type Configuration map[string]string

// Dockerfile returns the Dockerfile override when one is present.
func (configuration Configuration) Dockerfile() (string, bool) {
	dockerfileValue, present := configuration[DockerfileKeyConstant]
	return dockerfileValue, present
}

// ConfigParseError reports an override file that exists but cannot be interpreted.
type ConfigParseError struct {
	Path  string
	Cause error
}

// Error describes the parse failure.
func (parseError ConfigParseError) Error() string {
	return fmt.Sprintf(configParseErrorTemplateConstant, parseError.Path, parseError.Cause)
}

// Unwrap exposes the decoder error.
func (parseError ConfigParseError) Unwrap() error {
	return parseError.Cause
}

type overrideDocument struct {
	Dockerfile *string        `mapstructure:"dockerfile"`
	Remaining  map[string]any `mapstructure:",remain"`
}

// Loader reads override files from working copies.
type Loader struct {
	fileSystem afero.Fs
	fileName   string
}

// NewLoader constructs a Loader. An empty fileName selects DefaultFileNameConstant.
func NewLoader(fileSystem afero.Fs, fileName string) (*Loader, error) {
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	trimmedFileName := strings.TrimSpace(fileName)
	if len(trimmedFileName) == 0 {
		trimmedFileName = DefaultFileNameConstant
	}
	return &Loader{fileSystem: fileSystem, fileName: trimmedFileName}, nil
}

// Load returns the overrides stored in the working copy at localPath.
// A missing file yields an empty Configuration.
func (loader *Loader) Load(localPath string) (Configuration, error) {
	overridePath := filepath.Join(localPath, loader.fileName)

	fileContent, readError := afero.ReadFile(loader.fileSystem, overridePath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) || os.IsNotExist(readError) {
			return Configuration{}, nil
		}
		return nil, fmt.Errorf(readErrorTemplateConstant, overridePath, readError)
	}

	return Parse(overridePath, fileContent)
}

// Parse decodes override file content. sourcePath is used for error reporting only.
func Parse(sourcePath string, fileContent []byte) (Configuration, error) {
	var rawDocument map[string]any
	if unmarshalError := yaml.Unmarshal(fileContent, &rawDocument); unmarshalError != nil {
		return nil, ConfigParseError{Path: sourcePath, Cause: unmarshalError}
	}

	var document overrideDocument
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &document,
		TagName: mapstructureTagNameConstant,
	})
	if decoderError != nil {
		return nil, ConfigParseError{Path: sourcePath, Cause: decoderError}
	}
	if decodeError := decoder.Decode(rawDocument); decodeError != nil {
		return nil, ConfigParseError{Path: sourcePath, Cause: decodeError}
	}

	configuration := Configuration{}
	for key, value := range document.Remaining {
		switch value.(type) {
		case string, bool, int, int64, uint64, float64:
			configuration[key] = fmt.Sprintf(scalarValueTemplateConstant, value)
		}
	}
	if document.Dockerfile != nil {
		configuration[DockerfileKeyConstant] = *document.Dockerfile
	}

	return configuration, nil
}
