// Package pathutils normalizes user-supplied filesystem locations.
package pathutils

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	tildeSymbolConstant = "~"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander converts a leading tilde into the user's home directory.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
}

// NewHomeExpander constructs a HomeExpander using the operating system lookup.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{homeDirectoryProvider: provider}
}

// Expand trims candidatePath and resolves "~" or a "~/" prefix against the home directory.
// Paths naming another user's home ("~bob") are returned unchanged.
func (expander *HomeExpander) Expand(candidatePath string) string {
	trimmedPath := strings.TrimSpace(candidatePath)
	if expander == nil || !strings.HasPrefix(trimmedPath, tildeSymbolConstant) {
		return trimmedPath
	}

	remainder := strings.TrimPrefix(trimmedPath, tildeSymbolConstant)
	if len(remainder) > 0 && remainder[0] != '/' && remainder[0] != os.PathSeparator {
		return trimmedPath
	}

	homeDirectory, homeDirectoryError := expander.homeDirectoryProvider()
	if homeDirectoryError != nil || len(homeDirectory) == 0 {
		return trimmedPath
	}

	return filepath.Join(homeDirectory, remainder)
}
