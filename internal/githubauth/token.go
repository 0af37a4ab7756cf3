// Package githubauth locates the GitHub token used for REST API calls.
package githubauth

import (
	"os"
	"strings"
)

// Environment variable names consulted for a GitHub token, in order of preference.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// ResolveToken returns the first non-blank token found in environment, falling back
// to the process environment when the map yields none.
func ResolveToken(environment map[string]string) (string, bool) {
	mapLookup := func(key string) (string, bool) {
		value, exists := environment[key]
		return value, exists
	}

	for _, lookup := range []func(string) (string, bool){mapLookup, os.LookupEnv} {
		for _, key := range tokenPreference {
			if value, exists := lookup(key); exists {
				if trimmedValue := strings.TrimSpace(value); len(trimmedValue) > 0 {
					return trimmedValue, true
				}
			}
		}
	}

	return "", false
}
