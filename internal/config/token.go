package config

import (
	"os"

	"github.com/julianshen/repowiki/internal/wiki"
)

// tokenEnvVars maps each platform to the environment variables consulted
// for an access token, in priority order.
var tokenEnvVars = map[wiki.Platform][]string{
	wiki.PlatformGitHub:    {"GITHUB_TOKEN", "GH_TOKEN"},
	wiki.PlatformGitLab:    {"GITLAB_TOKEN"},
	wiki.PlatformBitbucket: {"BITBUCKET_TOKEN"},
}

// ResolveToken returns the access token for the platform, or an empty
// string when none is set. Public repositories work without one.
func ResolveToken(platform wiki.Platform) string {
	for _, name := range tokenEnvVars[platform] {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}
