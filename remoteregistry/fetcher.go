package remoteregistry

import (
	"context"

	"github.com/safeclick/safeclick"
)

// Fetcher returns raw YAML manifest bytes for a template name and environment.
//
// Return ErrNotFound when no manifest exists; Registry maps it to safeclick.ErrTemplateNotFound.
// Wrap transport failures in ErrFetchFailed.
type Fetcher interface {
	Fetch(ctx context.Context, name, env string) ([]byte, error)
}

// ValidateName checks that name and env are safe to use in URLs, paths and cache keys.
func ValidateName(name, env string) error {
	return safeclick.ValidateName(name, env)
}

// CandidatePaths lists manifest file names in resolution order: the env overlay first, then the base.
func CandidatePaths(name, env string) []string {
	if env == "" {
		return []string{name + ".yaml", name + ".yml"}
	}
	return []string{name + "." + env + ".yaml", name + "." + env + ".yml", name + ".yaml", name + ".yml"}
}
