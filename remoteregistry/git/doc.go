// Package git provides a remoteregistry.Fetcher that serves prompt manifests from the
// working tree of a Git clone.
package git
