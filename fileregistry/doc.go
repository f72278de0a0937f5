// Package fileregistry provides a directory-backed prompt registry that parses YAML
// manifests on first lookup and caches them until Reload.
package fileregistry
