// Package remoteregistry serves prompt manifests fetched from a remote source (HTTP, or Git
// via the git subpackage), cached with a TTL. Concurrent misses for one template share a
// single fetch.
package remoteregistry
