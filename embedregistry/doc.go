// Package embedregistry provides an fs.FS-backed prompt registry that parses every
// YAML manifest at construction. "name.yaml" is the base manifest; "name.env.yaml"
// overrides it for one environment.
package embedregistry
