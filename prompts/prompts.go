// Package prompts embeds the default SafeClick prompt manifests and the payload
// structs generated from them.
package prompts

import (
	"embed"
	"io/fs"

	"github.com/safeclick/safeclick/embedregistry"
)

//go:generate go run ../cmd/safeclick-gen -dir . -out payload_gen.go -pkg prompts

//go:embed *.yaml
var files embed.FS

// FS returns the embedded manifests.
func FS() fs.FS { return files }

// Names lists the prompts every deployment must provide.
var Names = []string{ThreatAnalysisPrompt, VideoAuditPrompt, SOCChatPrompt, IntelSearchPrompt}

// Registry parses the embedded manifests into a read-only registry.
func Registry() (*embedregistry.Registry, error) {
	return embedregistry.New(files, ".", embedregistry.WithRequired(Names...))
}
