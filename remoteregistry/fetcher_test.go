package remoteregistry

import (
	"testing"

	"github.com/safeclick/safeclick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, env string
		valid     bool
	}{
		{"", "", false},
		{"threat_analysis", "", true},
		{"threat_analysis", "prod", true},
		{"soc-chat", "", true},
		{"a/b", "", false},
		{`a\b`, "", false},
		{"..", "", false},
		{"x", "../prod", false},
		{".hidden", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name+"|"+tt.env, func(t *testing.T) {
			t.Parallel()
			err := ValidateName(tt.name, tt.env)
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, safeclick.ErrInvalidName)
		})
	}
}

func TestCandidatePaths(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"video_audit.yaml", "video_audit.yml"}, CandidatePaths("video_audit", ""))
	assert.Equal(t,
		[]string{"video_audit.prod.yaml", "video_audit.prod.yml", "video_audit.yaml", "video_audit.yml"},
		CandidatePaths("video_audit", "prod"))
}
