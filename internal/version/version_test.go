package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, c, d := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = v, c, d })

	Version, GitCommit, BuildDate = "v1.2.0", "abc123", "2024-05-06"
	assert.Equal(t, "v1.2.0 (commit: abc123, built: 2024-05-06)", String())

	gotV, gotC, gotD := Info()
	assert.Equal(t, []string{"v1.2.0", "abc123", "2024-05-06"}, []string{gotV, gotC, gotD})
}
