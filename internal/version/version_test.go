package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reset(t *testing.T, v, c, d string) {
	t.Helper()
	oldV, oldC, oldD := Version, Commit, BuildDate
	Version, Commit, BuildDate = v, c, d
	t.Cleanup(func() { Version, Commit, BuildDate = oldV, oldC, oldD })
}

func TestFill(t *testing.T) {
	reset(t, "dev", "unknown", "unknown")

	fill(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		},
	})

	assert.Equal(t, "v0.3.1 (commit: 0123456789ab, built: 2026-10-01T12:00:00Z)", String())
}

func TestFill_LdflagsWin(t *testing.T) {
	reset(t, "v1.0.0", "abc", "today")

	fill(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffff"}},
	})

	assert.Equal(t, "v1.0.0 (commit: abc, built: today)", String())
}
