package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/.img2img", filepath.Join(home, ".img2img")},
		{"assets/", "assets"},
		{"/tmp/x/../y", "/tmp/y"},
		{"~other/dir", "~other/dir"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandPath(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitName(t *testing.T) {
	dir, name, ext := SplitName("assets/output.png")
	assert.Equal(t, "assets", dir)
	assert.Equal(t, "output", name)
	assert.Equal(t, ".png", ext)

	dir, name, ext = SplitName("output")
	assert.Equal(t, ".", dir)
	assert.Equal(t, "output", name)
	assert.Equal(t, "", ext)
}
