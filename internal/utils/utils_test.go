package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	assert.Equal(t, filepath.Join(home, "photos"), ExpandTilde("~/photos"))
	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, "/var/photos", ExpandTilde("/var/photos"))
	assert.Equal(t, "relative/path", ExpandTilde("relative/path"))
}
