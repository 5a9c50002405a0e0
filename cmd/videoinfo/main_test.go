package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRequiresVideoID(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"get"})

	assert.Error(t, cmd.Execute())
}

func TestGetRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "test-key")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"get", "abc123",
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--policy", "lenient",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fallback policy")
}
