package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/video-transcript/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.YouTube.APIKey = "test-key"
	cfg.Storage.ScratchDir = filepath.Join(dir, "scratch")
	cfg.Storage.Database = filepath.Join(dir, "jobs.db")
	return cfg
}

func TestNewWithAWS(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fallback.Policy = config.PolicyStrict

	a, err := NewWithAWS(context.Background(), cfg, aws.Config{Region: "us-east-2"}, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, config.PolicyStrict, a.Service.Policy())
	assert.DirExists(t, cfg.Storage.ScratchDir)

	jobs, err := a.Registry.ListJobs(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestNewWithAWSRejectsBadProxy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Captions.ProxyURL = "http://127.0.0.1:3128"

	_, err := NewWithAWS(context.Background(), cfg, aws.Config{Region: "us-east-2"}, zerolog.Nop())
	assert.Error(t, err)
}
