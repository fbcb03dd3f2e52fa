package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_RunScenario(t *testing.T) {
	file := filepath.Join("..", "..", "scenarios", "join-leave.yaml")
	err := App.RunContext(context.Background(), []string{"dynamokv", "run", "--stores", "--tail", "5", "--tail-node", "10", file})
	require.NoError(t, err)
}

func TestApp_RunRequiresScenario(t *testing.T) {
	err := App.RunContext(context.Background(), []string{"dynamokv", "run"})
	assert.Error(t, err)
}

func TestApp_RunRejectsBadScenario(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.yaml")
	err := App.RunContext(context.Background(), []string{"dynamokv", "run", file})
	assert.Error(t, err)
}
