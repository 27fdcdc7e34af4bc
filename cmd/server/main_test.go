package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass-auth/internal/config"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	for _, sub := range []string{"serve", "migrate"} {
		assert.Contains(t, buf.String(), sub, "help missing %q command", sub)
	}
}

func TestMigrateCommand_ConfigError(t *testing.T) {
	original := loadConfig
	t.Cleanup(func() { loadConfig = original })
	loadConfig = func() (*config.Config, error) {
		return nil, errors.New("JWT_SECRET is required")
	}

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"migrate"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestMigrateCommand_RequiresDatabaseURL(t *testing.T) {
	original := loadConfig
	t.Cleanup(func() { loadConfig = original })
	loadConfig = func() (*config.Config, error) {
		return &config.Config{Environment: config.EnvironmentDevelopment, JWTSecret: "s"}, nil
	}

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"migrate"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, out.String(), "Running migrations")
}
