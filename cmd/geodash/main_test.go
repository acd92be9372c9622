package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/geodash/internal/cli"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "geodash v"+cli.Version)
}

func TestAppsCommandJSON(t *testing.T) {
	out, err := execute(t, "apps", "--output", "json")
	require.NoError(t, err)

	var got struct {
		Apps []struct {
			Name      string `json:"name"`
			Dashboard bool   `json:"dashboard"`
		} `json:"apps"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	dashboards := map[string]bool{}
	for _, a := range got.Apps {
		dashboards[a.Name] = a.Dashboard
	}
	assert.Equal(t, map[string]bool{
		"cars":           true,
		"heatmap":        true,
		"hello":          false,
		"hello-api":      false,
		"hello-template": false,
		"shootings":      true,
	}, dashboards)
}

func TestRenderHello(t *testing.T) {
	out, err := execute(t, "render", "hello")
	require.NoError(t, err)
	assert.Equal(t, "My name is Nick", strings.TrimSpace(out))
}

func TestInitThenConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "init", dir)
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "geodash.yaml")
	_, err = os.Stat(cfgPath)
	require.NoError(t, err)

	out, err := execute(t, "config", "--config", cfgPath, "--output", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "sources:")
	assert.Contains(t, out, "carto")
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "lineage")
	require.Error(t, err)
}
