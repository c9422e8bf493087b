package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-nickname-bot/internal/store"
)

func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nicknames.json")
	st, err := store.Open(path, store.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.True(t, st.Add(-100, 1, "alice", "Ali"))
	require.True(t, st.Add(-100, 2, "bob", "Bobby"))
	require.True(t, st.Add(-200, 3, "carol", "Caz"))
	return path
}

func TestInspect_JSON(t *testing.T) {
	path := seedStore(t)
	var out bytes.Buffer
	require.NoError(t, runInspect(&out, inspectOptions{file: path, output: "json"}))

	var dump []groupDump
	require.NoError(t, json.Unmarshal(out.Bytes(), &dump))
	require.Len(t, dump, 2)
	require.Equal(t, int64(-200), dump[0].GroupID)
	require.Equal(t, int64(-100), dump[1].GroupID)
	require.Len(t, dump[1].Nicknames, 2)
	require.Equal(t, "Ali", dump[1].Nicknames[0].Nickname)
	require.Equal(t, "Bobby", dump[1].Nicknames[1].Nickname)
}

func TestInspect_YAMLWithGroupFilter(t *testing.T) {
	path := seedStore(t)
	var out bytes.Buffer
	require.NoError(t, runInspect(&out, inspectOptions{file: path, group: -200, output: "YAML"}))

	var dump []groupDump
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &dump))
	require.Len(t, dump, 1)
	require.Equal(t, int64(-200), dump[0].GroupID)
	require.Equal(t, "carol", dump[0].Nicknames[0].Username)
	require.Contains(t, out.String(), "nickname: Caz")
}

func TestInspect_UnknownGroupPrintsEmptyList(t *testing.T) {
	path := seedStore(t)
	var out bytes.Buffer
	require.NoError(t, runInspect(&out, inspectOptions{file: path, group: -999, output: "json"}))
	require.JSONEq(t, `[]`, out.String())
}

func TestInspect_Errors(t *testing.T) {
	path := seedStore(t)
	var out bytes.Buffer

	err := runInspect(&out, inspectOptions{file: path, output: "xml"})
	require.ErrorContains(t, err, "unknown output format")

	err = runInspect(&out, inspectOptions{file: filepath.Join(t.TempDir(), "missing.json"), output: "json"})
	require.ErrorContains(t, err, "storage file")
	require.Empty(t, out.String())
}

func TestRootCmd_Inspect(t *testing.T) {
	path := seedStore(t)
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"inspect", "--file", path, "--group=-100", "-o", "yaml"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "group_id: -100")
	require.NotContains(t, out.String(), "group_id: -200")
}

func TestRootCmd_Version(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), version)
}

func TestEnvOr(t *testing.T) {
	t.Setenv("NICKBOT_TEST_VALUE", "")
	require.Equal(t, "fallback", envOr("NICKBOT_TEST_VALUE", "fallback"))
	t.Setenv("NICKBOT_TEST_VALUE", "set")
	require.Equal(t, "set", envOr("NICKBOT_TEST_VALUE", "fallback"))
}
