package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"fields", "check"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "target-dynamics-onprem", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_Flags(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag, "root command should have --config flag")
	assert.Equal(t, "c", flag.Shorthand)

	input := rootCmd.Flags().Lookup("input")
	require.NotNil(t, input, "root command should have --input flag")
	assert.Equal(t, "", input.DefValue)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		configPath = ""
		_ = rootCmd.Flags().Set("input", "")
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestFieldsCommand_NeedsNoCredentials(t *testing.T) {
	configFile := writeFile(t, "config.json", `{"log": {"level": "error"}}`)

	out, err := execute(t, "fields", "--config", configFile, "Vendors")
	require.NoError(t, err)
	assert.Contains(t, out, "# Stream: Vendors")
	assert.Contains(t, out, "Header,countryRegionCode,String,addresses.0.country,Converted to ISO alpha-2 country code")
}

func TestRootCommand_RequiresConfig(t *testing.T) {
	_, err := execute(t, "fields")
	assert.ErrorContains(t, err, "--config is required")
}

func TestRootCommand_WritesRecordsAndState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `/BC/ODataV4/Company("ACME")/workflowItems`, r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"No": "I0001"}`))
	}))
	defer server.Close()

	configFile := writeFile(t, "config.json", `{
		"username": "user",
		"password": "secret",
		"company_id": "ACME",
		"tenant": "BC",
		"basic_auth": true,
		"url_base": "`+server.URL+`",
		"log": {"level": "error"}
	}`)
	input := writeFile(t, "input.jsonl",
		`{"type": "RECORD", "stream": "Items", "record": {"name": "Widget"}}`+"\n")

	out, err := execute(t, "--config", configFile, "--input", input)
	require.NoError(t, err)

	state := gjson.Parse(out)
	assert.Equal(t, "STATE", state.Get("type").String())
	assert.Equal(t, "I0001", state.Get("value.bookmarks.Items.0.id").String())
	assert.True(t, state.Get("value.bookmarks.Items.0.success").Bool())
	assert.Equal(t, int64(1), state.Get("value.summary.Items.success").Int())
}
