package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thoughtsFile = `{"thoughts": [
	{"id": "t1", "content": "I wonder why the sky is blue", "wonderScore": 0.8},
	{"id": "t2", "content": "I wonder why the sky is blue"},
	{"id": "t3", "content": "grocery list for tuesday"}
]}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	configPath, dbPath, outputJSON, verbose = "", "", false, false
	return out.String(), err
}

func TestAnalyzeThenPath(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "thoughts.json")
	require.NoError(t, os.WriteFile(input, []byte(thoughtsFile), 0o600))
	db := filepath.Join(dir, "thoughtweb.db")

	out, err := run(t, "analyze", input, "--db", db, "--json")
	require.NoError(t, err)

	var report AnalysisReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Thoughts)
	assert.NotEmpty(t, report.Connections)
	assert.Equal(t, 3, report.Stats.Nodes)

	out, err = run(t, "path", "t2", "t1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "t2 -> t1")

	out, err = run(t, "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Memories:     3")
}

func TestPathRequiresDatabase(t *testing.T) {
	_, err := run(t, "path", "a", "b")
	assert.ErrorContains(t, err, "--db is required")
}

func TestReadThoughts(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"array", `[{"content":"a"},{"content":"b"}]`, 2, false},
		{"wrapped", thoughtsFile, 3, false},
		{"garbage", `nope`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			got, err := readThoughts(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}
