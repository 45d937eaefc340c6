package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/publication-classification/pkg/dbio"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeCommunities writes a triangle on publications 0-2 and a clique on
// 3-6 joined by a weak link
func writeCommunities(t *testing.T, dir string) (string, string) {
	t.Helper()
	pubFile := filepath.Join(dir, "pubs.txt")
	linkFile := filepath.Join(dir, "links.txt")
	pubs := "0\t1\n1\t1\n2\t1\n3\t1\n4\t1\n5\t1\n6\t1\n"
	links := "0\t1\t1\n0\t2\t1\n1\t2\t1\n2\t3\t0.1\n" +
		"3\t4\t1\n3\t5\t1\n3\t6\t1\n4\t5\t1\n4\t6\t1\n5\t6\t1\n"
	require.NoError(t, os.WriteFile(pubFile, []byte(pubs), 0o644))
	require.NoError(t, os.WriteFile(linkFile, []byte(links), 0o644))
	return pubFile, linkFile
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "pubclass", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
		assert.NotNil(t, sub.RunE, sub.Name())
	}
	assert.True(t, names["files"])
	assert.True(t, names["db"])
	assert.True(t, names["serve"])
}

func TestFilesCommand(t *testing.T) {
	dir := t.TempDir()
	pubFile, linkFile := writeCommunities(t, dir)
	outFile := filepath.Join(dir, "classification.txt")

	out, err := execute(t, "files", pubFile, linkFile, outFile,
		"--n-iterations", "10",
		"--level", "micro:0.5:1",
		"--level", "macro:0.001:1",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Publication classification created")

	content, err := os.ReadFile(outFile)
	require.NoError(t, err)
	// The heavier clique is numbered first; the coarse level joins both
	assert.Equal(t, "0\t1\t0\n1\t1\t0\n2\t1\t0\n3\t0\t0\n4\t0\t0\n5\t0\t0\n6\t0\t0\n", string(content))
}

func TestFilesCommandQuiet(t *testing.T) {
	dir := t.TempDir()
	pubFile, linkFile := writeCommunities(t, dir)

	out, err := execute(t, "files", pubFile, linkFile, filepath.Join(dir, "out.txt"),
		"--quiet", "--level", "micro:0.5:1")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFilesCommandConfigFile(t *testing.T) {
	dir := t.TempDir()
	pubFile, linkFile := writeCommunities(t, dir)
	configFile := filepath.Join(dir, "pubclass.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
n_iterations: 10
levels:
  - name: only
    resolution: 0.5
    threshold: 1
`), 0o644))
	outFile := filepath.Join(dir, "out.txt")

	_, err := execute(t, "files", pubFile, linkFile, outFile, "--config", configFile, "--quiet")
	require.NoError(t, err)

	content, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "0\t1\n1\t1\n2\t1\n3\t0\n4\t0\n5\t0\n6\t0\n", string(content))
}

func TestFilesCommandErrors(t *testing.T) {
	dir := t.TempDir()
	pubFile, linkFile := writeCommunities(t, dir)
	outFile := filepath.Join(dir, "out.txt")

	testCases := []struct {
		name string
		args []string
	}{
		{"MissingArgs", []string{"files", pubFile}},
		{"InvalidIterations", []string{"files", pubFile, linkFile, outFile, "--n-iterations", "0"}},
		{"MalformedLevel", []string{"files", pubFile, linkFile, outFile, "--level", "micro:0.5"}},
		{"IncreasingResolution", []string{"files", pubFile, linkFile, outFile, "--level", "a:0.1:1", "--level", "b:0.2:1"}},
		{"MissingInput", []string{"files", filepath.Join(dir, "missing.txt"), linkFile, outFile, "--level", "micro:0.5:1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			assert.Error(t, err)
		})
	}
}

func TestDBCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "pubclass.db")
	db, err := dbio.Open(dbio.DriverSQLite, dsn)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec("CREATE TABLE pubs (pub_no INTEGER, core_pub INTEGER)")
	require.NoError(t, err)
	_, err = db.Conn().Exec("CREATE TABLE cit_links (pub_no1 INTEGER, pub_no2 INTEGER, cit_weight REAL)")
	require.NoError(t, err)
	_, err = db.Conn().Exec("INSERT INTO pubs VALUES (0, 1), (1, 1), (2, 1)")
	require.NoError(t, err)
	_, err = db.Conn().Exec("INSERT INTO cit_links VALUES (0, 1, 1.0), (0, 2, 1.0), (1, 2, 1.0)")
	require.NoError(t, err)

	out, err := execute(t, "db", "pubs", "cit_links", "classification",
		"--dsn", dsn, "--level", "micro:0.5:1", "--level", "macro:0.1:1")
	require.NoError(t, err, out)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM classification WHERE micro_cluster_no = 0 AND macro_cluster_no = 0").Scan(&count))
	assert.Equal(t, 3, count)
}

func TestDBCommandRequiresDSN(t *testing.T) {
	t.Setenv("PUBCLASS_DATABASE_DSN", "")
	_, err := execute(t, "db", "pubs", "cit_links", "classification", "--level", "micro:0.5:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN")
}
