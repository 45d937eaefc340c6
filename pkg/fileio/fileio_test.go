package fileio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadNetwork(t *testing.T) {
	dir := t.TempDir()
	pubFile := writeFile(t, dir, "pubs.txt", "0\t1\n1\ttrue\n2\t0\n3\tFALSE\n")
	linkFile := writeFile(t, dir, "links.txt", "0\t1\t1\n0\t2\t0.5\n1\t0\t1\n2\t3\t2\n")

	net, err := ReadNetwork(pubFile, linkFile)
	require.NoError(t, err)

	assert.Equal(t, 4, net.NNodes())
	assert.Equal(t, []float64{1, 1, 0, 0}, net.NodeWeights())
	assert.Equal(t, 3, net.NEdges())

	neighbors, weights := net.Neighbors(0)
	assert.Equal(t, []int{1, 2}, neighbors)
	assert.Equal(t, []float64{2, 0.5}, weights)
}

func TestReadNetworkCRLF(t *testing.T) {
	dir := t.TempDir()
	pubFile := writeFile(t, dir, "pubs.txt", "0\t1\r\n1\t1\r\n")
	linkFile := writeFile(t, dir, "links.txt", "0\t1\t3\r\n")

	net, err := ReadNetwork(pubFile, linkFile)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, net.NodeWeights())
	assert.Equal(t, 3.0, net.TotalEdgeWeight())
}

func TestReadNetworkErrors(t *testing.T) {
	testCases := []struct {
		name  string
		pubs  string
		links string
		want  string
	}{
		{"PubColumns", "0\t1\t2\n", "", "incorrect number of columns (line 1)"},
		{"PubNumber", "0\t1\nx\t1\n", "", "publication numbers must be integers starting at zero (line 2)"},
		{"PubNegative", "-1\t1\n", "", "publication numbers must be integers starting at zero (line 1)"},
		{"PubOrder", "0\t1\n2\t1\n", "", "sorted by the publication numbers in the first column (line 2)"},
		{"LinkColumns", "0\t1\n1\t1\n", "0\t1\n", "incorrect number of columns (line 1)"},
		{"LinkWeight", "0\t1\n1\t1\n", "0\t1\t1\n1\t0\theavy\n", "citation link weight must be a number (line 2)"},
		{"LinkOrder", "0\t1\n1\t1\n2\t1\n", "1\t2\t1\n0\t1\t1\n", "not sorted"},
		{"LinkUnknownPub", "0\t1\n1\t1\n", "0\t5\t1\n", "out of range"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			pubFile := writeFile(t, dir, "pubs.txt", tc.pubs)
			linkFile := writeFile(t, dir, "links.txt", tc.links)

			_, err := ReadNetwork(pubFile, linkFile)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("MissingFile", func(t *testing.T) {
		_, err := ReadNetwork(filepath.Join(t.TempDir(), "missing.txt"), "links.txt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading publications file")
	})
}

func TestParsePublications(t *testing.T) {
	weights, err := parsePublications(strings.NewReader("0\t1\n1\tTrue\n2\tno\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 0}, weights)

	weights, err = parsePublications(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, weights)
}

func TestWriteClassification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classification.txt")

	err := WriteClassification(path, []int{0, 4, 7}, [][]int{
		{0, 1, 1},
		{0, 0, 0},
	})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0\t0\t0\n4\t1\t0\n7\t1\t0\n", string(content))
}

func TestWriteClassificationLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classification.txt")
	err := WriteClassification(path, []int{0, 1}, [][]int{{0}})
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
