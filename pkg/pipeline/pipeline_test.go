package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/publication-classification/pkg/dbio"
	"github.com/gilchrisn/publication-classification/pkg/network"
)

// writeNetworkFiles writes a K5 on publications 0-4, a triangle on 5-7 and
// an isolated publication 8
func writeNetworkFiles(t *testing.T, dir string) (string, string) {
	t.Helper()
	var pubs, links strings.Builder
	for i := 0; i < 9; i++ {
		fmt.Fprintf(&pubs, "%d\t1\n", i)
	}
	for i := 0; i < 5; i++ {
		for j := i + 1; j < 5; j++ {
			fmt.Fprintf(&links, "%d\t%d\t1\n", i, j)
		}
	}
	links.WriteString("5\t6\t1\n5\t7\t1\n6\t7\t1\n")

	pubFile := filepath.Join(dir, "pubs.txt")
	linkFile := filepath.Join(dir, "links.txt")
	require.NoError(t, os.WriteFile(pubFile, []byte(pubs.String()), 0o644))
	require.NoError(t, os.WriteFile(linkFile, []byte(links.String()), 0o644))
	return pubFile, linkFile
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.NIterations = 10
	cfg.Levels = []LevelConfig{
		{Name: "micro", Resolution: 0.5, Threshold: 1},
		{Name: "macro", Resolution: 0.1, Threshold: 1},
	}
	return &cfg
}

type failingSource struct{ err error }

func (s failingSource) Name() string { return "failing" }

func (s failingSource) ReadNetwork(ctx context.Context) (*network.Network, error) {
	return nil, s.err
}

func TestRunFiles(t *testing.T) {
	dir := t.TempDir()
	pubFile, linkFile := writeNetworkFiles(t, dir)
	outFile := filepath.Join(dir, "classification.txt")

	result, err := Run(context.Background(), testConfig(),
		FileSource{PubFile: pubFile, CitLinkFile: linkFile},
		FileSink{Path: outFile},
		zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 9, result.NPublications)
	assert.Equal(t, 13, result.NCitationLinks)
	require.Len(t, result.Levels, 2)
	assert.Equal(t, "micro", result.Levels[0].Name)
	assert.Equal(t, 3, result.Levels[0].NClusters)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 1, 1, 1, 2}, result.Clusters[0])
	// Nothing links the clusters, so the macro level keeps them
	assert.Equal(t, result.Clusters[0], result.Clusters[1])

	content, err := os.ReadFile(outFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "0\t0\t0", lines[0])
	assert.Equal(t, "5\t1\t1", lines[5])
	assert.Equal(t, "8\t2\t2", lines[8])
}

func TestRunLargestComponent(t *testing.T) {
	dir := t.TempDir()
	pubFile, linkFile := writeNetworkFiles(t, dir)
	outFile := filepath.Join(dir, "classification.txt")

	cfg := testConfig()
	cfg.LargestComponent = true

	result, err := Run(context.Background(), cfg,
		FileSource{PubFile: pubFile, CitLinkFile: linkFile},
		FileSink{Path: outFile},
		zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 5, result.NPublications)
	assert.Equal(t, 10, result.NCitationLinks)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, result.Pubs)

	content, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "0\t0\t0\n1\t0\t0\n2\t0\t0\n3\t0\t0\n4\t0\t0\n", string(content))
}

func TestRunDatabase(t *testing.T) {
	db, err := dbio.Open(dbio.DriverSQLite, filepath.Join(t.TempDir(), "pubclass.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec("CREATE TABLE pubs (pub_no INTEGER, core_pub INTEGER)")
	require.NoError(t, err)
	_, err = db.Conn().Exec("CREATE TABLE cit_links (pub_no1 INTEGER, pub_no2 INTEGER, cit_weight REAL)")
	require.NoError(t, err)
	_, err = db.Conn().Exec("INSERT INTO pubs VALUES (0, 1), (1, 1), (2, 1), (3, 0)")
	require.NoError(t, err)
	_, err = db.Conn().Exec("INSERT INTO cit_links VALUES (0, 1, 1.0), (0, 2, 1.0), (1, 2, 1.0)")
	require.NoError(t, err)

	cfg := testConfig()
	_, err = Run(context.Background(), cfg,
		DatabaseSource{DB: db, PubTable: "pubs", CitLinkTable: "cit_links"},
		DatabaseSink{DB: db, Table: "classification"},
		zerolog.Nop())
	require.NoError(t, err)

	var count, micro int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM classification").Scan(&count))
	assert.Equal(t, 4, count)
	require.NoError(t, db.Conn().QueryRow("SELECT micro_cluster_no FROM classification WHERE pub_no = 2").Scan(&micro))
	assert.Equal(t, 0, micro)
}

func TestRunLogsProgress(t *testing.T) {
	dir := t.TempDir()
	pubFile, linkFile := writeNetworkFiles(t, dir)

	var buf bytes.Buffer
	cfg := testConfig()
	cfg.Progress = true

	_, err := Run(context.Background(), cfg,
		FileSource{PubFile: pubFile, CitLinkFile: linkFile},
		nil,
		zerolog.New(&buf))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Citation network")
	assert.Contains(t, out, `"max_publication_degree":4`)
	assert.Contains(t, out, `"level_name":"micro"`)
	assert.Contains(t, out, "Clusters remaining after reassigning small clusters")
	assert.NotContains(t, out, "Writing publication classification")
}

func TestRunErrors(t *testing.T) {
	failure := errors.New("unreachable")

	t.Run("Source", func(t *testing.T) {
		_, err := Run(context.Background(), testConfig(), failingSource{err: failure}, nil, zerolog.Nop())
		assert.True(t, errors.Is(err, failure))
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		cfg := testConfig()
		cfg.NIterations = 0
		_, err := Run(context.Background(), cfg, failingSource{err: failure}, nil, zerolog.Nop())
		require.Error(t, err)
		assert.False(t, errors.Is(err, failure))
	})

	t.Run("Cancelled", func(t *testing.T) {
		net, err := network.New([]float64{1, 1}, []network.Link{{From: 0, To: 1, Weight: 1}})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = Run(ctx, testConfig(), NetworkSource{Network: net}, nil, zerolog.Nop())
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("CancelledDuringLastLevel", func(t *testing.T) {
		pubFile, linkFile := writeNetworkFiles(t, t.TempDir())
		outFile := filepath.Join(t.TempDir(), "classification.txt")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		added := 0
		logger := zerolog.New(io.Discard).Hook(zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
			if msg == "Classification level added" {
				added++
				if added == len(testConfig().Levels) {
					cancel()
				}
			}
		}))

		_, err := Run(ctx, testConfig(), FileSource{PubFile: pubFile, CitLinkFile: linkFile}, FileSink{Path: outFile}, logger)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.NoFileExists(t, outFile)
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"Default", func(*Config) {}, true},
		{"ZeroIterations", func(c *Config) { c.NIterations = 0 }, false},
		{"ZeroRandomness", func(c *Config) { c.Randomness = 0 }, false},
		{"NoLevels", func(c *Config) { c.Levels = nil }, false},
		{"NegativeResolution", func(c *Config) { c.Levels[2].Resolution = -1 }, false},
		{"NegativeThreshold", func(c *Config) { c.Levels[1].Threshold = -1 }, false},
		{"ZeroFirstThreshold", func(c *Config) { c.Levels[0].Threshold = 0 }, false},
		{"ZeroLaterThreshold", func(c *Config) { c.Levels[1].Threshold = 0 }, true},
		{"EqualResolutions", func(c *Config) { c.Levels[1].Resolution = c.Levels[0].Resolution }, false},
		{"IncreasingResolutions", func(c *Config) { c.Levels[2].Resolution = 1 }, false},
		{"NaNResolution", func(c *Config) { c.Levels[1].Resolution = math.NaN() }, false},
		{"NaNThenHigherResolution", func(c *Config) {
			c.Levels[1].Resolution = math.NaN()
			c.Levels[2].Resolution = 5
		}, false},
		{"InfiniteFirstResolution", func(c *Config) { c.Levels[0].Resolution = math.Inf(1) }, false},
		{"NaNThreshold", func(c *Config) { c.Levels[2].Threshold = math.NaN() }, false},
		{"NaNRandomness", func(c *Config) { c.Randomness = math.NaN() }, false},
		{"InvalidName", func(c *Config) { c.Levels[0].Name = "micro-level" }, false},
		{"DuplicateName", func(c *Config) { c.Levels[1].Name = "micro" }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), *cfg)
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pubclass.yaml")
		content := `
largest_component: true
n_iterations: 5
seed: 42
levels:
  - name: fine
    resolution: 0.5
    threshold: 10
  - name: coarse
    resolution: 0.05
    threshold: 100
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.True(t, cfg.LargestComponent)
		assert.Equal(t, 5, cfg.NIterations)
		assert.Equal(t, int64(42), cfg.Seed)
		assert.Equal(t, []LevelConfig{
			{Name: "fine", Resolution: 0.5, Threshold: 10},
			{Name: "coarse", Resolution: 0.05, Threshold: 100},
		}, cfg.Levels)
		assert.Equal(t, []string{"fine", "coarse"}, cfg.LevelNames())
	})

	t.Run("Environment", func(t *testing.T) {
		t.Setenv("PUBCLASS_N_ITERATIONS", "7")
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.NIterations)
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Setenv("PUBCLASS_N_ITERATIONS", "-1")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("micro:0.001:50")
	require.NoError(t, err)
	assert.Equal(t, LevelConfig{Name: "micro", Resolution: 0.001, Threshold: 50}, level)

	for _, s := range []string{"micro", "micro:x:1", "micro:1:y", "a:1:2:3"} {
		_, err := ParseLevel(s)
		assert.Error(t, err, s)
	}

	nan, err := ParseLevel("micro:NaN:50")
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Levels = []LevelConfig{nan, {Name: "meso", Resolution: 5, Threshold: 10}}
	assert.Error(t, cfg.Validate())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0h 0m 0s", FormatDuration(900*time.Millisecond))
	assert.Equal(t, "1h 2m 5s", FormatDuration(3725*time.Second))
	assert.Equal(t, "26h 0m 59s", FormatDuration(26*time.Hour+59*time.Second))
}
