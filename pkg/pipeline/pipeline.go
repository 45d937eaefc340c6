// Package pipeline creates a multi-level publication classification: it
// reads a citation network, optionally restricts it to its largest connected
// component, adds one Leiden level per configured level and writes the
// resulting classification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/gilchrisn/publication-classification/pkg/leiden"
	"github.com/gilchrisn/publication-classification/pkg/multilevel"
	"github.com/gilchrisn/publication-classification/pkg/network"
)

// LevelResult describes one level of a finished classification
type LevelResult struct {
	Name       string        `json:"name"`
	Resolution float64       `json:"resolution"`
	Threshold  float64       `json:"threshold"`
	NClusters  int           `json:"n_clusters"`
	Duration   time.Duration `json:"duration"`
}

// Result is a finished classification. Clusters[l][i] is the cluster of
// publication Pubs[i] at level l.
type Result struct {
	NPublications  int           `json:"n_publications"`
	NCitationLinks int           `json:"n_citation_links"`
	Pubs           []int         `json:"pubs,omitempty"`
	Levels         []LevelResult `json:"levels"`
	Clusters       [][]int       `json:"clusters,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Run creates a classification of the network provided by src and writes it
// to sink. A nil sink skips writing.
func Run(ctx context.Context, cfg *Config, src Source, sink Sink, logger zerolog.Logger) (*Result, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if src == nil {
		return nil, errors.New("source is nil")
	}
	startTime := time.Now()

	// Read citation network
	logger.Info().Str("source", src.Name()).Msg("Reading citation network")
	readStart := time.Now()
	net, err := src.ReadNetwork(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading citation network from %s: %w", src.Name(), err)
	}
	if net == nil {
		return nil, fmt.Errorf("reading citation network from %s: no network", src.Name())
	}
	logger.Info().
		Str("took", FormatDuration(time.Since(readStart))).
		Msg("Finished reading citation network")
	logNetwork(logger, "Citation network", net)

	pubs := make([]int, net.NNodes())
	for i := range pubs {
		pubs[i] = i
	}

	if cfg.LargestComponent && net.NNodes() > 0 {
		componentStart := time.Now()
		components := net.IdentifyComponents()
		sub, err := net.CreateSubnetwork(components, 0)
		if err != nil {
			return nil, fmt.Errorf("creating largest connected component: %w", err)
		}
		pubs = components.NodesPerCluster()[0]
		net = sub

		logger.Info().
			Int("components", components.NClusters()).
			Str("took", FormatDuration(time.Since(componentStart))).
			Msg("Identified largest connected component")
		logNetwork(logger, "Largest connected component", net)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Create classification
	algorithm, err := leiden.NewFromConfig(cfg.Algorithm(), logger.With().Str("component", "leiden").Logger())
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("algorithm", "leiden").
		Int("n_iterations", cfg.NIterations).
		Float64("randomness", cfg.Randomness).
		Int64("seed", cfg.Seed).
		Msg("Creating publication classification")

	classification, err := multilevel.New(net, algorithm,
		multilevel.WithLogger(logger),
		multilevel.WithProgress(cfg.Progress),
	)
	if err != nil {
		return nil, err
	}

	result := &Result{
		NPublications:  net.NNodes(),
		NCitationLinks: net.NEdges(),
		Pubs:           pubs,
		Levels:         make([]LevelResult, 0, len(cfg.Levels)),
		Clusters:       make([][]int, 0, len(cfg.Levels)),
	}

	for i, level := range cfg.Levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		levelStart := time.Now()
		logger.Info().Str("level_name", level.Name).Msg("Adding classification level")
		if err := classification.AddLevel(level.Resolution, level.Threshold); err != nil {
			return nil, fmt.Errorf("adding %s level: %w", level.Name, err)
		}
		nClusters, err := classification.NClusters(i)
		if err != nil {
			return nil, err
		}
		duration := time.Since(levelStart)

		logger.Info().
			Str("level_name", level.Name).
			Float64("resolution", level.Resolution).
			Float64("threshold", level.Threshold).
			Int("clusters", nClusters).
			Str("took", FormatDuration(duration)).
			Msg("Classification level added")

		result.Levels = append(result.Levels, LevelResult{
			Name:       level.Name,
			Resolution: level.Resolution,
			Threshold:  level.Threshold,
			NClusters:  nClusters,
			Duration:   duration,
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range cfg.Levels {
		c, err := classification.Clustering(i)
		if err != nil {
			return nil, err
		}
		result.Clusters = append(result.Clusters, c.Clusters())
	}

	// Write classification
	if sink != nil {
		writeStart := time.Now()
		logger.Info().Str("sink", sink.Name()).Msg("Writing publication classification")
		if err := sink.WriteClassification(ctx, pubs, result.Clusters, cfg.LevelNames()); err != nil {
			return nil, fmt.Errorf("writing publication classification to %s: %w", sink.Name(), err)
		}
		logger.Info().
			Str("took", FormatDuration(time.Since(writeStart))).
			Msg("Finished writing publication classification")
	}

	result.Duration = time.Since(startTime)
	logger.Info().
		Str("took", FormatDuration(result.Duration)).
		Msg("Publication classification created")

	return result, nil
}

func logNetwork(logger zerolog.Logger, msg string, net *network.Network) {
	degrees := net.TotalEdgeWeightPerNode()
	if len(degrees) == 0 {
		degrees = []float64{0}
	}
	logger.Info().
		Int("publications", net.NNodes()).
		Int("citation_links", net.NEdges()).
		Int("total_publication_weight", int(net.TotalNodeWeight()+0.5)).
		Int("total_citation_link_weight", int(net.TotalEdgeWeight()+0.5)).
		Float64("max_publication_degree", floats.Max(degrees)).
		Msg(msg)
}

// FormatDuration formats a duration as hours, minutes and whole seconds
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", seconds/3600, (seconds%3600)/60, seconds%60)
}
