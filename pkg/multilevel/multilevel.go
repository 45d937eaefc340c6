// Package multilevel builds a hierarchy of clusterings by clustering
// successively reduced versions of a base network.
//
// Level 0 clusters the base network. Level k clusters the network obtained by
// collapsing the clusters of levels 0..k-1, at a strictly lower resolution
// than level k-1. The clustering of the base network at level k is obtained by
// composing the stored per-level clusterings.
//
// A MultiLevelClustering is not safe for concurrent use.
package multilevel

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/publication-classification/pkg/clustering"
	"github.com/gilchrisn/publication-classification/pkg/network"
)

// Algorithm is the single-level clustering capability used to build each
// level. SetResolution configures the next FindClustering call.
type Algorithm interface {
	SetResolution(resolution float64)
	FindClustering(net *network.Network) (*clustering.Clustering, error)
	RemoveSmallClustersBasedOnWeight(net *network.Network, c *clustering.Clustering, minClusterWeight float64) error
}

// level is the clustering of the reduced network at one level together with
// the parameters that produced it
type level struct {
	reducedClustering *clustering.Clustering
	resolution        float64
	threshold         float64
}

// LevelSummary describes one level for reporting
type LevelSummary struct {
	Level      int     `json:"level"`
	Resolution float64 `json:"resolution"`
	Threshold  float64 `json:"threshold"`
	NClusters  int     `json:"n_clusters"`
}

// MultiLevelClustering owns a base network and the ordered list of levels
// built on top of it.
type MultiLevelClustering struct {
	network   *network.Network
	algorithm Algorithm
	levels    []level
	logger    zerolog.Logger
	progress  bool
}

// Option configures a MultiLevelClustering
type Option func(*MultiLevelClustering)

// WithLogger sets the logger used for progress reporting
func WithLogger(logger zerolog.Logger) Option {
	return func(m *MultiLevelClustering) { m.logger = logger }
}

// WithProgress toggles progress reporting while adding levels
func WithProgress(enabled bool) Option {
	return func(m *MultiLevelClustering) { m.progress = enabled }
}

// New creates an empty multi-level clustering of a network
func New(net *network.Network, algorithm Algorithm, opts ...Option) (*MultiLevelClustering, error) {
	if net == nil {
		return nil, fmt.Errorf("network is nil")
	}
	if algorithm == nil {
		return nil, fmt.Errorf("clustering algorithm is nil")
	}

	m := &MultiLevelClustering{
		network:   net,
		algorithm: algorithm,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NLevels returns the number of levels
func (m *MultiLevelClustering) NLevels() int {
	return len(m.levels)
}

// AddLevel clusters the network reduced by all existing levels and appends
// the result as a new top level. The resolution must be non-negative and
// strictly lower than the resolution of the current top level. Clusters with
// a total node weight below threshold are reassigned. On error no level is
// added.
func (m *MultiLevelClustering) AddLevel(resolution, threshold float64) error {
	if !(resolution >= 0) || math.IsInf(resolution, 1) {
		return fmt.Errorf("%w: %g", ErrInvalidResolution, resolution)
	}
	nLevels := len(m.levels)
	if nLevels > 0 && !(resolution < m.levels[nLevels-1].resolution) {
		return &InvalidResolutionOrderError{
			Resolution:         resolution,
			PreviousResolution: m.levels[nLevels-1].resolution,
		}
	}

	reducedNetwork, err := m.ReducedNetwork(nLevels)
	if err != nil {
		return err
	}
	nodeWeights := reducedNetwork.NodeWeights()

	// Create clustering
	m.algorithm.SetResolution(resolution)
	reducedClustering, err := m.algorithm.FindClustering(reducedNetwork)
	if err != nil {
		return fmt.Errorf("finding clustering at level %d: %w", nLevels, err)
	}
	if reducedClustering == nil || reducedClustering.NNodes() != reducedNetwork.NNodes() {
		return fmt.Errorf("finding clustering at level %d: clustering does not cover the %d nodes of the reduced network", nLevels, reducedNetwork.NNodes())
	}
	if err := normalize(reducedClustering, nodeWeights); err != nil {
		return fmt.Errorf("ordering clusters at level %d: %w", nLevels, err)
	}
	if m.progress {
		m.logger.Info().
			Int("level_no", nLevels).
			Int("clusters", reducedClustering.NClusters()).
			Msg("Clusters created")
	}

	// Reassign small clusters
	if err := m.algorithm.RemoveSmallClustersBasedOnWeight(reducedNetwork, reducedClustering, threshold); err != nil {
		return fmt.Errorf("reassigning small clusters at level %d: %w", nLevels, err)
	}
	if err := normalize(reducedClustering, nodeWeights); err != nil {
		return fmt.Errorf("ordering clusters at level %d: %w", nLevels, err)
	}
	if m.progress {
		m.logger.Info().
			Int("level_no", nLevels).
			Int("clusters", reducedClustering.NClusters()).
			Float64("threshold", threshold).
			Msg("Clusters remaining after reassigning small clusters")
	}

	m.levels = append(m.levels, level{
		reducedClustering: reducedClustering,
		resolution:        resolution,
		threshold:         threshold,
	})
	return nil
}

// normalize numbers clusters by descending weight and drops empty clusters
func normalize(c *clustering.Clustering, nodeWeights []float64) error {
	if err := c.OrderClustersByWeight(nodeWeights); err != nil {
		return err
	}
	c.RemoveEmptyClusters()
	return nil
}

// RemoveLevel removes level n and all higher levels, leaving exactly n
// levels. It is a no-op when n >= NLevels().
func (m *MultiLevelClustering) RemoveLevel(n int) {
	if n < 0 {
		n = 0
	}
	if n >= len(m.levels) {
		return
	}
	clear(m.levels[n:])
	m.levels = m.levels[:n]
}

func (m *MultiLevelClustering) checkLevel(l int) error {
	if l < 0 || l >= len(m.levels) {
		return &LevelOutOfRangeError{Level: l, NLevels: len(m.levels)}
	}
	return nil
}

// Resolution returns the resolution used at a level
func (m *MultiLevelClustering) Resolution(l int) (float64, error) {
	if err := m.checkLevel(l); err != nil {
		return 0, err
	}
	return m.levels[l].resolution, nil
}

// Threshold returns the minimum cluster weight used at a level
func (m *MultiLevelClustering) Threshold(l int) (float64, error) {
	if err := m.checkLevel(l); err != nil {
		return 0, err
	}
	return m.levels[l].threshold, nil
}

// NClusters returns the number of clusters at a level
func (m *MultiLevelClustering) NClusters(l int) (int, error) {
	if err := m.checkLevel(l); err != nil {
		return 0, err
	}
	return m.levels[l].reducedClustering.NClusters(), nil
}

// Levels returns a summary of every level
func (m *MultiLevelClustering) Levels() []LevelSummary {
	summaries := make([]LevelSummary, len(m.levels))
	for i, lv := range m.levels {
		summaries[i] = LevelSummary{
			Level:      i,
			Resolution: lv.resolution,
			Threshold:  lv.threshold,
			NClusters:  lv.reducedClustering.NClusters(),
		}
	}
	return summaries
}

// Clustering returns the clustering of the base network at a level. The
// result is a fresh value owned by the caller.
func (m *MultiLevelClustering) Clustering(l int) (*clustering.Clustering, error) {
	if err := m.checkLevel(l); err != nil {
		return nil, err
	}

	c := m.levels[0].reducedClustering.Clone()
	for i := 1; i <= l; i++ {
		if err := c.MergeClusters(m.levels[i].reducedClustering); err != nil {
			return nil, fmt.Errorf("merging level %d: %w", i, err)
		}
	}
	return c, nil
}

// ReducedClustering returns a copy of the clustering of the reduced network
// at a level
func (m *MultiLevelClustering) ReducedClustering(l int) (*clustering.Clustering, error) {
	if err := m.checkLevel(l); err != nil {
		return nil, err
	}
	return m.levels[l].reducedClustering.Clone(), nil
}

// ReducedNetwork returns the network clustered at a level: the base network
// for level 0, and otherwise the base network collapsed by the clusterings of
// all lower levels. l may equal NLevels(), which gives the network the next
// AddLevel will cluster.
func (m *MultiLevelClustering) ReducedNetwork(l int) (*network.Network, error) {
	if l < 0 || l > len(m.levels) {
		return nil, &LevelOutOfRangeError{Level: l, NLevels: len(m.levels) + 1}
	}

	reduced := m.network
	for i := 0; i < l; i++ {
		next, err := reduced.CreateReducedNetwork(m.levels[i].reducedClustering)
		if err != nil {
			return nil, fmt.Errorf("reducing network at level %d: %w", i, err)
		}
		reduced = next
	}
	return reduced, nil
}

// Network returns the base network
func (m *MultiLevelClustering) Network() *network.Network {
	return m.network
}
