package leiden

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/publication-classification/pkg/clustering"
	"github.com/gilchrisn/publication-classification/pkg/network"
)

func path(t *testing.T, n int) *network.Network {
	t.Helper()
	links := make([]network.Link, 0, n-1)
	for i := 0; i+1 < n; i++ {
		links = append(links, network.Link{From: i, To: i + 1, Weight: 1})
	}
	net, err := network.New(unitWeights(n), links)
	require.NoError(t, err)
	return net
}

func TestRemoveSmallClustersBasedOnWeight(t *testing.T) {
	t.Run("MergesLightestFirst", func(t *testing.T) {
		net := path(t, 5)
		c, err := clustering.FromClusters([]int{0, 1, 2, 3, 3})
		require.NoError(t, err)

		l := New(1, 1, DefaultRandomness, 0)
		require.NoError(t, l.RemoveSmallClustersBasedOnWeight(net, c, 2))

		// Cluster 0 joins 1; cluster 2 then ties between 1 and 3 and picks 1
		assert.Equal(t, []int{1, 1, 1, 3, 3}, c.Clusters())
	})

	t.Run("NoClusterBelowThreshold", func(t *testing.T) {
		net := path(t, 5)
		c := clustering.New(5)

		l := New(1, 1, DefaultRandomness, 0)
		require.NoError(t, l.RemoveSmallClustersBasedOnWeight(net, c, 2))

		weights, err := c.ClusterWeights(net.NodeWeights())
		require.NoError(t, err)
		for cluster, w := range weights {
			if w > 0 {
				assert.GreaterOrEqual(t, w, 2.0, "cluster %d", cluster)
			}
		}
	})

	t.Run("PrefersStrongestLink", func(t *testing.T) {
		net, err := network.New(unitWeights(4), []network.Link{
			{From: 0, To: 1, Weight: 1},
			{From: 1, To: 2, Weight: 3},
			{From: 2, To: 3, Weight: 1},
		})
		require.NoError(t, err)
		c, err := clustering.FromClusters([]int{0, 0, 1, 2})
		require.NoError(t, err)

		require.NoError(t, New(1, 1, 0, 0).RemoveSmallClustersBasedOnWeight(net, c, 2))
		assert.Equal(t, []int{0, 0, 0, 0}, c.Clusters())
	})

	t.Run("IsolatedClusterKept", func(t *testing.T) {
		net, err := network.New(unitWeights(3), []network.Link{{From: 0, To: 1, Weight: 1}})
		require.NoError(t, err)
		c, err := clustering.FromClusters([]int{0, 0, 1})
		require.NoError(t, err)

		require.NoError(t, New(1, 1, 0, 0).RemoveSmallClustersBasedOnWeight(net, c, 5))
		assert.Equal(t, []int{0, 0, 1}, c.Clusters())
	})

	t.Run("ZeroWeightClusterReassigned", func(t *testing.T) {
		net, err := network.New([]float64{1, 1, 0}, []network.Link{
			{From: 0, To: 1, Weight: 1},
			{From: 1, To: 2, Weight: 1},
		})
		require.NoError(t, err)
		c, err := clustering.FromClusters([]int{0, 0, 1})
		require.NoError(t, err)

		require.NoError(t, New(1, 1, 0, 0).RemoveSmallClustersBasedOnWeight(net, c, 1))
		assert.Equal(t, []int{0, 0, 0}, c.Clusters())
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		err := New(1, 1, 0, 0).RemoveSmallClustersBasedOnWeight(path(t, 3), clustering.New(2), 1)
		assert.Error(t, err)
	})
}
