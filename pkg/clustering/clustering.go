// Package clustering provides the node -> cluster assignment used by every
// level of the publication classification.
package clustering

import (
	"fmt"
	"sort"
)

// Clustering assigns each node of a network to a cluster. Cluster ids are
// 0-based; after RemoveEmptyClusters they are contiguous.
type Clustering struct {
	nNodes    int
	nClusters int
	clusters  []int
}

// New creates a clustering in which every node is its own cluster
func New(nNodes int) *Clustering {
	clusters := make([]int, nNodes)
	for i := range clusters {
		clusters[i] = i
	}
	return &Clustering{
		nNodes:    nNodes,
		nClusters: nNodes,
		clusters:  clusters,
	}
}

// FromClusters creates a clustering from a node -> cluster slice. The slice
// is copied.
func FromClusters(clusters []int) (*Clustering, error) {
	c := &Clustering{
		nNodes:   len(clusters),
		clusters: make([]int, len(clusters)),
	}
	copy(c.clusters, clusters)

	for i, cluster := range c.clusters {
		if cluster < 0 {
			return nil, fmt.Errorf("negative cluster %d for node %d", cluster, i)
		}
		if cluster+1 > c.nClusters {
			c.nClusters = cluster + 1
		}
	}

	return c, nil
}

// Clone creates a deep copy of the clustering
func (c *Clustering) Clone() *Clustering {
	clone := &Clustering{
		nNodes:    c.nNodes,
		nClusters: c.nClusters,
		clusters:  make([]int, len(c.clusters)),
	}
	copy(clone.clusters, c.clusters)
	return clone
}

// NNodes returns the number of nodes
func (c *Clustering) NNodes() int { return c.nNodes }

// NClusters returns the number of clusters
func (c *Clustering) NClusters() int { return c.nClusters }

// Clusters returns a copy of the node -> cluster assignment
func (c *Clustering) Clusters() []int {
	clusters := make([]int, len(c.clusters))
	copy(clusters, c.clusters)
	return clusters
}

// Cluster returns the cluster of a node
func (c *Clustering) Cluster(node int) int {
	return c.clusters[node]
}

// SetCluster assigns a node to a cluster, growing the cluster count when
// needed.
func (c *Clustering) SetCluster(node, cluster int) {
	c.clusters[node] = cluster
	if cluster+1 > c.nClusters {
		c.nClusters = cluster + 1
	}
}

// NNodesPerCluster returns the number of nodes in each cluster
func (c *Clustering) NNodesPerCluster() []int {
	counts := make([]int, c.nClusters)
	for _, cluster := range c.clusters {
		counts[cluster]++
	}
	return counts
}

// NodesPerCluster returns the nodes of each cluster in ascending order
func (c *Clustering) NodesPerCluster() [][]int {
	counts := c.NNodesPerCluster()
	nodes := make([][]int, c.nClusters)
	for i := range nodes {
		nodes[i] = make([]int, 0, counts[i])
	}
	for node, cluster := range c.clusters {
		nodes[cluster] = append(nodes[cluster], node)
	}
	return nodes
}

// ClusterWeights returns the total node weight of each cluster
func (c *Clustering) ClusterWeights(nodeWeights []float64) ([]float64, error) {
	if len(nodeWeights) != c.nNodes {
		return nil, fmt.Errorf("node weights length %d does not match number of nodes %d", len(nodeWeights), c.nNodes)
	}

	weights := make([]float64, c.nClusters)
	for node, cluster := range c.clusters {
		weights[cluster] += nodeWeights[node]
	}
	return weights, nil
}

// OrderClustersByWeight renumbers clusters by descending total node weight.
// Ties are broken by ascending cluster id; empty clusters end up last.
func (c *Clustering) OrderClustersByWeight(nodeWeights []float64) error {
	weights, err := c.ClusterWeights(nodeWeights)
	if err != nil {
		return err
	}
	c.orderClusters(weights, c.NNodesPerCluster())
	return nil
}

// OrderClustersByNNodes renumbers clusters by descending number of nodes.
// Ties are broken by ascending cluster id.
func (c *Clustering) OrderClustersByNNodes() {
	counts := c.NNodesPerCluster()
	weights := make([]float64, len(counts))
	for i, n := range counts {
		weights[i] = float64(n)
	}
	c.orderClusters(weights, counts)
}

func (c *Clustering) orderClusters(weights []float64, counts []int) {
	order := make([]int, c.nClusters)
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		// Empty clusters go last regardless of weight
		if (counts[i] == 0) != (counts[j] == 0) {
			return counts[j] == 0
		}
		return weights[i] > weights[j]
	})

	newCluster := make([]int, c.nClusters)
	for rank, cluster := range order {
		newCluster[cluster] = rank
	}
	for node, cluster := range c.clusters {
		c.clusters[node] = newCluster[cluster]
	}
}

// RemoveEmptyClusters renumbers clusters contiguously, keeping the relative
// order of the non-empty ones.
func (c *Clustering) RemoveEmptyClusters() {
	nonEmpty := make([]bool, c.nClusters)
	for _, cluster := range c.clusters {
		nonEmpty[cluster] = true
	}

	newCluster := make([]int, c.nClusters)
	i := 0
	for cluster, keep := range nonEmpty {
		if keep {
			newCluster[cluster] = i
			i++
		}
	}

	for node, cluster := range c.clusters {
		c.clusters[node] = newCluster[cluster]
	}
	c.nClusters = i
}

// MergeClusters maps every node through a clustering of the clusters of c,
// i.e. node i moves to other.Cluster(c.Cluster(i)).
func (c *Clustering) MergeClusters(other *Clustering) error {
	if other.nNodes != c.nClusters {
		return fmt.Errorf("cannot merge clustering of %d nodes into clustering with %d clusters", other.nNodes, c.nClusters)
	}

	for node, cluster := range c.clusters {
		c.clusters[node] = other.clusters[cluster]
	}
	c.nClusters = other.nClusters
	return nil
}
