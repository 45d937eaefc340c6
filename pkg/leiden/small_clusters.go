package leiden

import (
	"fmt"

	"github.com/gilchrisn/publication-classification/pkg/clustering"
	"github.com/gilchrisn/publication-classification/pkg/network"
)

// RemoveSmallClustersBasedOnWeight reassigns clusters whose total node
// weight is below minClusterWeight. The lightest such cluster is merged into
// the neighbouring cluster it shares the most edge weight with (ties go to
// the heavier cluster, then the lower id), and this repeats until every
// cluster either reaches the minimum weight or has no neighbouring cluster.
// The clustering is modified in place; cluster ids are not renumbered.
func (l *Leiden) RemoveSmallClustersBasedOnWeight(net *network.Network, c *clustering.Clustering, minClusterWeight float64) error {
	if c.NNodes() != net.NNodes() {
		return fmt.Errorf("clustering has %d nodes but network has %d", c.NNodes(), net.NNodes())
	}

	reduced, err := net.CreateReducedNetwork(c)
	if err != nil {
		return fmt.Errorf("reducing network: %w", err)
	}

	k := reduced.NNodes()
	weights := reduced.NodeWeights()
	alive := make([]bool, k)
	for cluster, n := range c.NNodesPerCluster() {
		alive[cluster] = n > 0
	}

	adjacency := make([]map[int]float64, k)
	for i := 0; i < k; i++ {
		adjacency[i] = make(map[int]float64)
		neighbors, edgeWeights := reduced.Neighbors(i)
		for j, neighbor := range neighbors {
			adjacency[i][neighbor] = edgeWeights[j]
		}
	}

	parent := make([]int, k)
	for i := range parent {
		parent[i] = i
	}
	isolated := make([]bool, k)

	merges := 0
	for {
		smallest := -1
		for i := 0; i < k; i++ {
			if !alive[i] || isolated[i] || weights[i] >= minClusterWeight {
				continue
			}
			if smallest == -1 || weights[i] < weights[smallest] {
				smallest = i
			}
		}
		if smallest == -1 {
			break
		}
		if len(adjacency[smallest]) == 0 {
			isolated[smallest] = true
			continue
		}

		target := -1
		for neighbor, w := range adjacency[smallest] {
			if target == -1 || better(w, weights[neighbor], neighbor, adjacency[smallest][target], weights[target], target) {
				target = neighbor
			}
		}

		// Merge smallest into target
		for neighbor, w := range adjacency[smallest] {
			delete(adjacency[neighbor], smallest)
			if neighbor == target {
				continue
			}
			adjacency[target][neighbor] += w
			adjacency[neighbor][target] += w
		}
		adjacency[smallest] = nil
		weights[target] += weights[smallest]
		alive[smallest] = false
		parent[smallest] = target
		merges++
	}

	for node := 0; node < c.NNodes(); node++ {
		c.SetCluster(node, find(parent, c.Cluster(node)))
	}

	l.logger.Debug().
		Int("merged_clusters", merges).
		Float64("min_cluster_weight", minClusterWeight).
		Msg("Small clusters reassigned")

	return nil
}

// better reports whether candidate a is a better merge target than b
func better(edgeA, weightA float64, idA int, edgeB, weightB float64, idB int) bool {
	if edgeA != edgeB {
		return edgeA > edgeB
	}
	if weightA != weightB {
		return weightA > weightB
	}
	return idA < idB
}

func find(parent []int, i int) int {
	for parent[i] != i {
		parent[i] = parent[parent[i]]
		i = parent[i]
	}
	return i
}
