// Package leiden implements the single-level Leiden algorithm for the
// constant Potts model (CPM), plus the reassignment of clusters that fall
// below a minimum weight.
package leiden

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/gilchrisn/publication-classification/pkg/clustering"
	"github.com/gilchrisn/publication-classification/pkg/network"
)

// Leiden finds a clustering of a network by optimising CPM quality. The
// random source is seeded explicitly, so runs with the same seed and the
// same sequence of calls are reproducible.
type Leiden struct {
	resolution  float64
	randomness  float64
	nIterations int
	rng         *rand.Rand
	logger      zerolog.Logger
}

// New creates a Leiden algorithm. nIterations <= 0 iterates until the
// clustering no longer changes.
func New(resolution float64, nIterations int, randomness float64, seed int64) *Leiden {
	return &Leiden{
		resolution:  resolution,
		randomness:  randomness,
		nIterations: nIterations,
		rng:         rand.New(rand.NewSource(seed)),
		logger:      zerolog.Nop(),
	}
}

// WithLogger sets the logger used for iteration progress
func (l *Leiden) WithLogger(logger zerolog.Logger) *Leiden {
	l.logger = logger
	return l
}

// SetResolution sets the resolution used by the next FindClustering call
func (l *Leiden) SetResolution(resolution float64) { l.resolution = resolution }

// Resolution returns the current resolution
func (l *Leiden) Resolution() float64 { return l.resolution }

// NIterations returns the configured number of iterations
func (l *Leiden) NIterations() int { return l.nIterations }

// Randomness returns the randomness used in the refinement phase
func (l *Leiden) Randomness() float64 { return l.randomness }

// FindClustering runs the algorithm starting from singleton clusters
func (l *Leiden) FindClustering(net *network.Network) (*clustering.Clustering, error) {
	if net == nil {
		return nil, fmt.Errorf("network is nil")
	}

	c := clustering.New(net.NNodes())
	for iteration := 0; l.nIterations <= 0 || iteration < l.nIterations; iteration++ {
		update, err := l.ImproveClustering(net, c)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iteration+1, err)
		}

		if l.logger.GetLevel() <= zerolog.DebugLevel {
			l.logger.Debug().
				Int("iteration", iteration+1).
				Int("clusters", c.NClusters()).
				Float64("quality", l.Quality(net, c)).
				Msg("Leiden iteration completed")
		}

		if !update && l.nIterations <= 0 {
			break
		}
	}

	return c, nil
}

// ImproveClustering runs one Leiden iteration on an existing clustering,
// which is modified in place. It reports whether any node changed cluster.
func (l *Leiden) ImproveClustering(net *network.Network, c *clustering.Clustering) (bool, error) {
	if c.NNodes() != net.NNodes() {
		return false, fmt.Errorf("clustering has %d nodes but network has %d", c.NNodes(), net.NNodes())
	}
	return l.improve(net, c)
}

func (l *Leiden) improve(net *network.Network, c *clustering.Clustering) (bool, error) {
	if net.NNodes() == 0 {
		return false, nil
	}

	// Phase 1: fast local moving
	update := l.moveNodesFast(net, c)
	if c.NClusters() == net.NNodes() {
		return update, nil
	}

	// Phase 2: refinement
	refined := l.refine(net, c)
	if refined.NClusters() == net.NNodes() {
		// No subcluster formed; aggregate on the clusters themselves
		refined = c.Clone()
	}

	// Phase 3: aggregation, starting from the non-refined clusters
	reduced, err := net.CreateReducedNetwork(refined)
	if err != nil {
		return false, fmt.Errorf("aggregation failed: %w", err)
	}

	initial := make([]int, reduced.NNodes())
	for node := 0; node < net.NNodes(); node++ {
		initial[refined.Cluster(node)] = c.Cluster(node)
	}
	reducedClustering, err := clustering.FromClusters(initial)
	if err != nil {
		return false, err
	}

	reducedUpdate, err := l.improve(reduced, reducedClustering)
	if err != nil {
		return false, err
	}

	for node := 0; node < net.NNodes(); node++ {
		c.SetCluster(node, reducedClustering.Cluster(refined.Cluster(node)))
	}
	c.RemoveEmptyClusters()

	return update || reducedUpdate, nil
}

// moveNodesFast moves nodes to the neighbouring cluster with the largest
// CPM gain. Only neighbours of moved nodes are revisited.
func (l *Leiden) moveNodesFast(net *network.Network, c *clustering.Clustering) bool {
	n := net.NNodes()
	size := n
	if c.NClusters() > size {
		size = c.NClusters()
	}

	nodeWeights := net.NodeWeights()
	clusterWeights := make([]float64, size)
	nNodesPerCluster := make([]int, size)
	for node := 0; node < n; node++ {
		clusterWeights[c.Cluster(node)] += nodeWeights[node]
		nNodesPerCluster[c.Cluster(node)]++
	}

	// Stack of empty clusters, lowest id on top
	unused := make([]int, 0, size)
	for k := size - 1; k >= 0; k-- {
		if nNodesPerCluster[k] == 0 {
			unused = append(unused, k)
		}
	}

	queue := l.rng.Perm(n)
	inQueue := make([]bool, n)
	for i := range inQueue {
		inQueue[i] = true
	}
	head, count := 0, n

	edgeWeightPerCluster := make([]float64, size)
	seen := make([]bool, size)
	neighboring := make([]int, 0)

	update := false
	for count > 0 {
		j := queue[head]
		head = (head + 1) % n
		count--
		inQueue[j] = false

		current := c.Cluster(j)
		clusterWeights[current] -= nodeWeights[j]
		nNodesPerCluster[current]--
		if nNodesPerCluster[current] == 0 {
			unused = append(unused, current)
		}

		// An empty cluster is always a candidate
		empty := unused[len(unused)-1]
		neighboring = append(neighboring[:0], empty)
		seen[empty] = true

		neighbors, weights := net.Neighbors(j)
		for k, neighbor := range neighbors {
			cluster := c.Cluster(neighbor)
			if !seen[cluster] {
				seen[cluster] = true
				neighboring = append(neighboring, cluster)
			}
			edgeWeightPerCluster[cluster] += weights[k]
		}

		best := current
		maxIncrement := edgeWeightPerCluster[current] - nodeWeights[j]*clusterWeights[current]*l.resolution
		for _, cluster := range neighboring {
			increment := edgeWeightPerCluster[cluster] - nodeWeights[j]*clusterWeights[cluster]*l.resolution
			if increment > maxIncrement {
				best = cluster
				maxIncrement = increment
			}
			edgeWeightPerCluster[cluster] = 0
			seen[cluster] = false
		}

		clusterWeights[best] += nodeWeights[j]
		nNodesPerCluster[best]++
		if nNodesPerCluster[best] == 1 && unused[len(unused)-1] == best {
			unused = unused[:len(unused)-1]
		}

		if best != current {
			c.SetCluster(j, best)
			update = true

			for _, neighbor := range neighbors {
				if !inQueue[neighbor] && c.Cluster(neighbor) != best {
					queue[(head+count)%n] = neighbor
					count++
					inQueue[neighbor] = true
				}
			}
		}
	}

	c.RemoveEmptyClusters()
	return update
}

// refine splits every cluster into well-connected subclusters by merging
// singleton nodes. The result is a clustering of the same nodes that is
// nested in c.
func (l *Leiden) refine(net *network.Network, c *clustering.Clustering) *clustering.Clustering {
	n := net.NNodes()
	nodeWeights := net.NodeWeights()
	parentWeights, _ := c.ClusterWeights(nodeWeights)

	refined := clustering.New(n)
	clusterWeights := net.NodeWeights()
	nonSingleton := make([]bool, n)
	externalEdgeWeight := make([]float64, n)
	for j := 0; j < n; j++ {
		neighbors, weights := net.Neighbors(j)
		for k, neighbor := range neighbors {
			if c.Cluster(neighbor) == c.Cluster(j) {
				externalEdgeWeight[j] += weights[k]
			}
		}
	}

	edgeWeightPerCluster := make([]float64, n)
	seen := make([]bool, n)
	neighboring := make([]int, 0)
	candidates := make([]int, 0)
	cumulative := make([]float64, 0)

	for _, j := range l.rng.Perm(n) {
		if nonSingleton[j] {
			continue
		}

		parent := c.Cluster(j)
		total := parentWeights[parent]
		if externalEdgeWeight[j] < clusterWeights[j]*(total-clusterWeights[j])*l.resolution {
			continue
		}

		clusterWeights[j] = 0
		externalEdgeWeight[j] = 0

		neighboring = append(neighboring[:0], j)
		seen[j] = true
		neighbors, weights := net.Neighbors(j)
		for k, neighbor := range neighbors {
			if c.Cluster(neighbor) != parent {
				continue
			}
			cluster := refined.Cluster(neighbor)
			if !seen[cluster] {
				seen[cluster] = true
				neighboring = append(neighboring, cluster)
			}
			edgeWeightPerCluster[cluster] += weights[k]
		}

		best := j
		maxIncrement := 0.0
		candidates = candidates[:0]
		cumulative = cumulative[:0]
		increments := make([]float64, 0, len(neighboring))
		for _, cluster := range neighboring {
			if externalEdgeWeight[cluster] >= clusterWeights[cluster]*(total-clusterWeights[cluster])*l.resolution {
				increment := edgeWeightPerCluster[cluster] - nodeWeights[j]*clusterWeights[cluster]*l.resolution
				if increment > maxIncrement {
					best = cluster
					maxIncrement = increment
				}
				if increment >= 0 {
					candidates = append(candidates, cluster)
					increments = append(increments, increment)
				}
			}
			edgeWeightPerCluster[cluster] = 0
			seen[cluster] = false
		}

		// Randomised choice among non-negative increments, relative to the best
		if len(candidates) > 1 && l.randomness > 0 {
			sum := 0.0
			for _, increment := range increments {
				sum += math.Exp((increment - maxIncrement) / l.randomness)
				cumulative = append(cumulative, sum)
			}
			r := sum * l.rng.Float64()
			for i, value := range cumulative {
				if r < value {
					best = candidates[i]
					break
				}
			}
		}

		clusterWeights[best] += nodeWeights[j]
		for k, neighbor := range neighbors {
			if c.Cluster(neighbor) != parent {
				continue
			}
			if refined.Cluster(neighbor) == best {
				externalEdgeWeight[best] -= weights[k]
			} else {
				externalEdgeWeight[best] += weights[k]
			}
		}

		if best != j {
			refined.SetCluster(j, best)
			nonSingleton[best] = true
		}
	}

	refined.RemoveEmptyClusters()
	return refined
}

// Quality returns the normalised CPM quality of a clustering
func (l *Leiden) Quality(net *network.Network, c *clustering.Clustering) float64 {
	quality := 0.0
	for i := 0; i < net.NNodes(); i++ {
		neighbors, weights := net.Neighbors(i)
		for k, neighbor := range neighbors {
			if c.Cluster(neighbor) == c.Cluster(i) {
				quality += weights[k]
			}
		}
	}
	quality += net.TotalEdgeWeightSelfLinks()

	clusterWeights, err := c.ClusterWeights(net.NodeWeights())
	if err != nil {
		return math.NaN()
	}
	quality -= floats.Dot(clusterWeights, clusterWeights) * l.resolution

	if denominator := 2*net.TotalEdgeWeight() + net.TotalEdgeWeightSelfLinks(); denominator > 0 {
		quality /= denominator
	}
	return quality
}
