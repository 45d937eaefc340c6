// Package network implements the weighted undirected network that is
// clustered at each level of the classification.
package network

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/gilchrisn/publication-classification/pkg/clustering"
)

// Link is an undirected weighted link between two node indices
type Link struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	Weight float64 `json:"weight"`
}

// Network is an immutable weighted undirected network stored in compressed
// sparse row form. Every link appears once in the adjacency of each endpoint.
type Network struct {
	nNodes                   int
	nEdges                   int
	nodeWeights              []float64
	firstNeighborIndices     []int
	neighbors                []int
	edgeWeights              []float64
	totalEdgeWeightSelfLinks float64
}

// New creates a network from node weights and a link list. Links between
// the same pair of nodes are summed; self links are kept only as a total.
func New(nodeWeights []float64, links []Link) (*Network, error) {
	n := len(nodeWeights)
	for i, w := range nodeWeights {
		if w < 0 {
			return nil, fmt.Errorf("negative weight %f for node %d", w, i)
		}
	}

	adjacency := make([]map[int]float64, n)
	selfLinks := 0.0
	for k, link := range links {
		if link.From < 0 || link.From >= n || link.To < 0 || link.To >= n {
			return nil, fmt.Errorf("link %d: node index out of range: from=%d, to=%d, numNodes=%d", k, link.From, link.To, n)
		}
		if link.Weight < 0 {
			return nil, fmt.Errorf("link %d: negative weight %f", k, link.Weight)
		}
		if link.From == link.To {
			selfLinks += link.Weight
			continue
		}
		addNeighbor(adjacency, link.From, link.To, link.Weight)
		addNeighbor(adjacency, link.To, link.From, link.Weight)
	}

	net := &Network{
		nNodes:                   n,
		nodeWeights:              make([]float64, n),
		firstNeighborIndices:     make([]int, n+1),
		totalEdgeWeightSelfLinks: selfLinks,
	}
	copy(net.nodeWeights, nodeWeights)

	for i := 0; i < n; i++ {
		neighbors := make([]int, 0, len(adjacency[i]))
		for j := range adjacency[i] {
			neighbors = append(neighbors, j)
		}
		sort.Ints(neighbors)
		for _, j := range neighbors {
			net.neighbors = append(net.neighbors, j)
			net.edgeWeights = append(net.edgeWeights, adjacency[i][j])
		}
		net.firstNeighborIndices[i+1] = len(net.neighbors)
	}
	net.nEdges = len(net.neighbors) / 2

	return net, nil
}

func addNeighbor(adjacency []map[int]float64, from, to int, weight float64) {
	if adjacency[from] == nil {
		adjacency[from] = make(map[int]float64)
	}
	adjacency[from][to] += weight
}

// CheckSorted verifies that links are sorted by From and then by To
func CheckSorted(links []Link) error {
	for k := 1; k < len(links); k++ {
		prev, cur := links[k-1], links[k]
		if cur.From < prev.From || (cur.From == prev.From && cur.To < prev.To) {
			return fmt.Errorf("links are not sorted at position %d: (%d, %d) after (%d, %d)", k, cur.From, cur.To, prev.From, prev.To)
		}
	}
	return nil
}

// NNodes returns the number of nodes
func (n *Network) NNodes() int { return n.nNodes }

// NEdges returns the number of undirected edges, excluding self links
func (n *Network) NEdges() int { return n.nEdges }

// NodeWeight returns the weight of a node
func (n *Network) NodeWeight(node int) float64 { return n.nodeWeights[node] }

// NodeWeights returns a copy of the node weights
func (n *Network) NodeWeights() []float64 {
	weights := make([]float64, n.nNodes)
	copy(weights, n.nodeWeights)
	return weights
}

// TotalNodeWeight returns the sum of all node weights
func (n *Network) TotalNodeWeight() float64 {
	return floats.Sum(n.nodeWeights)
}

// TotalEdgeWeight returns the total weight of the undirected edges,
// excluding self links
func (n *Network) TotalEdgeWeight() float64 {
	return floats.Sum(n.edgeWeights) / 2
}

// TotalEdgeWeightSelfLinks returns the total weight of self links
func (n *Network) TotalEdgeWeightSelfLinks() float64 {
	return n.totalEdgeWeightSelfLinks
}

// TotalEdgeWeightPerNode returns the weighted degree of every node
func (n *Network) TotalEdgeWeightPerNode() []float64 {
	degrees := make([]float64, n.nNodes)
	for i := 0; i < n.nNodes; i++ {
		degrees[i] = floats.Sum(n.edgeWeights[n.firstNeighborIndices[i]:n.firstNeighborIndices[i+1]])
	}
	return degrees
}

// Neighbors returns the neighbors of a node and the corresponding edge
// weights. The slices share storage with the network and must not be
// modified.
func (n *Network) Neighbors(node int) ([]int, []float64) {
	start, end := n.firstNeighborIndices[node], n.firstNeighborIndices[node+1]
	return n.neighbors[start:end], n.edgeWeights[start:end]
}

// CreateReducedNetwork collapses every cluster into a single node. Node
// weights and edge weights are summed; edges inside a cluster become self
// links of the reduced node.
func (n *Network) CreateReducedNetwork(c *clustering.Clustering) (*Network, error) {
	if c.NNodes() != n.nNodes {
		return nil, fmt.Errorf("clustering has %d nodes but network has %d", c.NNodes(), n.nNodes)
	}

	nClusters := c.NClusters()
	reduced := &Network{
		nNodes:                   nClusters,
		nodeWeights:              make([]float64, nClusters),
		firstNeighborIndices:     make([]int, nClusters+1),
		totalEdgeWeightSelfLinks: n.totalEdgeWeightSelfLinks,
	}

	for node := 0; node < n.nNodes; node++ {
		reduced.nodeWeights[c.Cluster(node)] += n.nodeWeights[node]
	}

	// Dense accumulator over neighbouring clusters, reset after each cluster
	weightPerCluster := make([]float64, nClusters)
	seen := make([]bool, nClusters)
	touched := make([]int, 0)
	for cluster, nodes := range c.NodesPerCluster() {
		for _, node := range nodes {
			neighbors, weights := n.Neighbors(node)
			for k, neighbor := range neighbors {
				other := c.Cluster(neighbor)
				if other == cluster {
					// Each intra-cluster edge is visited from both endpoints
					reduced.totalEdgeWeightSelfLinks += weights[k] / 2
					continue
				}
				if !seen[other] {
					seen[other] = true
					touched = append(touched, other)
				}
				weightPerCluster[other] += weights[k]
			}
		}

		sort.Ints(touched)
		for _, other := range touched {
			reduced.neighbors = append(reduced.neighbors, other)
			reduced.edgeWeights = append(reduced.edgeWeights, weightPerCluster[other])
			weightPerCluster[other] = 0
			seen[other] = false
		}
		touched = touched[:0]
		reduced.firstNeighborIndices[cluster+1] = len(reduced.neighbors)
	}
	reduced.nEdges = len(reduced.neighbors) / 2

	return reduced, nil
}

// CreateSubnetwork returns the subnetwork induced by the nodes of one
// cluster. Nodes keep their relative order.
func (n *Network) CreateSubnetwork(c *clustering.Clustering, cluster int) (*Network, error) {
	if c.NNodes() != n.nNodes {
		return nil, fmt.Errorf("clustering has %d nodes but network has %d", c.NNodes(), n.nNodes)
	}
	if cluster < 0 || cluster >= c.NClusters() {
		return nil, fmt.Errorf("cluster %d out of range [0, %d)", cluster, c.NClusters())
	}

	nodes := c.NodesPerCluster()[cluster]
	index := make(map[int]int, len(nodes))
	for i, node := range nodes {
		index[node] = i
	}

	sub := &Network{
		nNodes:               len(nodes),
		nodeWeights:          make([]float64, len(nodes)),
		firstNeighborIndices: make([]int, len(nodes)+1),
	}
	for i, node := range nodes {
		sub.nodeWeights[i] = n.nodeWeights[node]
		neighbors, weights := n.Neighbors(node)
		for k, neighbor := range neighbors {
			j, ok := index[neighbor]
			if !ok {
				continue
			}
			sub.neighbors = append(sub.neighbors, j)
			sub.edgeWeights = append(sub.edgeWeights, weights[k])
		}
		sub.firstNeighborIndices[i+1] = len(sub.neighbors)
	}
	sub.nEdges = len(sub.neighbors) / 2

	return sub, nil
}

// IdentifyComponents returns the connected components as a clustering.
// Components are ordered by descending number of nodes, so cluster 0 is the
// largest component; equally sized components keep the order of their
// lowest node index.
func (n *Network) IdentifyComponents() *clustering.Clustering {
	g := simple.NewUndirectedGraph()
	for i := 0; i < n.nNodes; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n.nNodes; i++ {
		neighbors, _ := n.Neighbors(i)
		for _, j := range neighbors {
			if i < j {
				g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
			}
		}
	}

	components := topo.ConnectedComponents(g)
	minNode := make([]int, len(components))
	for k, component := range components {
		minNode[k] = n.nNodes
		for _, node := range component {
			if id := int(node.ID()); id < minNode[k] {
				minNode[k] = id
			}
		}
	}
	order := make([]int, len(components))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(a, b int) bool { return minNode[order[a]] < minNode[order[b]] })

	clusters := make([]int, n.nNodes)
	for id, k := range order {
		for _, node := range components[k] {
			clusters[node.ID()] = id
		}
	}

	c, _ := clustering.FromClusters(clusters)
	c.OrderClustersByNNodes()
	return c
}
