package aggregates

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"thoughtweb/domain/core/entities"
	"thoughtweb/domain/similarity"
	pkgerrors "thoughtweb/pkg/errors"
)

const (
	// DefaultMaxPathDepth bounds FindPath when no depth is given.
	DefaultMaxPathDepth = 3
	// MaxIndirectConnections caps the indirect paths reported by IndirectPaths.
	MaxIndirectConnections = 10

	previewLength    = 100
	clusterKeywords  = 5
	clusterThemeSize = 3
	snapshotVersion  = 1
)

var clusterNamespace = uuid.MustParse("3d0b7c52-96a1-5e4f-8b2d-6a9e1f0c7b38")

// ErrUnknownNode is returned when a connection references a node that is not
// in the graph.
var ErrUnknownNode = pkgerrors.NewValidationError("connection references unknown node").WithCode("UNKNOWN_NODE")

// ClusterOptions tunes DetectClusters.
type ClusterOptions struct {
	MinWeight float64
	MinSize   int
}

// DefaultClusterOptions keeps edges of weight 0.5 or more and clusters of at
// least three members.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{MinWeight: 0.5, MinSize: 3}
}

// ConnectionGraph is the directed, source-keyed adjacency list of discovered
// connections plus per-node metadata. Node and edge insertion order is kept
// and drives traversal order. It is not safe for concurrent use; the owning
// service serializes access.
type ConnectionGraph struct {
	nodeOrder   []string
	metadata    map[string]*entities.NodeMetadata
	edges       map[string][]*entities.Connection
	connections map[string]*entities.Connection
	clusters    []*entities.ConnectionCluster
}

// NewConnectionGraph creates an empty graph.
func NewConnectionGraph() *ConnectionGraph {
	return &ConnectionGraph{
		nodeOrder:   []string{},
		metadata:    make(map[string]*entities.NodeMetadata),
		edges:       make(map[string][]*entities.Connection),
		connections: make(map[string]*entities.Connection),
		clusters:    []*entities.ConnectionCluster{},
	}
}

// AddNode inserts item as a node, or refreshes the content and tags of an
// existing node. It reports whether the node is new.
func (g *ConnectionGraph) AddNode(item entities.Item) bool {
	if meta, exists := g.metadata[item.ID]; exists {
		meta.Content = item.Content
		meta.ContentPreview = entities.Preview(item.Content, previewLength)
		meta.Tags = entities.NormalizeTags(item.Tags)
		return false
	}

	kind := item.Kind
	if kind == "" {
		kind = entities.ItemKindThought
	}

	g.nodeOrder = append(g.nodeOrder, item.ID)
	g.metadata[item.ID] = &entities.NodeMetadata{
		ID:             item.ID,
		ContentPreview: entities.Preview(item.Content, previewLength),
		Content:        item.Content,
		Type:           kind,
		Timestamp:      item.Timestamp,
		Tags:           entities.NormalizeTags(item.Tags),
	}
	return true
}

// HasNode reports whether id is a node.
func (g *ConnectionGraph) HasNode(id string) bool {
	_, ok := g.metadata[id]
	return ok
}

// Node returns the metadata for id.
func (g *ConnectionGraph) Node(id string) (*entities.NodeMetadata, bool) {
	meta, ok := g.metadata[id]
	return meta, ok
}

// NodeIDs returns node ids in insertion order.
func (g *ConnectionGraph) NodeIDs() []string {
	return append([]string(nil), g.nodeOrder...)
}

// Nodes returns node metadata in insertion order.
func (g *ConnectionGraph) Nodes() []*entities.NodeMetadata {
	return lo.Map(g.nodeOrder, func(id string, _ int) *entities.NodeMetadata {
		return g.metadata[id]
	})
}

// NodeCount returns the number of nodes.
func (g *ConnectionGraph) NodeCount() int {
	return len(g.nodeOrder)
}

// ConnectionCount returns the number of edges.
func (g *ConnectionGraph) ConnectionCount() int {
	return len(g.connections)
}

// AddConnection appends c to its source's adjacency list and bumps the
// source's connection count. Both endpoints must already be nodes.
func (g *ConnectionGraph) AddConnection(c *entities.Connection) error {
	if c == nil || c.ID == "" {
		return pkgerrors.NewValidationError("connection id is required")
	}
	if !g.HasNode(c.SourceID) || !g.HasNode(c.TargetID) {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("connection %s references unknown node (%s -> %s)", c.ID, c.SourceID, c.TargetID),
		).WithCode(ErrUnknownNode.Code)
	}
	if c.Weight < 0 || c.Weight > 1 || c.Confidence < 0 || c.Confidence > 1 {
		return pkgerrors.NewValidationError("connection weight and confidence must be within [0,1]")
	}
	if _, exists := g.connections[c.ID]; exists {
		return pkgerrors.NewConflictError(fmt.Sprintf("connection %s already exists", c.ID))
	}

	g.edges[c.SourceID] = append(g.edges[c.SourceID], c)
	g.connections[c.ID] = c
	g.metadata[c.SourceID].ConnectionCount++
	return nil
}

// Connection returns the edge with the given id.
func (g *ConnectionGraph) Connection(id string) (*entities.Connection, bool) {
	c, ok := g.connections[id]
	return c, ok
}

// Outgoing returns the adjacency list of id in insertion order.
func (g *ConnectionGraph) Outgoing(id string) []*entities.Connection {
	return append([]*entities.Connection(nil), g.edges[id]...)
}

// Connections returns every edge, grouped by source in node order.
func (g *ConnectionGraph) Connections() []*entities.Connection {
	all := make([]*entities.Connection, 0, len(g.connections))
	for _, id := range g.nodeOrder {
		all = append(all, g.edges[id]...)
	}
	return all
}

// ConnectionsFor returns edges leaving or entering id.
func (g *ConnectionGraph) ConnectionsFor(id string) []*entities.Connection {
	return lo.Filter(g.Connections(), func(c *entities.Connection, _ int) bool {
		return c.SourceID == id || c.TargetID == id
	})
}

// RemoveNode drops a node with its metadata and every edge touching it.
func (g *ConnectionGraph) RemoveNode(id string) bool {
	if !g.HasNode(id) {
		return false
	}

	for _, c := range g.edges[id] {
		delete(g.connections, c.ID)
	}
	delete(g.edges, id)

	for source, list := range g.edges {
		kept := list[:0]
		for _, c := range list {
			if c.TargetID == id {
				delete(g.connections, c.ID)
				continue
			}
			kept = append(kept, c)
		}
		g.edges[source] = kept
	}

	delete(g.metadata, id)
	g.nodeOrder = lo.Without(g.nodeOrder, id)
	g.clusters = lo.Filter(g.clusters, func(c *entities.ConnectionCluster, _ int) bool {
		return !c.Contains(id)
	})
	return true
}

// FindPath runs a breadth-first search from source to target along edge
// direction, up to maxDepth hops (DefaultMaxPathDepth when <= 0). The first
// path reached at the minimal hop count wins; its weight is the product of
// its edge weights. Dismissed connections are not traversed.
func (g *ConnectionGraph) FindPath(source, target string, maxDepth int) (*entities.ConnectionPath, bool) {
	if !g.HasNode(source) || !g.HasNode(target) {
		return nil, false
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxPathDepth
	}
	if source == target {
		return &entities.ConnectionPath{
			Path:        []string{source},
			Connections: []*entities.Connection{},
			Weight:      1,
			Length:      0,
		}, true
	}

	type step struct {
		id    string
		depth int
	}

	visited := map[string]bool{source: true}
	parent := make(map[string]*entities.Connection)
	queue := []step{{id: source}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, c := range g.edges[current.id] {
			if c.Dismissed || visited[c.TargetID] {
				continue
			}
			visited[c.TargetID] = true
			parent[c.TargetID] = c

			if c.TargetID == target {
				return reconstructPath(source, target, parent), true
			}
			if current.depth+1 < maxDepth {
				queue = append(queue, step{id: c.TargetID, depth: current.depth + 1})
			}
		}
	}

	return nil, false
}

func reconstructPath(source, target string, parent map[string]*entities.Connection) *entities.ConnectionPath {
	var conns []*entities.Connection
	for n := target; n != source; {
		c := parent[n]
		conns = append(conns, c)
		n = c.SourceID
	}
	lo.Reverse(conns)

	path := []string{source}
	weight := 1.0
	for _, c := range conns {
		path = append(path, c.TargetID)
		weight *= c.Weight
	}

	return &entities.ConnectionPath{
		Path:        path,
		Connections: conns,
		Weight:      weight,
		Length:      len(conns),
	}
}

// IndirectPaths lists 2 and 3 hop paths from id through its direct
// neighbours to nodes it is not directly connected to, one path per reached
// node, shortest first, at most limit of them.
func (g *ConnectionGraph) IndirectPaths(id string, limit int) []*entities.ConnectionPath {
	if limit <= 0 {
		limit = MaxIndirectConnections
	}
	results := []*entities.ConnectionPath{}
	if !g.HasNode(id) {
		return results
	}

	reached := map[string]bool{id: true}
	for _, c := range g.edges[id] {
		if !c.Dismissed {
			reached[c.TargetID] = true
		}
	}

	frontier := [][]*entities.Connection{}
	for _, c := range g.edges[id] {
		if !c.Dismissed {
			frontier = append(frontier, []*entities.Connection{c})
		}
	}

	for hops := 2; hops <= 3 && len(results) < limit; hops++ {
		next := [][]*entities.Connection{}
		for _, prefix := range frontier {
			last := prefix[len(prefix)-1]
			onPath := map[string]bool{id: true}
			for _, p := range prefix {
				onPath[p.TargetID] = true
			}

			for _, c := range g.edges[last.TargetID] {
				if c.Dismissed || onPath[c.TargetID] {
					continue
				}
				chain := append(append([]*entities.Connection{}, prefix...), c)
				next = append(next, chain)

				if reached[c.TargetID] {
					continue
				}
				reached[c.TargetID] = true
				results = append(results, pathFromChain(id, chain))
				if len(results) >= limit {
					return results
				}
			}
		}
		frontier = next
	}

	return results
}

func pathFromChain(source string, chain []*entities.Connection) *entities.ConnectionPath {
	path := []string{source}
	weight := 1.0
	for _, c := range chain {
		path = append(path, c.TargetID)
		weight *= c.Weight
	}
	return &entities.ConnectionPath{
		Path:        path,
		Connections: chain,
		Weight:      weight,
		Length:      len(chain),
	}
}

// DetectClusters recomputes clusters from scratch. Nodes are visited in
// insertion order and grown through non-dismissed edges of at least
// opts.MinWeight, ignoring direction. Groups smaller than opts.MinSize are
// discarded. The result replaces the stored cluster list.
func (g *ConnectionGraph) DetectClusters(opts ClusterOptions, now time.Time) []*entities.ConnectionCluster {
	if opts.MinSize < 1 {
		opts.MinSize = DefaultClusterOptions().MinSize
	}

	strong := g.undirectedNeighbours(func(c *entities.Connection) bool {
		return !c.Dismissed && c.Weight >= opts.MinWeight
	})

	visited := make(map[string]bool)
	clusters := []*entities.ConnectionCluster{}

	for _, start := range g.nodeOrder {
		if visited[start] {
			continue
		}

		members := []string{start}
		visited[start] = true
		for i := 0; i < len(members); i++ {
			for _, next := range strong[members[i]] {
				if !visited[next] {
					visited[next] = true
					members = append(members, next)
				}
			}
		}

		if len(members) < opts.MinSize {
			continue
		}
		clusters = append(clusters, g.buildCluster(members, now))
	}

	g.clusters = clusters
	return clusters
}

func (g *ConnectionGraph) buildCluster(members []string, now time.Time) *entities.ConnectionCluster {
	inside := lo.SliceToMap(members, func(id string) (string, bool) { return id, true })

	var total float64
	var count int
	pairs := make(map[[2]string]bool)
	contents := make([]string, 0, len(members))

	for _, id := range members {
		contents = append(contents, g.metadata[id].Content)
		for _, c := range g.edges[id] {
			if c.Dismissed || !inside[c.TargetID] {
				continue
			}
			total += c.Weight
			count++
			pairs[pairKey(c.SourceID, c.TargetID)] = true
		}
	}

	cohesion := 0.0
	if count > 0 {
		cohesion = total / float64(count)
	}
	density := 0.0
	if maxPairs := len(members) * (len(members) - 1) / 2; maxPairs > 0 {
		density = float64(len(pairs)) / float64(maxPairs)
	}

	keywords := similarity.ExtractKeywords(strings.Join(contents, " "), clusterKeywords)
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)

	return &entities.ConnectionCluster{
		ID:         uuid.NewSHA1(clusterNamespace, []byte(strings.Join(sorted, ","))).String(),
		ItemIDs:    members,
		Theme:      strings.Join(lo.Slice(keywords, 0, clusterThemeSize), ", "),
		Keywords:   keywords,
		Cohesion:   cohesion,
		Confidence: min(1.0, cohesion*density),
		DetectedAt: now,
	}
}

// Clusters returns the result of the last DetectClusters call.
func (g *ConnectionGraph) Clusters() []*entities.ConnectionCluster {
	return append([]*entities.ConnectionCluster(nil), g.clusters...)
}

// ClustersContaining returns the stored clusters that include id.
func (g *ConnectionGraph) ClustersContaining(id string) []*entities.ConnectionCluster {
	return lo.Filter(g.clusters, func(c *entities.ConnectionCluster, _ int) bool {
		return c.Contains(id)
	})
}

// UpdateClusteringCoefficients sets each node's local clustering
// coefficient over the undirected view of non-dismissed edges.
func (g *ConnectionGraph) UpdateClusteringCoefficients() {
	neighbours := g.undirectedNeighbours(func(c *entities.Connection) bool { return !c.Dismissed })

	linked := make(map[[2]string]bool)
	for _, c := range g.connections {
		if !c.Dismissed && c.SourceID != c.TargetID {
			linked[pairKey(c.SourceID, c.TargetID)] = true
		}
	}

	for _, id := range g.nodeOrder {
		n := neighbours[id]
		k := len(n)
		if k < 2 {
			g.metadata[id].ClusteringCoefficient = 0
			continue
		}

		links := 0
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				if linked[pairKey(n[i], n[j])] {
					links++
				}
			}
		}
		g.metadata[id].ClusteringCoefficient = 2 * float64(links) / float64(k*(k-1))
	}
}

// undirectedNeighbours lists, per node, the distinct nodes joined to it by an
// edge accepted by keep in either direction, in edge insertion order.
func (g *ConnectionGraph) undirectedNeighbours(keep func(*entities.Connection) bool) map[string][]string {
	out := make(map[string][]string, len(g.nodeOrder))
	seen := make(map[[2]string]bool)

	add := func(from, to string) {
		key := [2]string{from, to}
		if from == to || seen[key] {
			return
		}
		seen[key] = true
		out[from] = append(out[from], to)
	}

	for _, id := range g.nodeOrder {
		for _, c := range g.edges[id] {
			if !keep(c) {
				continue
			}
			add(c.SourceID, c.TargetID)
			add(c.TargetID, c.SourceID)
		}
	}
	return out
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// Stats summarizes the graph.
func (g *ConnectionGraph) Stats() entities.ConnectionStats {
	stats := entities.ConnectionStats{
		Nodes:       len(g.nodeOrder),
		Connections: len(g.connections),
		ByType:      make(map[entities.ConnectionType]int),
		Clusters:    len(g.clusters),
	}

	var total float64
	for _, c := range g.connections {
		stats.ByType[c.Type]++
		total += c.Weight
		if c.Confirmed {
			stats.Confirmed++
		}
		if c.Dismissed {
			stats.Dismissed++
		}
	}
	if len(g.connections) > 0 {
		stats.AverageWeight = total / float64(len(g.connections))
	}
	return stats
}

// EdgeList is the persisted adjacency list of one source node.
type EdgeList struct {
	SourceID    string                 `json:"sourceId"`
	Connections []*entities.Connection `json:"connections"`
}

// GraphSnapshot is the serializable form of a ConnectionGraph.
type GraphSnapshot struct {
	Version    int                           `json:"version"`
	Nodes      []*entities.NodeMetadata      `json:"nodes"`
	Edges      []EdgeList                    `json:"edges"`
	Clusters   []*entities.ConnectionCluster `json:"clusters"`
	ExportedAt time.Time                     `json:"exportedAt"`
}

// Snapshot copies the graph into its serializable form.
func (g *ConnectionGraph) Snapshot(now time.Time) GraphSnapshot {
	snap := GraphSnapshot{
		Version:    snapshotVersion,
		Nodes:      make([]*entities.NodeMetadata, 0, len(g.nodeOrder)),
		Edges:      []EdgeList{},
		Clusters:   make([]*entities.ConnectionCluster, 0, len(g.clusters)),
		ExportedAt: now,
	}

	for _, id := range g.nodeOrder {
		meta := *g.metadata[id]
		meta.Tags = append([]string{}, meta.Tags...)
		snap.Nodes = append(snap.Nodes, &meta)

		if list := g.edges[id]; len(list) > 0 {
			conns := lo.Map(list, func(c *entities.Connection, _ int) *entities.Connection {
				cp := *c
				return &cp
			})
			snap.Edges = append(snap.Edges, EdgeList{SourceID: id, Connections: conns})
		}
	}
	for _, c := range g.clusters {
		cp := *c
		snap.Clusters = append(snap.Clusters, &cp)
	}
	return snap
}

// FromSnapshot rebuilds a graph, rejecting edges whose endpoints are
// missing. Stored connection counts are kept as-is.
func FromSnapshot(snap GraphSnapshot) (*ConnectionGraph, error) {
	if snap.Version > snapshotVersion {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unsupported graph snapshot version %d", snap.Version))
	}

	g := NewConnectionGraph()
	for _, n := range snap.Nodes {
		if n == nil || n.ID == "" {
			return nil, pkgerrors.NewValidationError("graph snapshot contains a node without id")
		}
		if g.HasNode(n.ID) {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("graph snapshot contains duplicate node %s", n.ID))
		}
		meta := *n
		g.nodeOrder = append(g.nodeOrder, n.ID)
		g.metadata[n.ID] = &meta
	}

	for _, list := range snap.Edges {
		for _, c := range list.Connections {
			if c == nil {
				continue
			}
			if c.SourceID != list.SourceID {
				return nil, pkgerrors.NewValidationError(
					fmt.Sprintf("connection %s listed under %s but sourced at %s", c.ID, list.SourceID, c.SourceID),
				)
			}
			if !g.HasNode(c.SourceID) || !g.HasNode(c.TargetID) {
				return nil, pkgerrors.NewValidationError(
					fmt.Sprintf("connection %s references unknown node", c.ID),
				).WithCode(ErrUnknownNode.Code)
			}
			if _, dup := g.connections[c.ID]; dup {
				return nil, pkgerrors.NewValidationError(fmt.Sprintf("duplicate connection %s", c.ID))
			}
			cp := *c
			g.edges[c.SourceID] = append(g.edges[c.SourceID], &cp)
			g.connections[c.ID] = &cp
		}
	}

	for _, c := range snap.Clusters {
		if c == nil {
			continue
		}
		cp := *c
		g.clusters = append(g.clusters, &cp)
	}
	return g, nil
}
