package aggregates

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoughtweb/domain/core/entities"
	pkgerrors "thoughtweb/pkg/errors"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGraph(t *testing.T, ids ...string) *ConnectionGraph {
	t.Helper()
	g := NewConnectionGraph()
	for _, id := range ids {
		g.AddNode(entities.Item{ID: id, Content: "content of " + id, Timestamp: testNow})
	}
	return g
}

func connect(t *testing.T, g *ConnectionGraph, id, src, tgt string, weight float64) *entities.Connection {
	t.Helper()
	c := &entities.Connection{
		ID:         id,
		SourceID:   src,
		TargetID:   tgt,
		Type:       entities.ConnectionSemantic,
		Weight:     weight,
		Confidence: weight,
	}
	require.NoError(t, g.AddConnection(c))
	return c
}

func TestConnectionGraph_AddNode(t *testing.T) {
	g := NewConnectionGraph()

	assert.True(t, g.AddNode(entities.Item{ID: "a", Content: "first", Tags: []string{"X", "x"}}))
	assert.False(t, g.AddNode(entities.Item{ID: "a", Content: "edited"}))

	meta, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, "edited", meta.Content)
	assert.Equal(t, entities.ItemKindThought, meta.Type)
	assert.Equal(t, []string{"a"}, g.NodeIDs())
}

func TestConnectionGraph_AddNodePreviewTruncates(t *testing.T) {
	g := NewConnectionGraph()
	long := make([]rune, 150)
	for i := range long {
		long[i] = 'é'
	}
	g.AddNode(entities.Item{ID: "a", Content: string(long)})

	meta, _ := g.Node("a")
	assert.Len(t, []rune(meta.ContentPreview), 100)
}

func TestConnectionGraph_AddConnection(t *testing.T) {
	tests := []struct {
		name     string
		conn     *entities.Connection
		wantErr  bool
		validate bool
	}{
		{"valid", &entities.Connection{ID: "c1", SourceID: "a", TargetID: "b", Weight: 0.5, Confidence: 0.4}, false, false},
		{"unknown target", &entities.Connection{ID: "c2", SourceID: "a", TargetID: "zz", Weight: 0.5}, true, true},
		{"unknown source", &entities.Connection{ID: "c3", SourceID: "zz", TargetID: "a", Weight: 0.5}, true, true},
		{"weight out of range", &entities.Connection{ID: "c4", SourceID: "a", TargetID: "b", Weight: 1.5}, true, true},
		{"missing id", &entities.Connection{SourceID: "a", TargetID: "b"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraph(t, "a", "b")
			err := g.AddConnection(tt.conn)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.validate, pkgerrors.IsValidation(err))
				assert.Equal(t, 0, g.ConnectionCount())
				return
			}
			require.NoError(t, err)
			meta, _ := g.Node("a")
			assert.Equal(t, 1, meta.ConnectionCount)
			assert.Len(t, g.Outgoing("a"), 1)
			assert.Empty(t, g.Outgoing("b"))
		})
	}

	t.Run("unknown node matches sentinel", func(t *testing.T) {
		g := newTestGraph(t, "a")
		err := g.AddConnection(&entities.Connection{ID: "c", SourceID: "a", TargetID: "b"})
		assert.ErrorIs(t, err, ErrUnknownNode)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		g := newTestGraph(t, "a", "b")
		connect(t, g, "c", "a", "b", 0.5)
		err := g.AddConnection(&entities.Connection{ID: "c", SourceID: "b", TargetID: "a", Weight: 0.5})
		assert.True(t, pkgerrors.IsConflict(err))
	})
}

func TestConnectionGraph_EdgeEndpointsAlwaysNodes(t *testing.T) {
	g := newTestGraph(t, "a", "b", "c")
	connect(t, g, "ab", "a", "b", 0.6)
	connect(t, g, "bc", "b", "c", 0.6)
	_ = g.AddConnection(&entities.Connection{ID: "bad", SourceID: "a", TargetID: "ghost", Weight: 0.2})
	g.RemoveNode("c")

	for _, c := range g.Connections() {
		assert.True(t, g.HasNode(c.SourceID))
		assert.True(t, g.HasNode(c.TargetID))
	}
	assert.Equal(t, 1, g.ConnectionCount())
}

func TestConnectionGraph_FindPath(t *testing.T) {
	g := newTestGraph(t, "A", "B", "C", "D")
	connect(t, g, "ab", "A", "B", 0.8)
	connect(t, g, "bc", "B", "C", 0.5)

	t.Run("product weight", func(t *testing.T) {
		p, ok := g.FindPath("A", "C", 0)
		require.True(t, ok)
		assert.Equal(t, []string{"A", "B", "C"}, p.Path)
		assert.InDelta(t, 0.4, p.Weight, 1e-9)
		assert.Equal(t, 2, p.Length)
		assert.Len(t, p.Connections, 2)
	})

	t.Run("direction matters", func(t *testing.T) {
		_, ok := g.FindPath("C", "A", 0)
		assert.False(t, ok)
	})

	t.Run("same node", func(t *testing.T) {
		p, ok := g.FindPath("A", "A", 0)
		require.True(t, ok)
		assert.Equal(t, 0, p.Length)
		assert.Equal(t, 1.0, p.Weight)
	})

	t.Run("unreachable", func(t *testing.T) {
		_, ok := g.FindPath("A", "D", 0)
		assert.False(t, ok)
	})

	t.Run("unknown node", func(t *testing.T) {
		_, ok := g.FindPath("A", "missing", 0)
		assert.False(t, ok)
	})

	t.Run("depth limit", func(t *testing.T) {
		_, ok := g.FindPath("A", "C", 1)
		assert.False(t, ok)
	})
}

func TestConnectionGraph_FindPathPrefersFewestHopsThenFirstEdge(t *testing.T) {
	g := newTestGraph(t, "A", "B", "C", "D")
	connect(t, g, "ab", "A", "B", 0.9)
	connect(t, g, "ac", "A", "C", 0.3)
	connect(t, g, "bd", "B", "D", 0.9)
	connect(t, g, "cd", "C", "D", 0.9)
	connect(t, g, "ad", "A", "D", 0.1)

	p, ok := g.FindPath("A", "D", 3)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "D"}, p.Path)
	assert.InDelta(t, 0.1, p.Weight, 1e-9)

	g2 := newTestGraph(t, "A", "B", "C", "D")
	connect(t, g2, "ab", "A", "B", 0.2)
	connect(t, g2, "ac", "A", "C", 0.9)
	connect(t, g2, "bd", "B", "D", 0.2)
	connect(t, g2, "cd", "C", "D", 0.9)

	p2, ok := g2.FindPath("A", "D", 3)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B", "D"}, p2.Path)
}

func TestConnectionGraph_FindPathSkipsDismissed(t *testing.T) {
	g := newTestGraph(t, "A", "B")
	c := connect(t, g, "ab", "A", "B", 0.8)
	c.Dismiss()

	_, ok := g.FindPath("A", "B", 0)
	assert.False(t, ok)
}

func TestConnectionGraph_DetectClusters(t *testing.T) {
	g := newTestGraph(t, "a", "b", "c", "lonely")
	connect(t, g, "ba", "b", "a", 0.9)
	connect(t, g, "ca", "c", "a", 0.7)
	connect(t, g, "cb", "c", "b", 0.8)

	clusters := g.DetectClusters(DefaultClusterOptions(), testNow)

	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, clusters[0].ItemIDs)
	assert.InDelta(t, 0.8, clusters[0].Cohesion, 1e-9)
	assert.InDelta(t, 0.8, clusters[0].Confidence, 1e-9)
	assert.NotEmpty(t, clusters[0].Keywords)
	assert.Empty(t, g.ClustersContaining("lonely"))
	assert.Len(t, g.ClustersContaining("a"), 1)
}

// Discovery links new items to older ones, so an early thought collects
// in-edges only. Clusters ignore direction and keep the whole star; paths
// still follow it.
func TestConnectionGraph_DetectClustersStarOfInEdges(t *testing.T) {
	g := newTestGraph(t, "hub", "n1", "n2", "n3")
	connect(t, g, "e1", "n1", "hub", 0.9)
	connect(t, g, "e2", "n2", "hub", 0.9)
	connect(t, g, "e3", "n3", "hub", 0.9)

	clusters := g.DetectClusters(DefaultClusterOptions(), testNow)

	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []string{"hub", "n1", "n2", "n3"}, clusters[0].ItemIDs)

	_, ok := g.FindPath("n1", "hub", 3)
	assert.True(t, ok)
	_, ok = g.FindPath("hub", "n1", 3)
	assert.False(t, ok)
	_, ok = g.FindPath("n1", "n2", 3)
	assert.False(t, ok)
}

func TestConnectionGraph_DetectClustersMinimumSize(t *testing.T) {
	g := newTestGraph(t, "a", "b", "c", "d", "e")
	connect(t, g, "ab", "a", "b", 0.9)
	connect(t, g, "cd", "c", "d", 0.9)
	connect(t, g, "de", "d", "e", 0.4)

	clusters := g.DetectClusters(DefaultClusterOptions(), testNow)
	assert.Empty(t, clusters)

	for _, c := range g.DetectClusters(ClusterOptions{MinWeight: 0.3, MinSize: 3}, testNow) {
		assert.GreaterOrEqual(t, len(c.ItemIDs), 3)
	}
}

func TestConnectionGraph_DetectClustersStableID(t *testing.T) {
	g := newTestGraph(t, "a", "b", "c")
	connect(t, g, "ab", "a", "b", 0.9)
	connect(t, g, "bc", "b", "c", 0.9)

	first := g.DetectClusters(DefaultClusterOptions(), testNow)
	second := g.DetectClusters(DefaultClusterOptions(), testNow.Add(time.Hour))

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestConnectionGraph_UpdateClusteringCoefficients(t *testing.T) {
	g := newTestGraph(t, "a", "b", "c", "d")
	connect(t, g, "ab", "a", "b", 0.9)
	connect(t, g, "ac", "a", "c", 0.9)
	connect(t, g, "bc", "b", "c", 0.9)
	connect(t, g, "ad", "a", "d", 0.9)

	g.UpdateClusteringCoefficients()

	a, _ := g.Node("a")
	b, _ := g.Node("b")
	d, _ := g.Node("d")
	assert.InDelta(t, 1.0/3.0, a.ClusteringCoefficient, 1e-9)
	assert.InDelta(t, 1.0, b.ClusteringCoefficient, 1e-9)
	assert.Equal(t, 0.0, d.ClusteringCoefficient)
}

func TestConnectionGraph_IndirectPaths(t *testing.T) {
	g := newTestGraph(t, "a", "b", "c", "d", "e")
	connect(t, g, "ab", "a", "b", 0.9)
	connect(t, g, "bc", "b", "c", 0.5)
	connect(t, g, "cd", "c", "d", 0.5)
	connect(t, g, "de", "d", "e", 0.5)
	connect(t, g, "ba", "b", "a", 0.5)

	paths := g.IndirectPaths("a", 0)

	require.Len(t, paths, 2)
	assert.Equal(t, []string{"a", "b", "c"}, paths[0].Path)
	assert.InDelta(t, 0.45, paths[0].Weight, 1e-9)
	assert.Equal(t, []string{"a", "b", "c", "d"}, paths[1].Path)
	assert.Equal(t, 3, paths[1].Length)
}

func TestConnectionGraph_RemoveNode(t *testing.T) {
	g := newTestGraph(t, "a", "b", "c")
	connect(t, g, "ab", "a", "b", 0.9)
	connect(t, g, "bc", "b", "c", 0.9)
	connect(t, g, "ca", "c", "a", 0.9)
	g.DetectClusters(DefaultClusterOptions(), testNow)

	assert.True(t, g.RemoveNode("b"))
	assert.False(t, g.RemoveNode("b"))

	assert.Equal(t, []string{"a", "c"}, g.NodeIDs())
	assert.Empty(t, g.Outgoing("a"))
	_, ok := g.Connection("bc")
	assert.False(t, ok)
	assert.Empty(t, g.Clusters())
}

func TestConnectionGraph_SnapshotRoundTrip(t *testing.T) {
	g := newTestGraph(t, "a", "b", "c")
	connect(t, g, "ab", "a", "b", 0.9)
	connect(t, g, "bc", "b", "c", 0.6)
	connect(t, g, "ca", "c", "a", 0.7)
	g.DetectClusters(DefaultClusterOptions(), testNow)

	data, err := json.Marshal(g.Snapshot(testNow))
	require.NoError(t, err)

	var snap GraphSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	restored, err := FromSnapshot(snap)
	require.NoError(t, err)

	assert.Equal(t, g.NodeIDs(), restored.NodeIDs())
	assert.Equal(t, g.ConnectionCount(), restored.ConnectionCount())
	assert.Len(t, restored.Clusters(), 1)

	p, ok := restored.FindPath("a", "c", 0)
	require.True(t, ok)
	assert.InDelta(t, 0.54, p.Weight, 1e-9)

	meta, _ := restored.Node("a")
	assert.Equal(t, 1, meta.ConnectionCount)
}

func TestFromSnapshot_RejectsDanglingEdges(t *testing.T) {
	snap := GraphSnapshot{
		Version: 1,
		Nodes:   []*entities.NodeMetadata{{ID: "a"}},
		Edges: []EdgeList{{
			SourceID:    "a",
			Connections: []*entities.Connection{{ID: "x", SourceID: "a", TargetID: "ghost"}},
		}},
	}

	_, err := FromSnapshot(snap)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestConnectionGraph_Stats(t *testing.T) {
	g := newTestGraph(t, "a", "b")
	c1 := connect(t, g, "ab", "a", "b", 0.8)
	c2 := connect(t, g, "ba", "b", "a", 0.4)
	c1.Confirm()
	c2.Dismiss()

	s := g.Stats()
	assert.Equal(t, 2, s.Nodes)
	assert.Equal(t, 2, s.Connections)
	assert.Equal(t, 1, s.Confirmed)
	assert.Equal(t, 1, s.Dismissed)
	assert.InDelta(t, 0.6, s.AverageWeight, 1e-9)
	assert.Equal(t, 2, s.ByType[entities.ConnectionSemantic])
}
