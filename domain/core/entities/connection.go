package entities

import (
	"time"
)

// ConnectionType names the detector that found a connection.
type ConnectionType string

const (
	ConnectionSemantic    ConnectionType = "semantic"
	ConnectionTemporal    ConnectionType = "temporal"
	ConnectionContextual  ConnectionType = "contextual"
	ConnectionCategorical ConnectionType = "categorical"
)

// ConnectionTypes lists every type in detector order.
var ConnectionTypes = []ConnectionType{
	ConnectionSemantic, ConnectionTemporal, ConnectionContextual, ConnectionCategorical,
}

// Connection is a directed, typed, weighted edge between two items. An item
// pair can carry one connection per type per direction.
type Connection struct {
	ID           string         `json:"id"`
	SourceID     string         `json:"sourceId"`
	TargetID     string         `json:"targetId"`
	Type         ConnectionType `json:"type"`
	Weight       float64        `json:"weight"`
	Confidence   float64        `json:"confidence"`
	Reason       string         `json:"reason"`
	SharedThemes []string       `json:"sharedThemes"`
	DiscoveredAt time.Time      `json:"discoveredAt"`
	Confirmed    bool           `json:"confirmed"`
	Dismissed    bool           `json:"dismissed"`
	ViewCount    int            `json:"viewCount"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Confirm marks the connection as accepted and clears any dismissal.
func (c *Connection) Confirm() {
	c.Confirmed = true
	c.Dismissed = false
}

// Dismiss marks the connection as rejected and clears any confirmation.
func (c *Connection) Dismiss() {
	c.Dismissed = true
	c.Confirmed = false
}

// RecordView counts one more view.
func (c *Connection) RecordView() {
	c.ViewCount++
}

// Clone returns a copy that shares nothing mutable with c.
func (c *Connection) Clone() *Connection {
	cp := *c
	cp.SharedThemes = append([]string{}, c.SharedThemes...)
	if c.Metadata != nil {
		cp.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// NodeMetadata describes a graph node for analysis and rendering.
type NodeMetadata struct {
	ID                    string    `json:"id"`
	ContentPreview        string    `json:"contentPreview"`
	Content               string    `json:"content"`
	Type                  ItemKind  `json:"type"`
	Timestamp             time.Time `json:"timestamp"`
	Tags                  []string  `json:"tags"`
	ConnectionCount       int       `json:"connectionCount"`
	ClusteringCoefficient float64   `json:"clusteringCoefficient"`
}

// ConnectionCluster is a group of at least three strongly linked items.
type ConnectionCluster struct {
	ID         string    `json:"id"`
	ItemIDs    []string  `json:"itemIds"`
	Theme      string    `json:"theme"`
	Keywords   []string  `json:"keywords"`
	Cohesion   float64   `json:"cohesion"`
	Confidence float64   `json:"confidence"`
	DetectedAt time.Time `json:"detectedAt"`
}

// Contains reports whether id belongs to the cluster.
func (c *ConnectionCluster) Contains(id string) bool {
	for _, itemID := range c.ItemIDs {
		if itemID == id {
			return true
		}
	}
	return false
}

// Clone returns a copy of the cluster.
func (c *ConnectionCluster) Clone() *ConnectionCluster {
	cp := *c
	cp.ItemIDs = append([]string{}, c.ItemIDs...)
	cp.Keywords = append([]string{}, c.Keywords...)
	return &cp
}

// ConnectionPath is a route through the graph. Weight is the product of the
// edge weights along it; Length counts hops.
type ConnectionPath struct {
	Path        []string      `json:"path"`
	Connections []*Connection `json:"connections"`
	Weight      float64       `json:"weight"`
	Length      int           `json:"length"`
}

// Clone copies the path and its connections.
func (p *ConnectionPath) Clone() *ConnectionPath {
	cp := *p
	cp.Path = append([]string{}, p.Path...)
	cp.Connections = make([]*Connection, 0, len(p.Connections))
	for _, c := range p.Connections {
		cp.Connections = append(cp.Connections, c.Clone())
	}
	return &cp
}

// ConnectionAnalysis is the neighbourhood report for a single item.
type ConnectionAnalysis struct {
	ItemID              string               `json:"itemId"`
	DirectConnections   []*Connection        `json:"directConnections"`
	IndirectConnections []*ConnectionPath    `json:"indirectConnections"`
	Clusters            []*ConnectionCluster `json:"clusters"`
	AnalyzedAt          time.Time            `json:"analyzedAt"`
	ProcessingTime      time.Duration        `json:"processingTime"`
}

// ConnectionStats summarizes the connection graph.
type ConnectionStats struct {
	Nodes         int                    `json:"nodes"`
	Connections   int                    `json:"connections"`
	ByType        map[ConnectionType]int `json:"byType"`
	Confirmed     int                    `json:"confirmed"`
	Dismissed     int                    `json:"dismissed"`
	AverageWeight float64                `json:"averageWeight"`
	Clusters      int                    `json:"clusters"`
	Discovering   bool                   `json:"discovering"`
}
