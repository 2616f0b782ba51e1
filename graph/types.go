// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/brockwebb/project-mapper/ast"
)

// Default configuration values.
const (
	// DefaultMaxNodes is the default maximum number of nodes a graph can hold.
	DefaultMaxNodes = 1_000_000

	// DefaultMaxEdges is the default maximum number of edges a graph can hold.
	DefaultMaxEdges = 10_000_000
)

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting AddNode/AddEdge calls.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// EdgeType defines the type of relationship between nodes.
type EdgeType int

const (
	// EdgeTypeUnknown indicates an unrecognized relationship type.
	EdgeTypeUnknown EdgeType = iota

	// EdgeTypeCalls indicates a function/method calls another function,
	// method, or class constructor.
	EdgeTypeCalls

	// EdgeTypeImports indicates a file unit imports a module. The target
	// is another file unit (internal) or an external module node.
	EdgeTypeImports

	// EdgeTypeDeclares indicates a file unit declares a top-level function
	// or class, or a class declares a method.
	EdgeTypeDeclares

	// NumEdgeTypes is the total number of edge types (for array sizing).
	NumEdgeTypes
)

// edgeTypeNames maps EdgeType values to their string representations.
var edgeTypeNames = map[EdgeType]string{
	EdgeTypeUnknown:  "unknown",
	EdgeTypeCalls:    "calls",
	EdgeTypeImports:  "imports",
	EdgeTypeDeclares: "declares",
}

// String returns the string representation of the EdgeType.
func (t EdgeType) String() string {
	if name, ok := edgeTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Edge represents a directed relationship between two nodes.
//
// Multiple edges of the same type between the same nodes are allowed,
// representing different call sites in the code.
type Edge struct {
	// FromID is the ID of the source node.
	FromID string

	// ToID is the ID of the target node.
	ToID string

	// Type is the relationship type (calls, imports, declares).
	Type EdgeType

	// Location is where the relationship is expressed in code.
	Location ast.Location
}

// Node represents an entity in the project graph.
//
// The Symbol pointer is NOT owned by the Node. The referenced Symbol
// MUST NOT be mutated after the Node is added to a Graph.
type Node struct {
	// ID is the unique identifier, same as Symbol.ID.
	ID string

	// Symbol is the underlying symbol. For file unit nodes this is a
	// synthetic SymbolKindModule symbol; for external modules a synthetic
	// SymbolKindExternal symbol.
	Symbol *ast.Symbol

	// Outgoing contains edges where this node is the source.
	Outgoing []*Edge

	// Incoming contains edges where this node is the target.
	Incoming []*Edge
}

// UnresolvedCall records a call whose target could not be matched to any
// declared entity in the project.
//
// Unresolved calls are an expected outcome of best-effort name resolution,
// not errors. Renderers surface them as labeled sinks.
type UnresolvedCall struct {
	// CallerID is the ID of the function or method making the call.
	CallerID string

	// Target is the callee name as written in source.
	Target string

	// Location is where the call appears.
	Location ast.Location
}

// GraphOptions configures Graph behavior and limits.
type GraphOptions struct {
	// MaxNodes is the maximum number of nodes the graph can hold.
	MaxNodes int

	// MaxEdges is the maximum number of edges the graph can hold.
	MaxEdges int
}

// DefaultGraphOptions returns sensible defaults for graph configuration.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
}

// GraphOption is a functional option for configuring Graph.
type GraphOption func(*GraphOptions)

// WithMaxNodes sets the maximum number of nodes the graph can hold.
func WithMaxNodes(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxNodes = n
	}
}

// WithMaxEdges sets the maximum number of edges the graph can hold.
func WithMaxEdges(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxEdges = n
	}
}

// Graph represents the structure graph for a project.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use during building. Single-writer
//	access during build, read-only after Freeze().
type Graph struct {
	// ProjectRoot is the path to the analyzed project root.
	ProjectRoot string

	// nodes maps node ID to Node.
	nodes map[string]*Node

	// edges contains all edges, in insertion order.
	edges []*Edge

	// nodesByName maps symbol name to nodes with that name. Multiple
	// entities can share a name across files.
	nodesByName map[string][]*Node

	// nodesByKind maps symbol kind to nodes of that kind.
	nodesByKind map[ast.SymbolKind][]*Node

	// edgesByType stores edges grouped by their type, indexed by EdgeType.
	edgesByType [NumEdgeTypes][]*Edge

	// fileOrder lists file unit IDs in the order they were registered.
	// Resolution and rendering iterate files in this order, which makes
	// output a pure function of the ordered input.
	fileOrder []string

	// unresolved records calls that matched nothing, in discovery order.
	unresolved []UnresolvedCall

	// state is the current lifecycle state.
	state GraphState

	// options contains configuration.
	options GraphOptions

	// BuiltAtMilli is the Unix timestamp in milliseconds when Freeze()
	// was called. Zero if the graph has not been frozen.
	BuiltAtMilli int64
}

// NewGraph creates a new empty graph for the given project root.
//
// The graph starts in the Building state, ready to accept AddNode and
// AddEdge calls. It must be frozen with Freeze() before querying from
// multiple goroutines.
func NewGraph(projectRoot string, opts ...GraphOption) *Graph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Graph{
		ProjectRoot: projectRoot,
		nodes:       make(map[string]*Node),
		edges:       make([]*Edge, 0),
		nodesByName: make(map[string][]*Node),
		nodesByKind: make(map[ast.SymbolKind][]*Node),
		fileOrder:   make([]string, 0),
		state:       GraphStateBuilding,
		options:     options,
	}
}

// State returns the current lifecycle state of the graph.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// Freeze transitions the graph to read-only mode.
//
// After calling Freeze(), AddNode and AddEdge return ErrGraphFrozen. This
// operation is irreversible.
//
// Thread Safety:
//
//	After Freeze() returns, the graph can be safely read from multiple
//	goroutines concurrently.
func (g *Graph) Freeze() {
	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// AddNode adds a symbol as a node in the graph.
//
// The symbol's ID becomes the node's ID. A duplicate ID returns
// ErrDuplicateNode; the caller decides whether that is fatal (the builder
// treats it as an input-contract violation and aborts).
//
// Ownership: the graph stores a pointer to the symbol but does NOT own
// it. The symbol MUST NOT be mutated after this call.
func (g *Graph) AddNode(symbol *ast.Symbol) (*Node, error) {
	if g.state == GraphStateReadOnly {
		return nil, ErrGraphFrozen
	}
	if symbol == nil {
		return nil, fmt.Errorf("%w: symbol is nil", ErrInvalidNode)
	}
	if symbol.ID == "" {
		return nil, fmt.Errorf("%w: symbol has empty ID", ErrInvalidNode)
	}
	if len(g.nodes) >= g.options.MaxNodes {
		return nil, ErrMaxNodesExceeded
	}
	if _, exists := g.nodes[symbol.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, symbol.ID)
	}

	node := &Node{
		ID:       symbol.ID,
		Symbol:   symbol,
		Outgoing: make([]*Edge, 0),
		Incoming: make([]*Edge, 0),
	}

	g.nodes[symbol.ID] = node

	if symbol.Name != "" {
		g.nodesByName[symbol.Name] = append(g.nodesByName[symbol.Name], node)
	}
	g.nodesByKind[symbol.Kind] = append(g.nodesByKind[symbol.Kind], node)

	if symbol.Kind == ast.SymbolKindModule {
		g.fileOrder = append(g.fileOrder, symbol.ID)
	}

	return node, nil
}

// GetNode retrieves a node by its ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// AddEdge creates a directed edge between two existing nodes.
//
// Multiple edges of the same type between the same nodes are allowed,
// representing different call sites.
func (g *Graph) AddEdge(fromID, toID string, edgeType EdgeType, loc ast.Location) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	if len(g.edges) >= g.options.MaxEdges {
		return ErrMaxEdgesExceeded
	}

	fromNode, fromOK := g.nodes[fromID]
	if !fromOK {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, fromID)
	}
	toNode, toOK := g.nodes[toID]
	if !toOK {
		return fmt.Errorf("%w: target %s", ErrNodeNotFound, toID)
	}

	edge := &Edge{
		FromID:   fromID,
		ToID:     toID,
		Type:     edgeType,
		Location: loc,
	}

	g.edges = append(g.edges, edge)
	fromNode.Outgoing = append(fromNode.Outgoing, edge)
	toNode.Incoming = append(toNode.Incoming, edge)

	if edgeType >= 0 && edgeType < NumEdgeTypes {
		g.edgesByType[edgeType] = append(g.edgesByType[edgeType], edge)
	}

	return nil
}

// RecordUnresolvedCall records a call that matched no declared entity.
// Only allowed while the graph is building.
func (g *Graph) RecordUnresolvedCall(call UnresolvedCall) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	g.unresolved = append(g.unresolved, call)
	return nil
}

// Nodes returns all nodes sorted by ID.
//
// Sorting makes iteration order independent of map layout; callers that
// need input-order file traversal should use FileOrder instead.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Edges returns all edges in insertion order. The returned slice is shared;
// callers must not modify it.
func (g *Graph) Edges() []*Edge {
	return g.edges
}

// EdgesByType returns all edges of the given type, in insertion order.
// The returned slice is shared; callers must not modify it.
func (g *Graph) EdgesByType(t EdgeType) []*Edge {
	if t < 0 || t >= NumEdgeTypes {
		return nil
	}
	return g.edgesByType[t]
}

// NodesByKind returns all nodes of the given kind, in insertion order.
func (g *Graph) NodesByKind(kind ast.SymbolKind) []*Node {
	return g.nodesByKind[kind]
}

// NodesByName returns all nodes whose symbol has the given name, in
// insertion order.
func (g *Graph) NodesByName(name string) []*Node {
	return g.nodesByName[name]
}

// FileOrder returns the file unit IDs in registration order.
func (g *Graph) FileOrder() []string {
	return g.fileOrder
}

// UnresolvedCalls returns the recorded unresolved calls in discovery order.
func (g *Graph) UnresolvedCalls() []UnresolvedCall {
	return g.unresolved
}
