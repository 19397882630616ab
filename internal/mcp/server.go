package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/vectordb"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes neuron lookup tools.
type Server struct {
	store *neurondb.Store
	index vectordb.NeighbourIndex
	mcp   *server.MCPServer
}

// NewServer creates a new MCP server. index may be nil, in which case the
// neighbour tools report that no index is loaded.
func NewServer(store *neurondb.Store, index vectordb.NeighbourIndex) *Server {
	s := &Server{
		store: store,
		index: index,
	}

	s.mcp = server.NewMCPServer(
		"neuronview",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(getNeuronTool, s.handleGetNeuron)
	s.mcp.AddTool(getActivationsTool, s.handleGetActivations)
	s.mcp.AddTool(rankNeuronTool, s.handleRankNeuron)
	s.mcp.AddTool(listTopicsTool, s.handleListTopics)
	s.mcp.AddTool(similarNeuronsTool, s.handleSimilarNeurons)
	s.mcp.AddTool(searchExplanationsTool, s.handleSearchExplanations)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
