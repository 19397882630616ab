package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/rank"
	"github.com/ziadkadry99/neuronview/internal/vectordb"
)

// requireNeuron reads the layer and index arguments.
func requireNeuron(request mcp.CallToolRequest) (layer, index int, res *mcp.CallToolResult) {
	layer, err := request.RequireInt("layer")
	if err != nil || layer < 0 {
		return 0, 0, mcp.NewToolResultError("missing or invalid parameter: layer")
	}
	index, err = request.RequireInt("index")
	if err != nil || index < 0 {
		return 0, 0, mcp.NewToolResultError("missing or invalid parameter: index")
	}
	return layer, index, nil
}

func lookupError(err error, layer, index int) *mcp.CallToolResult {
	if errors.Is(err, neurondb.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf(
			"No neuron at layer %d index %d. Run `neuronview import` to load neuron data.", layer, index))
	}
	return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err))
}

// handleGetNeuron returns a neuron's stored metadata.
func (s *Server) handleGetNeuron(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layer, index, errRes := requireNeuron(request)
	if errRes != nil {
		return errRes, nil
	}

	rec, err := s.store.GetNeuron(ctx, layer, index)
	if err != nil {
		return lookupError(err, layer, index), nil
	}

	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing topics: %v", err)), nil
	}
	return mcp.NewToolResultText(neurondb.FormatNeuron(rec, neurondb.TopicsByID(topics))), nil
}

// handleGetActivations lists activation examples for a neuron.
func (s *Server) handleGetActivations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layer, index, errRes := requireNeuron(request)
	if errRes != nil {
		return errRes, nil
	}
	category := request.GetString("category", string(neurondb.CategoryTop))
	limit := request.GetInt("limit", neurondb.DefaultActivationLimit)

	samples, err := s.store.ListActivations(ctx, layer, index, category, limit)
	if errors.Is(err, neurondb.ErrInvalidCategory) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return lookupError(err, layer, index), nil
	}
	if len(samples) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No %s activations stored for layer %d neuron %d.", category, layer, index)), nil
	}
	return mcp.NewToolResultText(neurondb.FormatActivations(samples)), nil
}

// handleRankNeuron ranks a neuron against the whole store.
func (s *Server) handleRankNeuron(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layer, index, errRes := requireNeuron(request)
	if errRes != nil {
		return errRes, nil
	}

	rec, err := s.store.GetNeuron(ctx, layer, index)
	if err != nil {
		return lookupError(err, layer, index), nil
	}

	var sample []*neurondb.NeuronRecord
	err = s.store.AllNeurons(ctx, func(n *neurondb.NeuronRecord) error {
		sample = append(sample, n)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading reference sample: %v", err)), nil
	}

	text := fmt.Sprintf("Layer %d neuron %d against %d stored neuron(s):\n\n", layer, index, len(sample))
	return mcp.NewToolResultText(text + rank.FormatRanks(rank.RankRecord(rec, sample))), nil
}

// handleListTopics lists the topic catalog.
func (s *Server) handleListTopics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing topics: %v", err)), nil
	}
	if len(topics) == 0 {
		return mcp.NewToolResultText("No topics stored."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d topic(s):\n", len(topics))
	for _, t := range topics {
		fmt.Fprintf(&sb, "%d. %s: %s\n", t.ID, t.Title, strings.Join(t.TopWords, ", "))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func topicFilter(request mcp.CallToolRequest) *vectordb.Filter {
	args := request.GetArguments()
	if _, ok := args["topic"]; !ok {
		return nil
	}
	topic := request.GetInt("topic", 0)
	return &vectordb.Filter{TopicID: &topic}
}

func resultLimit(request mcp.CallToolRequest) int {
	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	return limit
}

// handleSimilarNeurons finds a neuron's nearest explanations.
func (s *Server) handleSimilarNeurons(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.index == nil {
		return mcp.NewToolResultError("No neighbour index loaded. Restart with an index path configured."), nil
	}
	layer, index, errRes := requireNeuron(request)
	if errRes != nil {
		return errRes, nil
	}

	results, err := s.index.Similar(ctx, layer, index, resultLimit(request), topicFilter(request))
	if errors.Is(err, vectordb.ErrNotIndexed) {
		return mcp.NewToolResultError(fmt.Sprintf("Layer %d neuron %d has no indexed explanation embedding.", layer, index)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return mcp.NewToolResultText(vectordb.FormatNeighbours(results)), nil
}

// handleSearchExplanations performs semantic search over explanation text.
func (s *Server) handleSearchExplanations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	if s.index == nil {
		return mcp.NewToolResultError("No neighbour index loaded. Restart with an index path configured."), nil
	}

	results, err := s.index.Search(ctx, query, resultLimit(request), topicFilter(request))
	if errors.Is(err, vectordb.ErrSearchDisabled) {
		return mcp.NewToolResultError("Explanation search needs an embedding provider. Set search.provider in the config file."), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return mcp.NewToolResultText(vectordb.FormatNeighbours(results)), nil
}
