package mcp

import "github.com/mark3labs/mcp-go/mcp"

// getNeuronTool defines the get_neuron MCP tool.
var getNeuronTool = mcp.NewTool("get_neuron",
	mcp.WithDescription("Get a neuron's explanation, explanation scores, activation statistics and topic."),
	mcp.WithNumber("layer",
		mcp.Required(),
		mcp.Description("Layer index"),
		mcp.Min(0),
	),
	mcp.WithNumber("index",
		mcp.Required(),
		mcp.Description("Neuron index within the layer"),
		mcp.Min(0),
	),
)

// getActivationsTool defines the get_activations MCP tool.
var getActivationsTool = mcp.NewTool("get_activations",
	mcp.WithDescription("List example texts with per-token activations for a neuron."),
	mcp.WithNumber("layer",
		mcp.Required(),
		mcp.Description("Layer index"),
		mcp.Min(0),
	),
	mcp.WithNumber("index",
		mcp.Required(),
		mcp.Description("Neuron index within the layer"),
		mcp.Min(0),
	),
	mcp.WithString("category",
		mcp.Description("Which examples to list (default top)"),
		mcp.Enum("top", "random"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of examples to return (default 10)"),
	),
)

// rankNeuronTool defines the rank_neuron MCP tool.
var rankNeuronTool = mcp.NewTool("rank_neuron",
	mcp.WithDescription("Rank a neuron's statistics against every stored neuron, as Top/Bottom percentages."),
	mcp.WithNumber("layer",
		mcp.Required(),
		mcp.Description("Layer index"),
		mcp.Min(0),
	),
	mcp.WithNumber("index",
		mcp.Required(),
		mcp.Description("Neuron index within the layer"),
		mcp.Min(0),
	),
)

// listTopicsTool defines the list_topics MCP tool.
var listTopicsTool = mcp.NewTool("list_topics",
	mcp.WithDescription("List the explanation topic catalog with each topic's top words."),
)

// similarNeuronsTool defines the similar_neurons MCP tool.
var similarNeuronsTool = mcp.NewTool("similar_neurons",
	mcp.WithDescription("Find neurons whose explanations are closest to a given neuron's explanation."),
	mcp.WithNumber("layer",
		mcp.Required(),
		mcp.Description("Layer index"),
		mcp.Min(0),
	),
	mcp.WithNumber("index",
		mcp.Required(),
		mcp.Description("Neuron index within the layer"),
		mcp.Min(0),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of neighbours to return (default 10)"),
	),
	mcp.WithNumber("topic",
		mcp.Description("Only return neurons in this topic"),
	),
)

// searchExplanationsTool defines the search_explanations MCP tool.
var searchExplanationsTool = mcp.NewTool("search_explanations",
	mcp.WithDescription("Search neuron explanations semantically. Requires an embedding provider."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language description of the behaviour to find"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 10)"),
	),
	mcp.WithNumber("topic",
		mcp.Description("Only return neurons in this topic"),
	),
)
