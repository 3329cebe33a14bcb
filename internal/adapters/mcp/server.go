// Package mcpadapter exposes the query engine over the Model Context
// Protocol so LLM agents can call it as a tool via stdio.
package mcpadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/datareveal/docverse/internal/core/domain"
	"github.com/datareveal/docverse/internal/core/ports"
)

const maxTopK = 20

// Server wraps an MCP stdio server with the document query tools registered.
type Server struct {
	mcp *server.MCPServer
}

func NewServer(version string, engine ports.QueryEngine, searcher ports.FieldSearcher) *Server {
	s := server.NewMCPServer(
		"docverse",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(askDocumentsTool(), handleAskDocuments(engine))
	s.AddTool(searchMetadataTool(), handleSearchMetadata(searcher))

	return &Server{mcp: s}
}

// ServeStdio blocks serving MCP requests on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func askDocumentsTool() mcp.Tool {
	return mcp.NewTool("ask_documents",
		mcp.WithDescription("Answer a natural-language question over the clinical trial document corpus. Combines metadata and semantic retrieval and returns a cited answer."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Number of documents to ground the answer on (default 5, max 20)"),
		),
	)
}

func searchMetadataTool() mcp.Tool {
	return mcp.NewTool("search_metadata",
		mcp.WithDescription("Look up documents by a single metadata field, such as Sponsor, Protocol Number, CRA Name or Site Number."),
		mcp.WithString("field",
			mcp.Required(),
			mcp.Description("Metadata field name, e.g. Sponsor or Protocol Number"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("Value to search for"),
		),
		mcp.WithBoolean("exact",
			mcp.Description("Require an exact match instead of fuzzy matching (default false)"),
		),
	)
}

func handleAskDocuments(engine ports.QueryEngine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return toolError("query parameter is required"), nil
		}

		topK := request.GetInt("top_k", 0)
		if topK > maxTopK {
			topK = maxTopK
		}

		result, err := engine.Ask(ctx, domain.QueryRequest{Query: query, TopK: topK})
		if err != nil {
			return toolError(fmt.Sprintf("query failed: %v", err)), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatAnswer(result)),
			},
		}, nil
	}
}

func handleSearchMetadata(searcher ports.FieldSearcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		field, err := request.RequireString("field")
		if err != nil || strings.TrimSpace(field) == "" {
			return toolError("field parameter is required"), nil
		}
		value, err := request.RequireString("value")
		if err != nil || strings.TrimSpace(value) == "" {
			return toolError("value parameter is required"), nil
		}
		exact := request.GetBool("exact", false)

		records, err := searcher.SearchByField(ctx, field, value, exact)
		if err != nil {
			return toolError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatRecords(field, value, records)),
			},
		}, nil
	}
}

func toolError(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent("Error: " + message),
		},
		IsError: true,
	}
}

func formatAnswer(result *domain.AnswerResult) string {
	var b strings.Builder
	b.WriteString(result.Answer)

	if len(result.Citations) > 0 {
		b.WriteString("\n\nSources:\n")
		for i, c := range result.Citations {
			fmt.Fprintf(&b, "[%d] document %s", i+1, c.DocumentID)
			if c.Page > 0 {
				fmt.Fprintf(&b, ", page %d", c.Page)
			}
			if c.Truncated {
				b.WriteString(" (truncated)")
			}
			b.WriteString("\n")
		}
	}

	if result.Degraded {
		b.WriteString("\nNote: answer synthesis was degraded; the text above lists retrieved material rather than a generated answer.")
	}
	return b.String()
}

func formatRecords(field, value string, records []domain.MetadataRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("No documents found with %s matching %q.", field, value)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d document(s) with %s matching %q:\n\n", len(records), field, value)
	for _, r := range records {
		fmt.Fprintf(&b, "- %s (%s)", r.Filename, r.DocumentID)
		if r.Entity != "" {
			fmt.Fprintf(&b, " [%s]", r.Entity)
		}
		if v := r.Field(field); v != "" {
			fmt.Fprintf(&b, ": %s = %s", field, v)
		}
		b.WriteString("\n")
	}
	return b.String()
}
