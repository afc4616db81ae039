// CLAUDE:SUMMARY Exposes the document importer as MCP tools.
package docimport

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type importInput struct {
	Path string `json:"path" jsonschema:"Path of the docx file to import"`
}

type importOutput struct {
	Sections []Section `json:"sections"`
	Metadata Metadata  `json:"metadata"`
	Content  Node      `json:"content"`
}

type outlineOutput struct {
	Sections []Section `json:"sections"`
	Count    int       `json:"count"`
}

// RegisterMCP registers importer tools on an MCP server.
func (imp *Importer) RegisterMCP(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "cahier_import",
		Description: "Convert a docx file into a structured content tree, section outline, and document metadata.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args importInput) (*mcp.CallToolResult, importOutput, error) {
		res, err := imp.ImportFile(ctx, args.Path)
		if err != nil {
			return nil, importOutput{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{
				Text: fmt.Sprintf("imported %s: %d sections", args.Path, len(res.Sections)),
			}},
		}, importOutput{Sections: res.Sections, Metadata: res.Metadata, Content: res.Content}, nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "cahier_outline",
		Description: "Extract only the hierarchical section outline of a docx file.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args importInput) (*mcp.CallToolResult, outlineOutput, error) {
		res, err := imp.ImportFile(ctx, args.Path)
		if err != nil {
			return nil, outlineOutput{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{
				Text: fmt.Sprintf("%d sections in %s", len(res.Sections), args.Path),
			}},
		}, outlineOutput{Sections: res.Sections, Count: len(res.Sections)}, nil
	})
}
