// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes TextCase document tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/coreseekdev/textcase/internal/docservice"
)

// ContractURI is the resource URI of the document format contract.
const ContractURI = "textcase://document-format"

// Server wraps the MCP server with TextCase tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all TextCase tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"TextCase",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("resolve_id",
		mcp.WithDescription("Resolve a partial document ID (e.g. REQ1) to its canonical ID and path."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document ID, case-insensitive, zero padding optional")),
	), s.resolveID)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full Markdown content of a document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document ID")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("add_document",
		mcp.WithDescription("Create a new document in a module with the next free number. "+
			"Read the contract first via get_document_contract or the "+ContractURI+" resource."),
		mcp.WithString("prefix", mcp.Required(), mcp.Description("Module prefix, e.g. REQ")),
		mcp.WithString("message", mcp.Description("Heading text written after the ID")),
		mcp.WithString("name", mcp.Description("Optional custom number or name instead of the next number")),
	), s.addDocument)

	s.mcp.AddTool(mcp.NewTool("link_documents",
		mcp.WithDescription("Add a directed link from source to target, optionally labeled."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source document ID")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target document ID")),
		mcp.WithString("label", mcp.Description("Optional link label, e.g. verifies")),
	), s.linkDocuments)

	s.mcp.AddTool(mcp.NewTool("unlink_documents",
		mcp.WithDescription("Remove a label from a link, or the whole link when no label is given."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source document ID")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target document ID")),
		mcp.WithString("label", mcp.Description("Label to remove")),
	), s.unlinkDocuments)

	s.mcp.AddTool(mcp.NewTool("list_modules",
		mcp.WithDescription("List every module with its prefix, path and parent."),
	), s.listModules)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List documents in display order, for one module or all of them."),
		mcp.WithString("prefix", mcp.Description("Optional module prefix (empty for all)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all documents that link to the specified document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document ID to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("documents_for_tag",
		mcp.WithDescription("List documents carrying a tag (verb or verb:name)."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag reference, e.g. status:draft")),
	), s.documentsForTag)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the canonical TextCase document format contract. "+
			"Call this before editing documents to keep the frontmatter valid."),
	), s.getDocumentContract)

	// Resource: document format contract.
	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Document Format Contract",
			mcp.WithResourceDescription("Canonical document format that all TextCase documents follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// optional returns the string argument key, or "" when absent.
func optional(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return v
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) resolveID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Resolve(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(doc)
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, data, err := s.svc.Read(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) addDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix, err := req.RequireString("prefix")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.AddDocument(prefix, docservice.AddOptions{
		Name:    optional(req, "name"),
		Message: optional(req, "message"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", doc.ID, doc.Path)), nil
}

func (s *Server) linkDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, target, errResult := sourceTarget(req)
	if errResult != nil {
		return errResult, nil
	}
	if err := s.svc.Link(source, target, optional(req, "label")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("linked: %s -> %s", source, target)), nil
}

func (s *Server) unlinkDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, target, errResult := sourceTarget(req)
	if errResult != nil {
		return errResult, nil
	}
	if err := s.svc.Unlink(source, target, optional(req, "label")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("unlinked: %s -> %s", source, target)), nil
}

func sourceTarget(req mcp.CallToolRequest) (string, string, *mcp.CallToolResult) {
	source, err := req.RequireString("source")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	target, err := req.RequireString("target")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	return source, target, nil
}

type moduleInfo struct {
	Prefix     string   `json:"prefix"`
	Path       string   `json:"path"`
	Parent     string   `json:"parent,omitempty"`
	Sep        string   `json:"sep,omitempty"`
	Digits     int      `json:"digits"`
	DefaultTag []string `json:"default_tag,omitempty"`
}

func (s *Server) listModules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mods, err := s.svc.Modules()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]moduleInfo, 0, len(mods))
	for _, m := range mods {
		out = append(out, moduleInfo{
			Prefix:     m.Prefix,
			Path:       m.Dir(),
			Parent:     m.Parent,
			Sep:        m.Sep(),
			Digits:     m.Digits(),
			DefaultTag: m.DefaultTag(),
		})
	}
	return jsonResult(out)
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.svc.List(optional(req, "prefix"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := strings.Repeat("  ", e.Depth) + e.ID
		if e.Title != "" {
			line += "\t" + e.Title
		}
		lines = append(lines, line)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return jsonResult(bl)
}

func (s *Server) documentsForTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := s.svc.DocumentsForTag(tag)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(docs)
}

func (s *Server) getDocumentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readDocumentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
