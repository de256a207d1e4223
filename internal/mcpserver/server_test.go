package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/coreseekdev/textcase/internal/docservice"
	"github.com/coreseekdev/textcase/internal/project"
	"github.com/coreseekdev/textcase/internal/storage"
	"github.com/coreseekdev/textcase/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	_, store := testutil.TestStore(t)
	testutil.TestProject(t, store,
		project.Spec{Prefix: "REQ", Path: "reqs"},
		project.Spec{Prefix: "TST", Path: "tests", Sep: "-"},
	)
	svc, err := docservice.New(store, testutil.TestDB(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return New(svc, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "resolve_id":
		result, err = srv.resolveID(ctx, req)
	case "read_document":
		result, err = srv.readDocument(ctx, req)
	case "add_document":
		result, err = srv.addDocument(ctx, req)
	case "link_documents":
		result, err = srv.linkDocuments(ctx, req)
	case "unlink_documents":
		result, err = srv.unlinkDocuments(ctx, req)
	case "list_modules":
		result, err = srv.listModules(ctx, req)
	case "list_documents":
		result, err = srv.listDocuments(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "documents_for_tag":
		result, err = srv.documentsForTag(ctx, req)
	case "get_document_contract":
		result, err = srv.getDocumentContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestAddAndReadDocument(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "add_document", map[string]interface{}{
		"prefix":  "REQ",
		"message": "Login works",
	})
	if r.IsError {
		t.Fatalf("add_document error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "REQ001") {
		t.Errorf("add_document = %q, want REQ001", resultText(r))
	}

	r = callTool(t, srv, "read_document", map[string]interface{}{"id": "req1"})
	if r.IsError {
		t.Fatalf("read_document error: %s", resultText(r))
	}
	if got, want := resultText(r), "# REQ001: Login works\n\n"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestAddDocument_MissingPrefix(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "add_document", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing prefix")
	}
}

func TestResolveID(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "add_document", map[string]interface{}{"prefix": "TST"})

	r := callTool(t, srv, "resolve_id", map[string]interface{}{"id": "tst1"})
	if r.IsError {
		t.Fatalf("resolve_id error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"TST-001"`) {
		t.Errorf("resolve_id = %s, want TST-001", resultText(r))
	}

	r = callTool(t, srv, "resolve_id", map[string]interface{}{"id": "NOPE"})
	if !r.IsError {
		t.Error("expected error for unknown module")
	}
}

func TestLinkBacklinksUnlink(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "add_document", map[string]interface{}{"prefix": "REQ"})
	callTool(t, srv, "add_document", map[string]interface{}{"prefix": "TST"})

	r := callTool(t, srv, "link_documents", map[string]interface{}{
		"source": "TST1",
		"target": "REQ1",
		"label":  "verifies",
	})
	if r.IsError {
		t.Fatalf("link_documents error: %s", resultText(r))
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"id": "REQ001"})
	if r.IsError {
		t.Fatalf("get_backlinks error: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, "TST-001") || !strings.Contains(text, "verifies") {
		t.Errorf("backlinks = %s", text)
	}

	r = callTool(t, srv, "unlink_documents", map[string]interface{}{"source": "TST1", "target": "REQ1"})
	if r.IsError {
		t.Fatalf("unlink_documents error: %s", resultText(r))
	}
	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"id": "REQ001"})
	if got := resultText(r); got != "no backlinks found" {
		t.Errorf("backlinks after unlink = %q", got)
	}
}

func TestLinkDocuments_MissingTarget(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "add_document", map[string]interface{}{"prefix": "REQ"})
	r := callTool(t, srv, "link_documents", map[string]interface{}{"source": "REQ1", "target": "REQ9"})
	if !r.IsError {
		t.Error("expected error for missing target")
	}
}

func TestListModulesAndDocuments(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "add_document", map[string]interface{}{"prefix": "REQ", "message": "First"})
	callTool(t, srv, "add_document", map[string]interface{}{"prefix": "REQ"})

	r := callTool(t, srv, "list_modules", nil)
	if r.IsError {
		t.Fatalf("list_modules error: %s", resultText(r))
	}
	for _, p := range []string{`"PRJ"`, `"REQ"`, `"TST"`} {
		if !strings.Contains(resultText(r), p) {
			t.Errorf("list_modules missing %s: %s", p, resultText(r))
		}
	}

	r = callTool(t, srv, "list_documents", map[string]interface{}{"prefix": "REQ"})
	if got, want := resultText(r), "REQ001\tREQ001: First\nREQ002\tREQ002"; got != want {
		t.Errorf("list_documents = %q, want %q", got, want)
	}
}

func TestGetDocumentContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_document_contract", nil)
	if !strings.Contains(resultText(r), "Document Format Contract") {
		t.Error("contract text missing title")
	}
}
