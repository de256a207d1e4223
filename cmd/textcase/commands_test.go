package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempProjectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = &buf
	err := app.Run(context.Background(), append([]string{"textcase", "-C", dir}, args...))
	return buf.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	if err != nil {
		t.Fatalf("textcase %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestCommands_EndToEnd(t *testing.T) {
	dir := tempProjectDir(t)

	mustRun(t, dir, "create", "PRJ", ".")
	mustRun(t, dir, "create", "REQ", "reqs")
	mustRun(t, dir, "create", "--sep", "-", "TST", "tests")

	if got := mustRun(t, dir, "add", "-q", "-m", "Login", "REQ"); strings.TrimSpace(got) != "reqs/REQ001.md" {
		t.Errorf("add output = %q, want reqs/REQ001.md", got)
	}
	mustRun(t, dir, "add", "-q", "TST")

	data, err := os.ReadFile(filepath.Join(dir, "reqs", "REQ001.md"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "# REQ001: Login\n\n"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}

	mustRun(t, dir, "link", "-l", "verifies", "tst1", "req1")

	out := mustRun(t, dir, "show", "--json", "TST-001")
	var details struct {
		ID    string `json:"id"`
		Links []struct {
			Target string   `json:"target"`
			Labels []string `json:"labels"`
		} `json:"links"`
	}
	if err := json.Unmarshal([]byte(out), &details); err != nil {
		t.Fatalf("decode show output %q: %v", out, err)
	}
	if details.ID != "TST-001" || len(details.Links) != 1 || details.Links[0].Target != "REQ001" {
		t.Errorf("show = %+v", details)
	}

	if got := mustRun(t, dir, "backlinks", "REQ1"); !strings.Contains(got, "TST-001\tverifies") {
		t.Errorf("backlinks = %q", got)
	}

	list := mustRun(t, dir, "list", "REQ")
	if !strings.Contains(list, "REQ001\tREQ001: Login") {
		t.Errorf("list = %q", list)
	}

	mustRun(t, dir, "check")
	mustRun(t, dir, "unlink", "TST1", "REQ1")
	if got := mustRun(t, dir, "backlinks", "REQ1"); got != "" {
		t.Errorf("backlinks after unlink = %q", got)
	}
}

func TestCommands_Modules(t *testing.T) {
	dir := tempProjectDir(t)
	mustRun(t, dir, "create", "PRJ", ".")
	mustRun(t, dir, "create", "--tag", "draft,review", "REQ", "reqs")
	mustRun(t, dir, "create", "--parent", "REQ", "TST", "reqs/tests")

	want := "PRJ\t.\t\nREQ\treqs\tPRJ\nTST\treqs/tests\tREQ\n"
	if got := mustRun(t, dir, "modules"); got != want {
		t.Errorf("modules = %q, want %q", got, want)
	}
	if got := mustRun(t, dir, "modules", "REQ"); got != "TST\treqs/tests\tREQ\n" {
		t.Errorf("modules REQ = %q", got)
	}
	if _, err := run(t, dir, "modules", "NOPE"); err == nil {
		t.Error("modules of an unknown prefix should fail")
	}

	mustRun(t, dir, "add", "-q", "REQ")
	if got := mustRun(t, dir, "tag", "list", "REQ1"); got != "draft\nreview\n" {
		t.Errorf("tag list = %q, want both default tags", got)
	}
}

func TestCommands_ZeroDigits(t *testing.T) {
	dir := tempProjectDir(t)
	mustRun(t, dir, "create", "PRJ", ".")
	if _, err := run(t, dir, "create", "--digits", "0", "REQ", "reqs"); err == nil {
		t.Error("create with zero digits should fail")
	}
}

func TestCommands_Tags(t *testing.T) {
	dir := tempProjectDir(t)
	mustRun(t, dir, "create", "PRJ", ".")
	mustRun(t, dir, "create", "REQ", "reqs")
	mustRun(t, dir, "add", "-q", "REQ")

	if _, err := run(t, dir, "tag", "add", "status:draft", "REQ1"); err == nil {
		t.Error("tag add with undefined verb should fail without --force")
	}
	mustRun(t, dir, "tag", "add", "--force", "status:draft", "REQ1")

	if got := mustRun(t, dir, "tag", "list", "REQ1"); strings.TrimSpace(got) != "status:draft" {
		t.Errorf("tag list = %q", got)
	}
	if got := mustRun(t, dir, "tag", "docs", "status"); !strings.Contains(got, "REQ001") {
		t.Errorf("tag docs = %q", got)
	}
	mustRun(t, dir, "tag", "remove", "status:draft", "REQ1")
	if got := mustRun(t, dir, "tag", "docs", "status:draft"); got != "" {
		t.Errorf("tag docs after remove = %q", got)
	}
}

func TestCommands_Errors(t *testing.T) {
	dir := tempProjectDir(t)

	if _, err := run(t, dir, "add", "-q", "REQ"); err == nil {
		t.Error("add outside a project should fail")
	}
	mustRun(t, dir, "create", "PRJ", ".")
	if _, err := run(t, dir, "link", "REQ1"); err == nil || !strings.Contains(err.Error(), "expected 2") {
		t.Errorf("link with one argument err = %v", err)
	}
	if _, err := run(t, dir, "add", "-q", "NOPE"); err == nil {
		t.Error("add to unknown module should fail")
	}
}
