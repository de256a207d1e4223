package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coreseekdev/textcase/internal/apperr"
	"github.com/coreseekdev/textcase/internal/storage"
)

func newProject(t *testing.T) *Project {
	t.Helper()
	p, err := Init(storage.NewMemory(), Spec{Prefix: "PRJ"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return p
}

func mustCreate(t *testing.T, p *Project, spec Spec) *Module {
	t.Helper()
	m, err := p.CreateModule(spec)
	if err != nil {
		t.Fatalf("CreateModule(%s): %v", spec.Prefix, err)
	}
	return m
}

func digits(n int) *int { return &n }

func TestInit_Defaults(t *testing.T) {
	p := newProject(t)
	root := p.Root()
	if root.Prefix != "PRJ" || root.Digits() != DefaultDigits || root.Sep() != "" || root.Path != "" {
		t.Errorf("root = %+v", root)
	}
	if _, err := Init(p.Store(), Spec{Prefix: "PRJ"}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second Init err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateModule_RegistersAndReloads(t *testing.T) {
	p := newProject(t)
	mustCreate(t, p, Spec{Prefix: "REQ", Path: "reqs", Digits: digits(4), Sep: "-"})
	mustCreate(t, p, Spec{Prefix: "TST", Path: "reqs/tests", Parent: "req", DefaultTag: []string{"verify"}})

	loaded, err := Load(p.Store())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	req, err := loaded.Module("req")
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if req.Digits() != 4 || req.Sep() != "-" || req.Path != "reqs" || req.Parent != "PRJ" {
		t.Errorf("REQ = %+v", req)
	}
	children, _ := loaded.Children("REQ")
	if len(children) != 1 || children[0].Prefix != "TST" {
		t.Errorf("children = %+v", children)
	}
	parent, _ := loaded.Parent("TST")
	if parent == nil || parent.Prefix != "REQ" {
		t.Errorf("parent = %+v", parent)
	}
	if rootParent, _ := loaded.Parent("PRJ"); rootParent != nil {
		t.Errorf("root parent = %+v, want nil", rootParent)
	}

	var order []string
	for _, m := range loaded.Modules() {
		order = append(order, m.Prefix)
	}
	if len(order) != 3 || order[0] != "PRJ" || order[1] != "REQ" || order[2] != "TST" {
		t.Errorf("modules = %v", order)
	}
}

func TestCreateModule_Duplicates(t *testing.T) {
	p := newProject(t)
	mustCreate(t, p, Spec{Prefix: "REQ", Path: "reqs"})

	if _, err := p.CreateModule(Spec{Prefix: "req", Path: "other"}); !errors.Is(err, apperr.ErrDuplicateModule) {
		t.Errorf("duplicate prefix err = %v, want ErrDuplicateModule", err)
	}
	if _, err := p.CreateModule(Spec{Prefix: "TST", Path: "reqs"}); !errors.Is(err, apperr.ErrDuplicateModule) {
		t.Errorf("duplicate path err = %v, want ErrDuplicateModule", err)
	}
}

func TestCreateModule_Invalid(t *testing.T) {
	p := newProject(t)
	cases := map[string]struct {
		spec Spec
		want error
	}{
		"unknown parent": {Spec{Prefix: "TST", Path: "t", Parent: "NOPE"}, apperr.ErrModuleNotFound},
		"escape root":    {Spec{Prefix: "TST", Path: "../t"}, apperr.ErrConfig},
		"root path":      {Spec{Prefix: "TST", Path: "."}, apperr.ErrConfig},
		"bad prefix":     {Spec{Prefix: "1AB", Path: "t"}, apperr.ErrConfig},
		"bad digits":     {Spec{Prefix: "TST", Path: "t", Digits: digits(-1)}, apperr.ErrConfig},
		"zero digits":    {Spec{Prefix: "TST", Path: "t", Digits: digits(0)}, apperr.ErrConfig},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := p.CreateModule(tc.spec); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLoad_MalformedConfig(t *testing.T) {
	cases := map[string]string{
		"not yaml":    "settings: [\n",
		"zero digits": "settings:\n  prefix: PRJ\n  digits: 0\n",
		"no prefix":   "settings:\n  digits: 3\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			store := storage.NewMemory()
			_ = store.Write(ConfigFile, []byte(content))
			if _, err := Load(store); !errors.Is(err, apperr.ErrConfig) {
				t.Errorf("err = %v, want ErrConfig", err)
			}
		})
	}
}

func TestLoad_DefaultTagForms(t *testing.T) {
	store := storage.NewMemory()
	files := map[string]string{
		ConfigFile:            "settings:\n  prefix: PRJ\n  default_tag: []\n  modules:\n    PRJ:\n      REQ: reqs\n      TST: tests\n",
		"reqs/" + ConfigFile:  "settings:\n  prefix: REQ\n  default_tag: [draft, review]\n",
		"tests/" + ConfigFile: "settings:\n  prefix: TST\n  default_tag: verify, smoke\n",
	}
	for name, content := range files {
		if err := store.Write(name, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	p, err := Load(store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cases := map[string]string{"PRJ": "", "REQ": "draft,review", "TST": "verify,smoke"}
	for prefix, want := range cases {
		m, err := p.Module(prefix)
		if err != nil {
			t.Fatalf("Module(%s): %v", prefix, err)
		}
		if got := strings.Join(m.DefaultTag(), ","); got != want {
			t.Errorf("%s default tags = %q, want %q", prefix, got, want)
		}
	}
}

func TestCreateModule_WritesDefaultTagSequence(t *testing.T) {
	p := newProject(t)
	mustCreate(t, p, Spec{Prefix: "TST", Path: "tests", DefaultTag: []string{"verify", "smoke"}})
	data, err := p.Store().Read("tests/" + ConfigFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "- verify\n") || !strings.Contains(string(data), "- smoke\n") {
		t.Errorf("config = %q, want a default_tag sequence", data)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(storage.NewMemory()); !errors.Is(err, apperr.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestLoad_MissingModuleConfig(t *testing.T) {
	store := storage.NewMemory()
	_ = store.Write(ConfigFile, []byte("settings:\n  prefix: PRJ\n  modules:\n    PRJ:\n      REQ: reqs\n"))
	if _, err := Load(store); !errors.Is(err, apperr.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestModule_NotFound(t *testing.T) {
	p := newProject(t)
	if _, err := p.Module("XYZ"); !errors.Is(err, apperr.ErrModuleNotFound) {
		t.Errorf("err = %v, want ErrModuleNotFound", err)
	}
}

func TestModuleForPath(t *testing.T) {
	p := newProject(t)
	mustCreate(t, p, Spec{Prefix: "REQ", Path: "reqs"})
	mustCreate(t, p, Spec{Prefix: "TST", Path: "reqs/tests", Parent: "REQ"})

	cases := map[string]string{
		"reqs/REQ001.md":       "REQ",
		"reqs/tests/TST001.md": "TST",
		"reqs/tests":           "TST",
		"reqsx/file.md":        "PRJ",
		"PRJ001.md":            "PRJ",
	}
	for in, want := range cases {
		if got := p.ModuleForPath(in).Prefix; got != want {
			t.Errorf("ModuleForPath(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestTags_InheritedAndOverridden(t *testing.T) {
	p := newProject(t)
	mustCreate(t, p, Spec{Prefix: "REQ", Path: "reqs"})
	if err := p.DefineTag("PRJ", "status", ""); err != nil {
		t.Fatalf("DefineTag: %v", err)
	}
	if err := p.DefineTag("REQ", "owner", "reqs/owner.yml"); err != nil {
		t.Fatalf("DefineTag: %v", err)
	}

	tags, err := p.Tags("REQ")
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if tags["status"] != ".textcase/tags/status.yml" || tags["owner"] != "reqs/owner.yml" {
		t.Errorf("tags = %v", tags)
	}
	rootTags, _ := p.Tags("PRJ")
	if _, ok := rootTags["owner"]; ok {
		t.Errorf("root sees child tag: %v", rootTags)
	}
	if err := p.DefineTag("REQ", "bad verb", ""); !errors.Is(err, apperr.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestFindRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := FindRoot(dir); !errors.Is(err, apperr.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte("settings:\n  prefix: PRJ\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "reqs", "deep")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := FindRoot(sub)
	if err != nil {
		t.Fatalf("FindRoot: %v", err)
	}
	if want, _ := filepath.Abs(dir); got != want {
		t.Errorf("FindRoot = %q, want %q", got, want)
	}
}

func TestIdentify(t *testing.T) {
	p := newProject(t)
	mustCreate(t, p, Spec{Prefix: "REQ", Path: "reqs"})

	cases := map[string]string{
		"reqs/REQ001.md":     "REQ:REQ001",
		"PRJ002.md":          "PRJ:PRJ002",
		"reqs/notes.md":      "",
		"reqs/sub/REQ001.md": "",
		"reqs/REQ001.txt":    "",
		"reqs/REQ.md":        "",
	}
	for in, want := range cases {
		prefix, id, ok := p.Identify(in)
		got := ""
		if ok {
			got = prefix + ":" + id
		}
		if got != want {
			t.Errorf("Identify(%q) = %q, want %q", in, got, want)
		}
	}
}
