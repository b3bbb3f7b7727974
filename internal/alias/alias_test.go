package alias

import (
	"os"
	"testing"

	"github.com/memorix-dev/memorix-core/internal/types"
)

func TestDetectHomeDirIsInvalid(t *testing.T) {
	id, err := Detect("/root")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if id.ID != types.InvalidProjectID {
		t.Errorf("expected invalid sentinel, got %q", id.ID)
	}
}

func TestDetectMarkerFileYieldsLocalID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/go.mod", "module example.com/foo\n")
	id, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if id.ID == types.InvalidProjectID {
		t.Fatal("expected a local id, got invalid sentinel")
	}
	if id.ID[:6] != "local/" {
		t.Errorf("expected local/* id, got %q", id.ID)
	}
}

func TestNormalizeRemoteOwnerRepo(t *testing.T) {
	cases := map[string]string{
		"git@github.com:acme/app.git":    "acme/app",
		"https://github.com/acme/app.git": "acme/app",
		"https://github.com/acme/app":     "acme/app",
	}
	for remote, want := range cases {
		got, ok := normalizeRemote(remote)
		if !ok {
			t.Errorf("normalizeRemote(%q) failed to parse", remote)
			continue
		}
		if got != want {
			t.Errorf("normalizeRemote(%q) = %q, want %q", remote, got, want)
		}
	}
}

func TestRegisterAndResolveAliases(t *testing.T) {
	r := NewRegistry()
	r.Register(types.ProjectIdentity{ID: "placeholder/app", RootPath: "/work/app"})
	r.Register(types.ProjectIdentity{ID: "local/app", RootPath: "/work/app"})
	r.Register(types.ProjectIdentity{ID: "acme/app", RootPath: "/work/app", GitRemote: "git@github.com:acme/app.git"})

	group := r.GroupFor("placeholder/app")
	if group == nil {
		t.Fatal("expected a group")
	}
	if group.Canonical != "acme/app" {
		t.Errorf("expected git-remote form to win canonicalization, got %q", group.Canonical)
	}

	resolved := r.ResolveAliases("acme/app")
	want := map[string]bool{"placeholder/app": true, "local/app": true, "acme/app": true}
	if len(resolved) != len(want) {
		t.Fatalf("expected %d aliases, got %v", len(want), resolved)
	}
	for _, id := range resolved {
		if !want[id] {
			t.Errorf("unexpected alias %q", id)
		}
	}
}

func TestResolveAliasesUnknownIDReturnsSingleton(t *testing.T) {
	r := NewRegistry()
	got := r.ResolveAliases("nobody/knows")
	if len(got) != 1 || got[0] != "nobody/knows" {
		t.Errorf("expected singleton, got %v", got)
	}
}

func TestAutoMergeByBasename(t *testing.T) {
	r := NewRegistry()
	r.Register(types.ProjectIdentity{ID: "placeholder/foo"})
	r.Register(types.ProjectIdentity{ID: "local/foo"})

	r.AutoMergeByBasename(nil)

	group := r.GroupFor("placeholder/foo")
	if group == nil {
		t.Fatal("expected a group after auto-merge")
	}
	if !group.Aliases["local/foo"] {
		t.Errorf("expected local/foo merged into the same group, got %+v", group.Aliases)
	}
	if group.Canonical != "local/foo" {
		t.Errorf("expected local/* to win over placeholder/*, got %q", group.Canonical)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
