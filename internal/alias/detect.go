// Package alias implements project identity detection and the alias
// registry (spec §4.C): turning a working directory into a canonical
// project id, and tracking which ids refer to the same physical project.
package alias

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/memorix-dev/memorix-core/internal/types"
)

// markerFiles identify a directory as a local project when no git remote
// is available (spec §4.C step 2).
var markerFiles = []string{"package.json", "Cargo.toml", "go.mod", "pyproject.toml"}

// gitRemoteNormalizer strips scheme, host, and the leading path segments
// from a remote URL, leaving "owner/repo".
var gitRemoteNormalizer = regexp.MustCompile(`^(?:[a-zA-Z][\w+.-]*://)?(?:[^@]+@)?[^/:]+[/:](.+?)(?:\.git)?/?$`)

// Detect resolves a working directory to a ProjectIdentity following the
// priority order in spec §4.C: git-remote form, then local/*, then the
// __invalid__ sentinel for home/system directories, then placeholder/*.
func Detect(dir string) (types.ProjectIdentity, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return types.ProjectIdentity{}, err
	}

	if gitRoot, ok := findGitRoot(abs); ok {
		name := filepath.Base(gitRoot)
		if remote, ok := gitRemoteURL(gitRoot); ok {
			if id, ok := normalizeRemote(remote); ok {
				return types.ProjectIdentity{ID: id, Name: name, RootPath: gitRoot, GitRemote: remote}, nil
			}
		}
		// A git repo with no resolvable remote still counts as a local
		// project rooted at the repo root.
		return types.ProjectIdentity{ID: "local/" + name, Name: name, RootPath: gitRoot}, nil
	}

	if hasMarkerFile(abs) {
		name := filepath.Base(abs)
		return types.ProjectIdentity{ID: "local/" + name, Name: name, RootPath: abs}, nil
	}

	if looksLikeHomeOrSystemDir(abs) {
		return types.ProjectIdentity{ID: types.InvalidProjectID, Name: filepath.Base(abs), RootPath: abs}, nil
	}

	name := filepath.Base(abs)
	return types.ProjectIdentity{ID: "placeholder/" + name, Name: name, RootPath: abs}, nil
}

// Priority returns the canonicalization rank of a detected id (spec §4.C).
func Priority(id string) types.ProjectPriority {
	switch {
	case strings.HasPrefix(id, "local/"), strings.HasPrefix(id, "placeholder/"):
		if strings.HasPrefix(id, "local/") {
			return types.PriorityLocal
		}
		return types.PriorityPlaceholder
	case id == types.InvalidProjectID:
		return types.PriorityPlaceholder
	default:
		return types.PriorityGitRemote
	}
}

func findGitRoot(dir string) (string, bool) {
	cur := dir
	for {
		if info, err := os.Stat(filepath.Join(cur, ".git")); err == nil && info != nil {
			return cur, true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", false
		}
		cur = parent
	}
}

func gitRemoteURL(gitRoot string) (string, bool) {
	cmd := exec.Command("git", "-c", "safe.directory=*", "-C", gitRoot, "config", "--get", "remote.origin.url")
	out, err := cmd.Output()
	if err == nil {
		url := strings.TrimSpace(string(out))
		if url != "" {
			return url, true
		}
	}
	return parseGitConfigRemote(filepath.Join(gitRoot, ".git", "config"))
}

// parseGitConfigRemote falls back to reading .git/config directly when the
// git binary's output is unusable (permission-denied safe.directory cases).
func parseGitConfigRemote(configPath string) (string, bool) {
	f, err := os.Open(configPath) // #nosec G304 - configPath is derived from a detected git root
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	inOriginSection := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[remote \"origin\"]") {
			inOriginSection = true
			continue
		}
		if strings.HasPrefix(line, "[") {
			inOriginSection = false
			continue
		}
		if inOriginSection && strings.HasPrefix(line, "url") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1]), true
			}
		}
	}
	return "", false
}

func normalizeRemote(remote string) (string, bool) {
	m := gitRemoteNormalizer.FindStringSubmatch(remote)
	if m == nil {
		return "", false
	}
	path := strings.Trim(m[1], "/")
	path = strings.TrimSuffix(path, ".git")
	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		return "", false
	}
	owner := segments[len(segments)-2]
	repo := segments[len(segments)-1]
	if owner == "" || repo == "" {
		return "", false
	}
	return owner + "/" + repo, true
}

func hasMarkerFile(dir string) bool {
	for _, marker := range markerFiles {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

func looksLikeHomeOrSystemDir(dir string) bool {
	home, err := os.UserHomeDir()
	if err == nil && (dir == home || filepath.Clean(dir) == filepath.Clean(home)) {
		return true
	}
	switch filepath.Clean(dir) {
	case "/", "/root", "/home", "/usr", "/etc", "/var", "/tmp":
		return true
	}
	return false
}
