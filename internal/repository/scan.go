package repository

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true,
	"build": true, ".venv": true, "__pycache__": true, "target": true,
}

var markerKeywords = []string{"TODO", "FIXME", "HACK", "BUG"}

var manifestNames = map[string]bool{
	"go.mod": true, "package.json": true, "requirements.txt": true,
	"pyproject.toml": true, "Cargo.toml": true, "pom.xml": true,
}

// ScanResult is the read-only walk's findings: follow-up task candidates
// and heuristic repository issues.
type ScanResult struct {
	Tasks  []string
	Issues []string
}

// Scan walks an alias's working directory collecting TODO/FIXME/HACK/BUG
// comments (as file:line:text candidates for follow-up tasks) plus
// heuristic issues such as a missing README or a missing dependency
// manifest despite source files being present. Hidden directories and
// common vendor/build directories are skipped.
func (r *Registry) Scan(alias string) (ScanResult, error) {
	b, err := r.Get(alias)
	if err != nil {
		return ScanResult{}, err
	}

	var result ScanResult
	hasReadme := false
	hasManifest := false
	hasSource := false

	walkErr := filepath.Walk(b.WorkingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(b.WorkingDir, path)
		if relErr != nil {
			rel = path
		}

		if info.IsDir() {
			name := info.Name()
			if rel != "." && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}

		name := info.Name()
		if strings.EqualFold(name, "README.md") || strings.EqualFold(name, "README") {
			hasReadme = true
		}
		if manifestNames[name] {
			hasManifest = true
		}
		if isSourceFile(name) {
			hasSource = true
			findMarkers(path, rel, &result.Tasks)
		}
		return nil
	})
	if walkErr != nil {
		return ScanResult{}, fmt.Errorf("repository: scan %s: %w", alias, walkErr)
	}

	if !hasReadme {
		result.Issues = append(result.Issues, "missing README")
	}
	if hasSource && !hasManifest {
		result.Issues = append(result.Issues, "source files present but no dependency manifest found")
	}

	return result, nil
}

func isSourceFile(name string) bool {
	ext := filepath.Ext(name)
	switch ext {
	case ".go", ".py", ".js", ".ts", ".java", ".rb", ".rs", ".c", ".cpp", ".h":
		return true
	}
	return false
}

func findMarkers(path, rel string, out *[]string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		for _, kw := range markerKeywords {
			if idx := strings.Index(line, kw); idx >= 0 {
				text := strings.TrimSpace(line)
				*out = append(*out, fmt.Sprintf("%s:%d:%s", rel, lineNo, text))
				break
			}
		}
	}
}

// TreeNode is one entry in the nested directory listing the dashboard
// renders.
type TreeNode struct {
	Name     string     `json:"name"`
	IsDir    bool       `json:"is_dir"`
	Children []TreeNode `json:"children,omitempty"`
}

// Tree returns a nested listing of alias's working directory, bounded by
// maxDepth, skipping hidden and vendor/build directories.
func (r *Registry) Tree(alias string, maxDepth int) (TreeNode, error) {
	b, err := r.Get(alias)
	if err != nil {
		return TreeNode{}, err
	}
	return buildTree(b.WorkingDir, filepath.Base(b.WorkingDir), maxDepth), nil
}

func buildTree(path, name string, depthRemaining int) TreeNode {
	node := TreeNode{Name: name, IsDir: true}
	if depthRemaining <= 0 {
		return node
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return node
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || skipDirs[e.Name()] {
			continue
		}
		if e.IsDir() {
			node.Children = append(node.Children, buildTree(filepath.Join(path, e.Name()), e.Name(), depthRemaining-1))
		} else {
			node.Children = append(node.Children, TreeNode{Name: e.Name()})
		}
	}
	return node
}
