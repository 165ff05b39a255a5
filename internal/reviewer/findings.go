package reviewer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/devloopai/agentcore/internal/task"
)

// sourceFile is one file a completed task wrote, fetched back from its
// repository alias for re-examination.
type sourceFile struct {
	name    string
	content string
}

// analyze runs every category appropriate for kind over t, fetching t's
// committed source files from its repository alias (best-effort: a
// missing repo or unreadable file just yields an empty analysis, it never
// fails the cycle). Returns a map with every category populated,
// including empty ones, so callers can range over a fixed key set.
func (r *Reviewer) analyze(ctx context.Context, t *task.Task, kind string) map[Category][]string {
	findings := map[Category][]string{
		CategorySyntaxIssues:           nil,
		CategoryLogicErrors:            nil,
		CategoryIntegrationProblems:    nil,
		CategoryConsistencyIssues:      nil,
		CategoryImprovementSuggestions: nil,
	}
	if kind == KindDeep {
		findings[CategoryPerformance] = nil
		findings[CategorySecurity] = nil
		findings[CategoryDocumentation] = nil
		findings[CategoryMaintainability] = nil
	}

	files := r.fetchSources(ctx, t)

	for _, f := range files {
		findings[CategorySyntaxIssues] = append(findings[CategorySyntaxIssues], syntaxIssues(f)...)
		findings[CategoryIntegrationProblems] = append(findings[CategoryIntegrationProblems], integrationProblems(f)...)
		findings[CategoryConsistencyIssues] = append(findings[CategoryConsistencyIssues], consistencyIssues(f)...)
		findings[CategoryImprovementSuggestions] = append(findings[CategoryImprovementSuggestions], improvementSuggestions(f)...)

		if kind == KindDeep {
			findings[CategoryPerformance] = append(findings[CategoryPerformance], performanceIssues(f)...)
			findings[CategorySecurity] = append(findings[CategorySecurity], securityIssues(f)...)
			findings[CategoryDocumentation] = append(findings[CategoryDocumentation], documentationIssues(f)...)
			findings[CategoryMaintainability] = append(findings[CategoryMaintainability], maintainabilityIssues(f)...)
		}
	}

	if r.cfg.ConsultModel && r.model != nil {
		findings[CategoryLogicErrors] = r.consultLogicErrors(ctx, t, files)
	}

	return findings
}

// fetchSources resolves every file the task's commits touched, reading
// current content back from the repository. Best-effort: any error for a
// single file is skipped rather than aborting the whole review.
func (r *Reviewer) fetchSources(ctx context.Context, t *task.Task) []sourceFile {
	if r.repo == nil {
		return nil
	}
	commits, err := r.store.CommitsForTask(ctx, t.ID.String())
	if err != nil || len(commits) == 0 {
		return nil
	}

	alias := t.TargetRepo
	if alias == "" {
		alias = "default"
	}

	seen := map[string]bool{}
	var out []sourceFile
	for _, c := range commits {
		for _, name := range c.FilesChanged {
			if seen[name] {
				continue
			}
			seen[name] = true
			content, err := r.repo.ReadFile(alias, name)
			if err != nil {
				continue
			}
			out = append(out, sourceFile{name: name, content: content})
		}
	}
	return out
}

var (
	bareCatchAllRe   = regexp.MustCompile(`(?m)^\s*catch\s*\(\s*\)|(?m)except\s*:\s*$|(?m)\brecover\(\)\s*\{\s*\}`)
	printDebugRe     = regexp.MustCompile(`(?m)\b(print|console\.log|fmt\.Println)\(`)
	unusedPrefixRe   = regexp.MustCompile(`(?m)\bvar\s+_unused\w*\b`)
	evalRe           = regexp.MustCompile(`\beval\(|\bexec\(|new Function\(`)
	shellInjectionRe = regexp.MustCompile(`\b(os/exec\.Command|subprocess\.|sh\s+-c|system\()`)
	hardcodedNetRe   = regexp.MustCompile(`\b(\d{1,3}\.){3}\d{1,3}\b|https?://[^\s"']+`)
	todoRe           = regexp.MustCompile(`(?i)\bTODO\b`)
)

// syntaxIssues flags bare catch-all error handlers, print-instead-of-log
// calls, and suspicious unused-prefixed names.
func syntaxIssues(f sourceFile) []string {
	var out []string
	if bareCatchAllRe.MatchString(f.content) {
		out = append(out, fmt.Sprintf("%s: bare catch-all error handler", f.name))
	}
	if printDebugRe.MatchString(f.content) {
		out = append(out, fmt.Sprintf("%s: print-style debug output instead of structured logging", f.name))
	}
	if unusedPrefixRe.MatchString(f.content) {
		out = append(out, fmt.Sprintf("%s: potentially unused prefixed name", f.name))
	}
	return out
}

// integrationProblems does a static import scan looking for imports with
// no corresponding declared dependency manifest entry — approximated here
// as: an import of a third-party-looking path with no go.mod/package.json
// sibling reference. Kept intentionally shallow; a real dependency graph
// check belongs to the build toolchain, not a quality reviewer.
func integrationProblems(f sourceFile) []string {
	var out []string
	for _, line := range strings.Split(f.content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import \"") && strings.Contains(trimmed, ".") && !strings.Contains(trimmed, "\"fmt\"") {
			// A dotted import path (a domain, e.g. github.com/...) on a
			// single-line import is flagged for manual dependency-manifest
			// verification.
			out = append(out, fmt.Sprintf("%s: imports external package %s, verify it is declared in the dependency manifest", f.name, trimmed))
		}
	}
	return out
}

// consistencyIssues flags filenames that don't follow the lower_snake or
// kebab convention the rest of a generated batch uses.
func consistencyIssues(f sourceFile) []string {
	var out []string
	base := f.name
	if strings.ToLower(base) != base {
		out = append(out, fmt.Sprintf("%s: filename is not lowercase, inconsistent with repository convention", f.name))
	}
	if strings.Contains(base, " ") {
		out = append(out, fmt.Sprintf("%s: filename contains spaces", f.name))
	}
	return out
}

// improvementSuggestions flags files over a line-count threshold and files
// with no comments at all (no "//", "#" or triple-quote marker anywhere in
// the file).
func improvementSuggestions(f sourceFile) []string {
	var out []string
	lines := strings.Split(f.content, "\n")
	const lineThreshold = 100
	if len(lines) > lineThreshold {
		out = append(out, fmt.Sprintf("%s: %d lines, consider splitting", f.name, len(lines)))
	}
	if !strings.Contains(f.content, "//") && !strings.Contains(f.content, "\"\"\"") && !strings.Contains(f.content, "#") {
		out = append(out, fmt.Sprintf("%s: no docstrings or comments found", f.name))
	}
	return out
}

// performanceIssues is a deep-only check for obviously quadratic-looking
// nested loops over the same collection — a coarse heuristic, not a real
// complexity analyzer.
func performanceIssues(f sourceFile) []string {
	var out []string
	if strings.Count(f.content, "for ") >= 2 && strings.Contains(f.content, "for ") {
		nestedLoop := regexp.MustCompile(`(?s)for[^\n]*\{[^{}]*for[^\n]*\{`)
		if nestedLoop.MatchString(f.content) {
			out = append(out, fmt.Sprintf("%s: nested loop over what may be the same collection, review for O(n^2) behavior", f.name))
		}
	}
	return out
}

// securityIssues is a deep-only check for dangerous dynamic-eval and
// shell-injection-shaped code.
func securityIssues(f sourceFile) []string {
	var out []string
	if evalRe.MatchString(f.content) {
		out = append(out, fmt.Sprintf("%s: dynamic eval/exec call found", f.name))
	}
	if shellInjectionRe.MatchString(f.content) {
		out = append(out, fmt.Sprintf("%s: shell command construction found, verify inputs are not attacker-controlled", f.name))
	}
	return out
}

// documentationIssues is a deep-only check for exported-looking
// identifiers with no preceding comment.
func documentationIssues(f sourceFile) []string {
	var out []string
	exportedFunc := regexp.MustCompile(`(?m)^func [A-Z]\w*\(`)
	matches := exportedFunc.FindAllStringIndex(f.content, -1)
	for _, m := range matches {
		prefix := f.content[:m[0]]
		lastNewline := strings.LastIndex(strings.TrimRight(prefix, "\n"), "\n")
		precedingLine := strings.TrimSpace(prefix[lastNewline+1:])
		if !strings.HasPrefix(precedingLine, "//") {
			out = append(out, fmt.Sprintf("%s: exported function with no doc comment", f.name))
		}
	}
	return out
}

// maintainabilityIssues is a deep-only check for hard-coded network
// literals (IPs, raw URLs) and TODO density.
func maintainabilityIssues(f sourceFile) []string {
	var out []string
	if hardcodedNetRe.MatchString(f.content) {
		out = append(out, fmt.Sprintf("%s: hard-coded network literal (IP or URL), consider configuration", f.name))
	}
	if n := len(todoRe.FindAllString(f.content, -1)); n >= 3 {
		out = append(out, fmt.Sprintf("%s: high TODO density (%d)", f.name, n))
	}
	return out
}

// consultLogicErrors asks the model adapter whether the generated files
// match the task description, parsing the response defensively: a JSON
// list of strings is preferred, otherwise the raw text is kept as a
// single best-effort finding.
func (r *Reviewer) consultLogicErrors(ctx context.Context, t *task.Task, files []sourceFile) []string {
	if len(files) == 0 {
		return nil
	}

	var blob strings.Builder
	for _, f := range files {
		blob.WriteString("# File: " + f.name + "\n")
		blob.WriteString(f.content)
		blob.WriteString("\n")
	}

	prompt := fmt.Sprintf(
		"Task description: %q\n\nReview the following generated files and list, as a JSON array of short strings, any ways the implementation does not match the description. If it fully matches, return an empty JSON array.\n\n%s",
		t.Description, blob.String(),
	)

	response, _, err := r.model.Generate(ctx, prompt, t.ID.String())
	if err != nil || strings.TrimSpace(response) == "" {
		return nil
	}

	if issues, ok := parseJSONStringList(response); ok {
		return issues
	}

	return []string{strings.TrimSpace(response)}
}
