// Package validator implements the generate -> validate pipeline stage:
// extracting named code blocks out of a model's free-text response, a
// fast syntax check over the extracted files, and a sandboxed test run in
// a disposable workspace.
package validator

import (
	"strings"
)

const defaultFilename = "main"

var fileMarkerPrefixes = []string{"# File:", "// File:", "# file:", "// file:"}

// Files is the result of ExtractFiles: virtual filename -> source, plus
// the order filenames were first encountered in, so callers that
// materialize files to disk or list them in a commit message see a
// deterministic order.
type Files struct {
	Contents map[string]string
	Order    []string
}

// ExtractFiles parses a generated text blob into an ordered map of
// virtual filename -> source. Rules: a line matching a file-marker prefix
// starts a new named file; fenced code blocks (```lang / ```) delimit the
// payload, with a leading language-tag line stripped; text with no
// explicit filename is emitted as one default file; multiple blocks
// addressed to the same filename are concatenated in the order
// encountered; a whitespace-only segment is dropped. Never panics on
// arbitrary input.
func ExtractFiles(blob string) Files {
	files := map[string]string{}
	order := []string{}

	currentFile := ""
	inFence := false
	fenceJustOpened := false
	var buf strings.Builder

	flush := func() {
		name := currentFile
		if name == "" {
			name = defaultFilename
		}
		content := buf.String()
		if strings.TrimSpace(content) == "" {
			buf.Reset()
			return
		}
		if _, ok := files[name]; !ok {
			order = append(order, name)
		}
		if existing, ok := files[name]; ok {
			files[name] = existing + content
		} else {
			files[name] = content
		}
		buf.Reset()
	}

	lines := strings.Split(blob, "\n")
	for _, line := range lines {
		if name, ok := matchFileMarker(line); ok {
			flush()
			currentFile = name
			continue
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if !inFence {
				inFence = true
				fenceJustOpened = true
			} else {
				inFence = false
				flush()
			}
			continue
		}

		if inFence && fenceJustOpened {
			fenceJustOpened = false
			if isLanguageTag(trimmed) {
				continue
			}
		}

		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush()

	return Files{Contents: files, Order: order}
}

func matchFileMarker(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range fileMarkerPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
			if name != "" {
				return name, true
			}
		}
	}
	return "", false
}

// isLanguageTag reports whether a fence's first line is a bare language
// tag (e.g. "go", "python") rather than source.
func isLanguageTag(line string) bool {
	if line == "" {
		return false
	}
	if strings.ContainsAny(line, " \t{}();=") {
		return false
	}
	return len(line) < 20
}
