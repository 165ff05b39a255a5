package reviewer

import (
	"encoding/json"
	"strings"
)

// parseJSONStringList tries to parse response as a JSON array of strings,
// tolerating surrounding prose by scanning for the first '[' ... last ']'
// span — model output is rarely pure JSON. Returns ok=false if no array
// could be extracted or decoded.
func parseJSONStringList(response string) ([]string, bool) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		return nil, false
	}

	var out []string
	if err := json.Unmarshal([]byte(response[start:end+1]), &out); err != nil {
		return nil, false
	}
	return out, true
}
