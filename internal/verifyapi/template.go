package verifyapi

import (
	"encoding/json"
	"sort"
	"strings"
)

// placeholders are the names a custom template may reference. Names with no
// value in a request expand to the empty string.
var placeholders = []string{"payload", "publicKey", "signature", "timestamp"}

// templateValues holds the substitutions for one request, keyed without
// braces.
type templateValues map[string]string

func (v templateValues) keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// render builds the request body. An empty template yields a JSON object of
// every value except the timestamp.
func (v templateValues) render(template string) ([]byte, error) {
	if strings.TrimSpace(template) == "" {
		obj := make(map[string]string, len(v))
		for k, val := range v {
			if k != "timestamp" {
				obj[k] = val
			}
		}
		return json.Marshal(obj)
	}

	pairs := make([]string, 0, 2*len(placeholders))
	for _, k := range placeholders {
		pairs = append(pairs, "{{"+k+"}}", jsonEscape(v[k]))
	}
	return []byte(strings.NewReplacer(pairs...).Replace(template)), nil
}

// jsonEscape returns s escaped for use inside a JSON string literal.
func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}
