package facade

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// isRemote reports whether a source names a remote attribute rather than
// a literal default value. Remote names are slash separated.
func isRemote(source string) bool {
	return strings.Contains(source, "/")
}

// parseLiteral decodes a literal default value such as "1.5", "[1, 2]",
// "true" or "'text'".
func parseLiteral(source string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(source), &v); err != nil {
		return nil, fmt.Errorf("parsing literal %q: %w", source, err)
	}
	return v, nil
}
