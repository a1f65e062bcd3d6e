// Package vehicles reads the list of registrations to export.
package vehicles

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dgnsrekt/fleet_routes/internal/portal"
)

// LoadList returns the registrations in the file at path, one per line, in
// file order. Lines starting with '#' are comments; blank lines are dropped.
func LoadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, portal.NewError(portal.CodeFileAccess, fmt.Sprintf("open vehicle list %s", path), err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, portal.NewError(portal.CodeFileAccess, fmt.Sprintf("read vehicle list %s", path), err)
	}
	return out, nil
}
