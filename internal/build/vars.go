package build

import (
	"bufio"
	"strings"
)

// ParseVar finds name in a "bitbake -e" dump. Both plain assignments
// (NAME="value") and exported ones (export NAME="value") are recognised;
// the last assignment wins, matching how bitbake prints final values.
func ParseVar(env, name string) (string, bool) {
	var (
		value string
		found bool
	)

	prefix := name + "="
	scanner := bufio.NewScanner(strings.NewReader(env))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimPrefix(scanner.Text(), "export ")
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		raw := strings.TrimPrefix(line, prefix)
		if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
			raw = raw[1 : len(raw)-1]
		}
		value, found = raw, true
	}
	return value, found
}
