package env

import (
	"bufio"
	"os"
	"strings"

	"github.com/google/shlex"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
)

// readLibraryList reads Config.LibraryListPath, one library path per
// line, tokenizing each line with shell-word rules via google/shlex so
// a quoted, space-containing path survives intact.
func readLibraryList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, diag.Wrap(diag.ConfigInvalid, err, "reading library list %s", path)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens, err := shlex.Split(line)
		if err != nil || len(tokens) == 0 {
			continue
		}
		entries = append(entries, tokens[0])
	}
	return entries, scanner.Err()
}
