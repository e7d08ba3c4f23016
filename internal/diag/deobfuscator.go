package diag

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const hiddenSigil = "__hidden#"

// Deobfuscator substitutes "__hidden#<N>_" sigils in captured command
// output with the Nth symbol from a .bcsymbolmap file. The input may
// be a single map file (used for every UUID) or a directory of
// per-UUID map files.
type Deobfuscator struct {
	input       string
	bcsymbolmap string
}

// NewDeobfuscator builds a Deobfuscator over the given --symbol-map
// input (a file or a directory).
func NewDeobfuscator(input string) *Deobfuscator {
	return &Deobfuscator{input: input, bcsymbolmap: input}
}

// SelectUUID chooses which map file subsequent TryDeobfuscate calls
// read from: <dir>/<uuid>.bcsymbolmap when the configured input is a
// directory, or the input file itself otherwise.
func (d *Deobfuscator) SelectUUID(uuid string) {
	info, err := os.Stat(d.input)
	if err == nil && info.IsDir() {
		d.bcsymbolmap = filepath.Join(d.input, uuid+".bcsymbolmap")
	} else {
		d.bcsymbolmap = d.input
	}
}

// TryDeobfuscate repeatedly replaces "__hidden#<N>_" occurrences with
// line N+1 of the active map file (trimmed) until no sigil is left.
// Returns ("", false) if the map can't be read, a sigil has no closing
// "_" or a non-numeric N, an index is out of range, a pass makes no
// further progress, or the message contains no sigil at all.
func (d *Deobfuscator) TryDeobfuscate(msg string) (string, bool) {
	if !strings.Contains(msg, hiddenSigil) {
		return "", false
	}
	lines, err := readLines(d.bcsymbolmap)
	if err != nil {
		return "", false
	}
	for strings.Contains(msg, hiddenSigil) {
		start := strings.Index(msg, hiddenSigil) + len(hiddenSigil)
		end := strings.Index(msg[start:], "_")
		if end == -1 {
			return "", false
		}
		end += start
		number := msg[start:end]
		idx, err := strconv.Atoi(number)
		if err != nil {
			return "", false
		}
		if idx+1 < 0 || idx+1 >= len(lines) {
			return "", false
		}
		sym := strings.TrimSpace(lines[idx+1])
		token := hiddenSigil + number + "_"
		newMsg := strings.Replace(msg, token, sym, 1)
		if newMsg == msg {
			// No progress: avoid looping forever.
			return "", false
		}
		msg = newMsg
	}
	return msg, true
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
