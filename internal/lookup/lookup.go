// Package lookup is the direct-key fast path: instead of scanning the
// whole corpus, a key is routed through the first-character directory
// layout breach dumps are commonly sharded into, and only the one
// resolved shard is read.
package lookup

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/aazar/breachscan/internal/decode"
)

// ErrNoShard means routing completed but no shard file exists at the
// resolved path under any supported extension.
var ErrNoShard = errors.New("no shard file for key")

// extensions, in probe priority order.
var extensions = []string{"", ".gz", ".zst"}

// Locate resolves the shard file path for key under root. The
// lowercased key's first three characters route one directory level
// each; a non-alphanumeric character routes to the "symbols" leaf and
// stops. After the first two characters a file (not directory) at the
// accumulated path short-circuits routing; otherwise the extension
// probe after the third character picks the leaf.
func Locate(root, key string) (string, error) {
	path := root
	chars := []rune(strings.ToLower(key))
	n := 3
	if len(chars) < n {
		n = len(chars)
	}

	for i := 0; i < n; i++ {
		c := chars[i]
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			return probe(filepath.Join(path, "symbols"))
		}
		path = filepath.Join(path, string(c))
		if i < 2 {
			if p, ok := probeFile(path); ok {
				return p, nil
			}
		}
	}
	return probe(path)
}

// probeFile checks path under each extension and returns the first
// that exists as a regular file.
func probeFile(path string) (string, bool) {
	for _, ext := range extensions {
		p := path + ext
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// probe is probeFile at the end of routing, where a missing shard is
// terminal for the query.
func probe(path string) (string, error) {
	if p, ok := probeFile(path); ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoShard, path)
}

// Find resolves the shard for key, decodes it fully, and returns every
// line whose case-insensitive form starts with the lowercased key.
func Find(root, key string) ([]string, error) {
	path, err := Locate(root, key)
	if err != nil {
		return nil, err
	}

	data, err := decode.ReadAll(path)
	if err != nil {
		return nil, err
	}

	prefix := []byte(strings.ToLower(key))
	var out []string
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line = data[:i]
			data = data[i+1:]
		} else {
			line = data
			data = nil
		}
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if bytes.HasPrefix(bytes.ToLower(line), prefix) {
			out = append(out, string(line))
		}
	}
	return out, nil
}
