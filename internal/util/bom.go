package util

import (
	"io"
	"strings"
)

// StripBOM removes a leading UTF-8 byte-order mark. Exported CSV files
// from Windows tooling routinely carry one.
func StripBOM(r io.Reader) io.Reader {
	head := make([]byte, 3)
	n, _ := io.ReadFull(r, head)
	if n == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(head[:n])), r)
}
