package isocarto

import (
	"bufio"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrEmptyChunkList = errors.New("no valid chunks specified in the chunk list, names look like c.<x>.<z>.dat")

// ParseChunkList reads chunk file paths, one per line, and returns the set of
// projected positions they name. Chunk files are named c.<x>.<z>.dat with
// base36 coordinates.
func ParseChunkList(r io.Reader) (map[ProjectedPos]struct{}, error) {
	set := make(map[ProjectedPos]struct{})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := filepath.Base(strings.TrimRight(scanner.Text(), "\r\n"))
		if !strings.HasPrefix(name, "c.") || !strings.HasSuffix(name, ".dat") {
			continue
		}
		parts := strings.Split(name, ".")
		if len(parts) != 4 {
			continue
		}
		x, err := strconv.ParseInt(parts[1], 36, 64)
		if err != nil {
			continue
		}
		y, err := strconv.ParseInt(parts[2], 36, 64)
		if err != nil {
			continue
		}
		set[Project(ChunkPos{X: int(x), Y: int(y)})] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(set) == 0 {
		return nil, ErrEmptyChunkList
	}
	return set, nil
}
