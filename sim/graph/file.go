package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CacheFileName is the sibling file, next to a graph file, that stores its
// optimal-matching probability table.
const CacheFileName = "edge_with_prob.txt"

// Load reads a graph file. See Parse for the format.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening graph file: %w", err)
	}
	defer f.Close()
	g, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("graph file %s: %w", path, err)
	}
	return g, nil
}

// Parse reads the edge-list format:
//
//	line 0: header, ignored
//	line 1: at least three tokens; the 2nd and 3rd are integers m and n (m unused)
//	rest:   "x y ..." with 1-indexed offline vertex x and online vertex y
//
// The resulting graph is n x n. Blank lines are skipped.
func Parse(r io.Reader) (*Graph, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	n := -1
	edges := make([][2]int, 0)
	for sc.Scan() {
		line := sc.Text()
		lineNo++
		switch {
		case lineNo == 1:
			continue
		case lineNo == 2:
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, fmt.Errorf("line 2: want at least 3 fields, got %d", len(fields))
			}
			if _, err := strconv.Atoi(fields[1]); err != nil {
				return nil, fmt.Errorf("line 2: m: %w", err)
			}
			size, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("line 2: n: %w", err)
			}
			if size < 0 {
				return nil, fmt.Errorf("line 2: negative n %d", size)
			}
			n = size
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: want at least 2 fields, got %d", lineNo, len(fields))
		}
		x, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		y, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if x < 1 || x > n || y < 1 || y > n {
			return nil, fmt.Errorf("line %d: edge (%d, %d) outside 1..%d", lineNo, x, y, n)
		}
		edges = append(edges, [2]int{x - 1, y - 1})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("missing size line")
	}
	return New(n, n, edges)
}

// CachePath returns the probability cache path for a graph file: the graph
// file's name replaced by CacheFileName.
func CachePath(graphPath string) string {
	return filepath.Join(filepath.Dir(graphPath), CacheFileName)
}
