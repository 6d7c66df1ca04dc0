package oracle

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/graph"
)

// Table maps (online, offline) pairs to the probability that an optimal
// matching of a realization pairs an arrival of the online vertex with the
// offline vertex. An offline vertex is matched at most once per realization,
// so every column sums to at most 1.
type Table struct {
	online, offline int
	p               [][]float64
}

// NewTable returns an all-zero table.
func NewTable(online, offline int) *Table {
	p := make([][]float64, online)
	for v := range p {
		p[v] = make([]float64, offline)
	}
	return &Table{online: online, offline: offline, p: p}
}

func (t *Table) Online() int  { return t.online }
func (t *Table) Offline() int { return t.offline }

// Probability returns the entry for online vertex v and offline vertex u.
func (t *Table) Probability(v, u int) float64 { return t.p[v][u] }

// Row returns a copy of the dense offline row of online vertex v.
func (t *Table) Row(v int) []float64 { return append([]float64(nil), t.p[v]...) }

// ExpectedMatches is the expected number of arrivals of v that an optimal
// matching serves in one realization.
func (t *Table) ExpectedMatches(v int) float64 {
	total := 0.0
	for _, p := range t.p[v] {
		total += p
	}
	return total
}

// Write emits one "i, j, p" line per nonzero entry, ordered by i then j.
func (t *Table) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for v, row := range t.p {
		for u, p := range row {
			if p == 0 {
				continue
			}
			if _, err := fmt.Fprintf(bw, "%d, %d, %s\n", v, u, strconv.FormatFloat(p, 'g', -1, 64)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteFile persists the table in the cache format.
func (t *Table) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := t.Write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing probability cache: %w", err)
	}
	return nil
}

// Read parses the cache format for a graph of the given sizes. Pairs absent
// from the input are zero.
func Read(r io.Reader, online, offline int) (*Table, error) {
	t := NewTable(online, offline)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: want 3 comma-separated fields, got %d", lineNo, len(fields))
		}
		v, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: online vertex: %w", lineNo, err)
		}
		u, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: offline vertex: %w", lineNo, err)
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: probability: %w", lineNo, err)
		}
		if v < 0 || v >= online || u < 0 || u >= offline {
			return nil, fmt.Errorf("line %d: pair (%d, %d) out of range for %d online, %d offline", lineNo, v, u, online, offline)
		}
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("line %d: probability %v not in [0, 1]", lineNo, p)
		}
		t.p[v][u] = p
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for u := 0; u < offline; u++ {
		total := 0.0
		for v := range t.p {
			total += t.p[v][u]
		}
		if total > 1+1e-9 {
			return nil, fmt.Errorf("offline vertex %d: probabilities sum to %v", u, total)
		}
	}
	return t, nil
}

// ReadFile loads a cache file written by WriteFile.
func ReadFile(path string, online, offline int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Read(f, online, offline)
	if err != nil {
		return nil, fmt.Errorf("probability cache %s: %w", path, err)
	}
	return t, nil
}

// LoadOrBuild returns the table cached at path if it exists. Otherwise it
// builds the table with b, writes it to path and returns it. The boolean
// reports a cache hit.
func LoadOrBuild(ctx context.Context, path string, g *graph.Graph, b Builder, rng *sim.PartitionedRNG) (*Table, bool, error) {
	t, err := ReadFile(path, g.Online(), g.Offline())
	switch {
	case err == nil:
		logrus.Infof("oracle: loaded cached probabilities from %s", path)
		return t, true, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, false, fmt.Errorf("%w: %v", sim.ErrInvalidConfig, err)
	}

	t, err = b.Build(ctx, g, rng)
	if err != nil {
		return nil, false, err
	}
	if err := t.WriteFile(path); err != nil {
		return nil, false, err
	}
	logrus.Infof("oracle: wrote probabilities to %s", path)
	return t, false, nil
}
