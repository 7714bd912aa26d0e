package managers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"case-reconciler/feature/cases/sources"
)

// notFoundMarker records a negative lookup in the durable memo so that an
// Ensembl id with no HGNC mapping is not re-queried on every run.
const notFoundMarker = "NOT_FOUND"

// GeneManager memoizes ensembl-id -> HGNC-id resolution. The memo is loaded
// from and persisted to a durable TSV file between runs to bound external
// call volume.
type GeneManager struct {
	source sources.GeneNameSource
	path   string

	memo  syncMap[string, string]
	group singleflight.Group
}

// NewGeneManager creates a manager backed by the given source and memo file.
// A missing memo file is an empty memo, not an error. A nil source restricts
// resolution to the memo.
func NewGeneManager(source sources.GeneNameSource, path string) (*GeneManager, error) {
	m := &GeneManager{source: source, path: path, memo: newSyncMap[string, string]()}
	if path != "" {
		if err := m.loadMemo(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// HGNCID resolves an Ensembl gene id. Returns sources.ErrNotFound for ids
// with no HGNC mapping; that outcome is memoized like a successful one.
// Concurrent lookups of one id collapse to a single external call.
func (m *GeneManager) HGNCID(ctx context.Context, ensemblID string) (string, error) {
	if hgnc, ok := m.memo.get(ensemblID); ok {
		return unmemo(ensemblID, hgnc)
	}

	result, err, _ := m.group.Do(ensemblID, func() (any, error) {
		if hgnc, ok := m.memo.get(ensemblID); ok {
			return hgnc, nil
		}
		if m.source == nil {
			return notFoundMarker, nil
		}
		hgnc, err := m.source.HGNCID(ctx, ensemblID)
		if errors.Is(err, sources.ErrNotFound) {
			m.memo.put(ensemblID, notFoundMarker)
			return notFoundMarker, nil
		}
		if err != nil {
			// transient failure: do not memoize, degrade this lookup only
			return nil, fmt.Errorf("resolve gene %s: %w", ensemblID, err)
		}
		m.memo.put(ensemblID, hgnc)
		return hgnc, nil
	})
	if err != nil {
		return "", err
	}
	return unmemo(ensemblID, result.(string))
}

// Record stores a known mapping directly, e.g. one reported by the
// annotation step alongside a transcript.
func (m *GeneManager) Record(ensemblID, hgncID string) {
	m.memo.putIfAbsent(ensemblID, hgncID)
}

// Save writes the memo back to the durable file, sorted for stable diffs.
func (m *GeneManager) Save() error {
	if m.path == "" {
		return nil
	}
	snapshot := m.memo.snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s\t%s\n", k, snapshot[k])
	}
	if err := os.WriteFile(m.path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("save gene memo: %w", err)
	}
	return nil
}

func (m *GeneManager) loadMemo() error {
	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load gene memo: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(strings.TrimRight(scanner.Text(), "\n"), "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		m.memo.put(fields[0], fields[1])
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("load gene memo: %w", err)
	}
	return nil
}

func unmemo(ensemblID, value string) (string, error) {
	if value == notFoundMarker {
		return "", fmt.Errorf("gene %s: %w", ensemblID, sources.ErrNotFound)
	}
	return value, nil
}
