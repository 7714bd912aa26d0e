package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DirCaseSource serves case records from a directory of JSON files named
// <requestID>-<version>.json. It backs local and test runs where the
// reporting API is unreachable.
type DirCaseSource struct {
	dir string
}

// NewDirCaseSource creates a case source over the given directory.
func NewDirCaseSource(dir string) *DirCaseSource {
	return &DirCaseSource{dir: dir}
}

// ListCases returns a ref for every parseable JSON filename in the
// directory, sorted for deterministic run order. The sampleType filter does
// not apply to local files.
func (s *DirCaseSource) ListCases(ctx context.Context, sampleType string) ([]CaseRef, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list case files: %w", err)
	}

	var refs []CaseRef
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ref, ok := parseCaseFilename(entry.Name())
		if !ok {
			continue
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].RequestID != refs[j].RequestID {
			return refs[i].RequestID < refs[j].RequestID
		}
		return refs[i].Version < refs[j].Version
	})
	return refs, nil
}

// FetchCase reads one case file.
func (s *DirCaseSource) FetchCase(ctx context.Context, requestID string, version int) (*SourceRecord, error) {
	name := fmt.Sprintf("%s-%d.json", requestID, version)
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("case %s v%d: %w", requestID, version, ErrNotFound)
		}
		return nil, fmt.Errorf("read case file %s: %w", name, err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("case file %s: invalid JSON", name)
	}
	return &SourceRecord{RequestID: requestID, Version: version, Raw: raw}, nil
}

func parseCaseFilename(name string) (CaseRef, bool) {
	base := strings.TrimSuffix(name, ".json")
	idx := strings.LastIndex(base, "-")
	if idx <= 0 || idx == len(base)-1 {
		return CaseRef{}, false
	}
	version, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return CaseRef{}, false
	}
	return CaseRef{RequestID: base[:idx], Version: version}, true
}
