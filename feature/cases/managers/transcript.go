package managers

import (
	"sync"

	"case-reconciler/feature/cases/sources"
)

// preferredAssembly wins when the same transcript name is annotated under
// two genome builds.
const preferredAssembly = "GRCh38"

// TranscriptManager resolves conflicts between duplicate transcript
// annotations across cases: one canonical annotation per transcript name,
// preferring the GRCh38 copy.
type TranscriptManager struct {
	mu   sync.Mutex
	byID map[string]sources.TranscriptAnnotation
}

// NewTranscriptManager creates an empty manager.
func NewTranscriptManager() *TranscriptManager {
	return &TranscriptManager{byID: make(map[string]sources.TranscriptAnnotation)}
}

// Add registers an annotation. A later GRCh38 annotation replaces an earlier
// copy under another build; otherwise first writer wins.
func (m *TranscriptManager) Add(t sources.TranscriptAnnotation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.Name]; !ok || t.Assembly == preferredAssembly {
		m.byID[t.Name] = t
	}
}

// Fetch returns the canonical annotation for a transcript name.
func (m *TranscriptManager) Fetch(name string) (sources.TranscriptAnnotation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[name]
	return t, ok
}
