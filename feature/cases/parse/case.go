package parse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"case-reconciler/core/hashing"
	"case-reconciler/core/reconcile"
	"case-reconciler/feature/cases/sources"
)

var dbSNPPattern = regexp.MustCompile(`^rs\d+$`)

// tierExcluded is the lowest tier that is never persisted.
const tierExcluded = 3

// Status is the latest workflow status attached to a case.
type Status struct {
	Status    string
	CreatedAt time.Time
	User      string
}

// Participant is the parsed proband pedigree entry.
type Participant struct {
	ParticipantID string
	Sex           string
	Samples       []string
	HPOTerms      []string
}

// Relative is a parsed non-proband pedigree entry.
type Relative struct {
	ParticipantID     string
	RelationToProband string
	AffectedStatus    string
	Sex               string
}

// PanelRef is one panel requested for the case, resolved lazily against the
// panel source during candidate construction.
type PanelRef struct {
	PanelAppID string
	Version    string

	// Definition is attached by the panel manager; nil when the panel
	// could not be fetched, which degrades dependent candidates.
	Definition *sources.PanelDefinition
}

// ReportEventRecord is one report event under a variant.
type ReportEventRecord struct {
	EventID           string
	Tier              *int
	PanelName         string
	PanelVersion      string
	ModeOfInheritance string
	Penetrance        string
	GeneEnsemblID     string
	GeneHGNCSymbol    string
}

// VariantRecord is one variant-of-interest mention. Flagged records come
// from the externally interpreted genome section and are always persisted at
// tier 0; tiered records are persisted only below tier 3.
type VariantRecord struct {
	Chromosome string
	Position   int
	Reference  string
	Alternate  string
	DBSNPID    string
	MinTier    int
	Flagged    bool
	Events     []ReportEventRecord

	// Mention is the 1-based index assigned to eligible records, matching
	// annotations back to this record. Zero for ineligible records.
	Mention int
}

// Eligible reports whether this record may produce persisted entities.
func (v *VariantRecord) Eligible() bool {
	return v.Flagged || v.MinTier < tierExcluded
}

// EffectiveTier is the tier the record is persisted at: flagged mentions are
// forced to tier 0 regardless of report events.
func (v *VariantRecord) EffectiveTier() int {
	if v.Flagged {
		return 0
	}
	return v.MinTier
}

// Case is the parsed, read-only view of one source record.
type Case struct {
	RequestID   string // "<id>-<version>"
	ContentHash string
	Raw         json.RawMessage

	FamilyID string
	CIP      string
	Priority string

	Proband   Participant
	Relatives []Relative
	Panels    []PanelRef
	Status    Status

	AssemblyVersion string
	Variants        []*VariantRecord // tiered first, then flagged, input order

	// Coverage is panelAppID -> HGNC symbol -> sample key -> mean coverage.
	Coverage map[string]map[string]map[string]float64
}

// Mentions returns the variant mentions eligible for annotation, in mention
// order.
func (c *Case) Mentions() []sources.CaseVariant {
	var out []sources.CaseVariant
	for _, v := range c.Variants {
		if v.Mention == 0 {
			continue
		}
		out = append(out, sources.CaseVariant{
			CaseID:     c.RequestID,
			Index:      v.Mention,
			Chromosome: v.Chromosome,
			Position:   v.Position,
			Reference:  v.Reference,
			Alternate:  v.Alternate,
			Assembly:   c.AssemblyVersion,
		})
	}
	return out
}

// ByMention returns the variant record carrying the given mention index.
func (c *Case) ByMention(index int) *VariantRecord {
	for _, v := range c.Variants {
		if v.Mention == index {
			return v
		}
	}
	return nil
}

// wire structs for the nested record layout

type rawRecord struct {
	InterpretationRequestID   json.Number      `json:"interpretation_request_id"`
	Version                   json.Number      `json:"version"`
	FamilyID                  json.Number      `json:"family_id"`
	Proband                   json.Number      `json:"proband"`
	CIP                       string           `json:"cip"`
	CasePriority              string           `json:"case_priority"`
	Status                    []rawStatus      `json:"status"`
	InterpretedGenome         []rawInterpreted `json:"interpreted_genome"`
	InterpretationRequestData struct {
		JSONRequest rawJSONRequest `json:"json_request"`
	} `json:"interpretation_request_data"`
}

type rawStatus struct {
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	User      string `json:"user"`
}

type rawInterpreted struct {
	InterpretedGenomeData struct {
		ReportedVariants []rawVariant `json:"reportedVariants"`
	} `json:"interpreted_genome_data"`
}

type rawJSONRequest struct {
	TieredVariants        []rawVariant                             `json:"TieredVariants"`
	GenomeAssemblyVersion string                                   `json:"genomeAssemblyVersion"`
	Pedigree              rawPedigree                              `json:"pedigree"`
	GenePanelsCoverage    map[string]map[string]map[string]float64 `json:"genePanelsCoverage"`
}

type rawPedigree struct {
	Participants   []rawParticipant `json:"participants"`
	AnalysisPanels []rawPanel       `json:"analysisPanels"`
}

type rawParticipant struct {
	GelID                 json.Number       `json:"gelId"`
	IsProband             bool              `json:"isProband"`
	AffectionStatus       string            `json:"affectionStatus"`
	Sex                   string            `json:"sex"`
	Samples               []string          `json:"samples"`
	HPOTermList           []rawHPOTerm      `json:"hpoTermList"`
	AdditionalInformation map[string]string `json:"additionalInformation"`
}

type rawHPOTerm struct {
	Term         string `json:"term"`
	TermPresence bool   `json:"termPresence"`
}

type rawPanel struct {
	PanelName    string `json:"panelName"`
	PanelVersion string `json:"panelVersion"`
}

type rawVariant struct {
	Chromosome   string           `json:"chromosome"`
	Position     int              `json:"position"`
	Reference    string           `json:"reference"`
	Alternate    string           `json:"alternate"`
	DBSNPID      string           `json:"dbSNPid"`
	ReportEvents []rawReportEvent `json:"reportEvents"`
}

type rawReportEvent struct {
	ReportEventID     string      `json:"reportEventId"`
	Tier              string      `json:"tier"`
	PanelName         string      `json:"panelName"`
	PanelVersion      string      `json:"panelVersion"`
	ModeOfInheritance string      `json:"modeOfInheritance"`
	Penetrance        string      `json:"penetrance"`
	GenomicFeature    *rawFeature `json:"genomicFeature"`
}

type rawFeature struct {
	EnsemblID string `json:"ensemblId"`
	HGNC      string `json:"HGNC"`
}

// ParseCase builds the in-memory Case view of one source record. The
// returned Case is read-only; resolved entities are tracked separately by
// the driver.
func ParseCase(record *sources.SourceRecord) (*Case, error) {
	var raw rawRecord
	if err := json.Unmarshal(record.Raw, &raw); err != nil {
		return nil, &reconcile.ParseError{RequestID: record.RequestID, Field: "", Err: err}
	}

	requestID := fmt.Sprintf("%s-%s", raw.InterpretationRequestID.String(), raw.Version.String())
	if raw.InterpretationRequestID.String() == "" || raw.Version.String() == "" {
		return nil, &reconcile.ParseError{RequestID: record.RequestID, Field: "interpretation_request_id"}
	}
	if raw.FamilyID.String() == "" {
		return nil, &reconcile.ParseError{RequestID: requestID, Field: "family_id"}
	}
	if len(raw.Status) == 0 {
		return nil, &reconcile.ParseError{RequestID: requestID, Field: "status"}
	}

	hash, err := hashing.Sum(record.Raw)
	if err != nil {
		return nil, &reconcile.ParseError{RequestID: requestID, Field: "", Err: err}
	}

	c := &Case{
		RequestID:       requestID,
		ContentHash:     hash,
		Raw:             record.Raw,
		FamilyID:        raw.FamilyID.String(),
		CIP:             raw.CIP,
		Priority:        raw.CasePriority,
		AssemblyVersion: raw.InterpretationRequestData.JSONRequest.GenomeAssemblyVersion,
		Coverage:        raw.InterpretationRequestData.JSONRequest.GenePanelsCoverage,
	}
	if c.AssemblyVersion == "" {
		return nil, &reconcile.ParseError{RequestID: requestID, Field: "genomeAssemblyVersion"}
	}

	// statuses are appended chronologically; keep only the latest
	latest := raw.Status[len(raw.Status)-1]
	c.Status = Status{Status: latest.Status, User: latest.User}
	if latest.CreatedAt != "" {
		created, err := parseStatusTime(latest.CreatedAt)
		if err != nil {
			return nil, &reconcile.ParseError{RequestID: requestID, Field: "status.created_at", Err: err}
		}
		c.Status.CreatedAt = created
	}

	if err := c.parsePedigree(raw); err != nil {
		return nil, err
	}

	for _, p := range raw.InterpretationRequestData.JSONRequest.Pedigree.AnalysisPanels {
		c.Panels = append(c.Panels, PanelRef{PanelAppID: p.PanelName, Version: p.PanelVersion})
	}

	c.parseVariants(raw)
	return c, nil
}

func (c *Case) parsePedigree(raw rawRecord) error {
	probandID := raw.Proband.String()
	found := false
	for _, p := range raw.InterpretationRequestData.JSONRequest.Pedigree.Participants {
		if p.IsProband {
			found = true
			c.Proband = Participant{
				ParticipantID: p.GelID.String(),
				Sex:           p.Sex,
				Samples:       p.Samples,
			}
			for _, term := range p.HPOTermList {
				if term.TermPresence {
					c.Proband.HPOTerms = append(c.Proband.HPOTerms, term.Term)
				}
			}
			continue
		}
		// relatives without a stated relation are not importable
		relation, ok := p.AdditionalInformation["relation_to_proband"]
		if !ok || len(p.AdditionalInformation) == 0 {
			continue
		}
		c.Relatives = append(c.Relatives, Relative{
			ParticipantID:     p.GelID.String(),
			RelationToProband: relation,
			AffectedStatus:    p.AffectionStatus,
			Sex:               p.Sex,
		})
	}
	if !found {
		return &reconcile.ParseError{RequestID: c.RequestID, Field: "pedigree.participants[isProband]"}
	}
	if c.Proband.ParticipantID == "" {
		c.Proband.ParticipantID = probandID
	}
	return nil
}

func (c *Case) parseVariants(raw rawRecord) {
	mention := 0
	for _, v := range raw.InterpretationRequestData.JSONRequest.TieredVariants {
		rec := newVariantRecord(v, false)
		if rec.Eligible() {
			mention++
			rec.Mention = mention
		}
		c.Variants = append(c.Variants, rec)
	}
	for _, ig := range raw.InterpretedGenome {
		for _, v := range ig.InterpretedGenomeData.ReportedVariants {
			rec := newVariantRecord(v, true)
			mention++
			rec.Mention = mention
			c.Variants = append(c.Variants, rec)
		}
	}
}

func newVariantRecord(v rawVariant, flagged bool) *VariantRecord {
	rec := &VariantRecord{
		Chromosome: v.Chromosome,
		Position:   v.Position,
		Reference:  v.Reference,
		Alternate:  v.Alternate,
		Flagged:    flagged,
		MinTier:    tierExcluded,
	}
	if dbSNPPattern.MatchString(v.DBSNPID) {
		rec.DBSNPID = v.DBSNPID
	}
	first := true
	for _, re := range v.ReportEvents {
		rec.Events = append(rec.Events, newReportEventRecord(re))
		if tier, ok := parseTier(re.Tier); ok {
			if first || tier < rec.MinTier {
				rec.MinTier = tier
				first = false
			}
		}
	}
	return rec
}

func newReportEventRecord(re rawReportEvent) ReportEventRecord {
	rec := ReportEventRecord{
		EventID:           re.ReportEventID,
		PanelName:         re.PanelName,
		PanelVersion:      re.PanelVersion,
		ModeOfInheritance: re.ModeOfInheritance,
		Penetrance:        re.Penetrance,
	}
	if tier, ok := parseTier(re.Tier); ok {
		rec.Tier = &tier
	}
	if re.GenomicFeature != nil {
		rec.GeneEnsemblID = re.GenomicFeature.EnsemblID
		rec.GeneHGNCSymbol = re.GenomicFeature.HGNC
	}
	return rec
}

// parseTier reads the trailing digit of tier labels such as "TIER1".
func parseTier(label string) (int, bool) {
	if label == "" {
		return 0, false
	}
	last := label[len(label)-1]
	if last < '0' || last > '9' {
		return 0, false
	}
	return int(last - '0'), true
}

func parseStatusTime(value string) (time.Time, error) {
	// timestamps arrive with variable sub-second suffixes; the stable
	// prefix is seconds precision
	if len(value) > 19 {
		value = value[:19]
	}
	return time.Parse("2006-01-02T15:04:05", value)
}
