// Package health analyses a project's documents for structural problems.
//
// Check is a pure function over a document list: it runs every registered
// rule in a fixed order, concatenates their findings and derives a score
// from the severity counts. It never touches persistence.
package health

import (
	"time"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
)

// Severity ranks a finding's impact.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists every severity from most to least severe.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// Weight is the score penalty for one finding of this severity.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 15
	case SeverityHigh:
		return 5
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Category groups rules by the kind of problem they detect.
type Category string

const (
	CategoryCompleteness Category = "completeness"
	CategoryConsistency  Category = "consistency"
	CategoryQuality      Category = "quality"
	CategoryIntegrity    Category = "integrity"
)

// AffectedDocument identifies a document named by a finding.
type AffectedDocument struct {
	DocID   string `json:"doc_id" yaml:"doc_id"`
	DocType string `json:"doc_type" yaml:"doc_type"`
	Title   string `json:"title" yaml:"title"`
}

// Finding is one detected issue.
type Finding struct {
	RuleID            string             `json:"rule_id" yaml:"rule_id"`
	Severity          Severity           `json:"severity" yaml:"severity"`
	Category          Category           `json:"category" yaml:"category"`
	Message           string             `json:"message" yaml:"message"`
	AffectedDocuments []AffectedDocument `json:"affected_documents" yaml:"affected_documents"`
	SuggestedFix      string             `json:"suggested_fix" yaml:"suggested_fix"`
}

// Result is the outcome of a health check.
type Result struct {
	ProjectSlug    string           `json:"project_slug" yaml:"project_slug"`
	CheckedAt      time.Time        `json:"checked_at" yaml:"checked_at"`
	TotalDocuments int              `json:"total_documents" yaml:"total_documents"`
	Findings       []Finding        `json:"findings" yaml:"findings"`
	Summary        map[Severity]int `json:"summary" yaml:"summary"`
	Score          int              `json:"score" yaml:"score"`
}

// Check runs every rule against docs.
func Check(docs []*document.Document, projectSlug string, now time.Time) *Result {
	findings := []Finding{}
	for _, rule := range Rules() {
		findings = append(findings, rule.Run(docs, now)...)
	}

	summary := make(map[Severity]int, 4)
	for _, sev := range Severities() {
		summary[sev] = 0
	}
	for _, f := range findings {
		summary[f.Severity]++
	}

	return &Result{
		ProjectSlug:    projectSlug,
		CheckedAt:      now,
		TotalDocuments: len(docs),
		Findings:       findings,
		Summary:        summary,
		Score:          Score(summary),
	}
}

// Score is 100 minus the weighted severity counts, clamped to 0..100.
func Score(summary map[Severity]int) int {
	penalty := 0
	for sev, count := range summary {
		penalty += count * sev.Weight()
	}
	score := 100 - penalty
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
