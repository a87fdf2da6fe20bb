package health

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
)

// Rule is one registered check.
type Rule struct {
	ID       string
	Severity Severity
	Category Category

	check func(docs []*document.Document, now time.Time) []issue
}

// issue is what a check reports; Run stamps it with the rule's identity.
type issue struct {
	message  string
	fix      string
	affected []*document.Document
}

// Run applies the rule to docs.
func (r Rule) Run(docs []*document.Document, now time.Time) []Finding {
	issues := r.check(docs, now)
	findings := make([]Finding, 0, len(issues))
	for _, is := range issues {
		affected := make([]AffectedDocument, 0, len(is.affected))
		for _, d := range is.affected {
			affected = append(affected, AffectedDocument{DocID: d.DocID, DocType: string(d.DocType), Title: d.Title})
		}
		findings = append(findings, Finding{
			RuleID:            r.ID,
			Severity:          r.Severity,
			Category:          r.Category,
			Message:           is.message,
			AffectedDocuments: affected,
			SuggestedFix:      is.fix,
		})
	}
	return findings
}

// Rules returns the registry in execution order: completeness,
// consistency, quality, integrity, then the time-dependent staleness rule.
func Rules() []Rule {
	return []Rule{
		{"MISSING_PRD", SeverityCritical, CategoryCompleteness, checkMissingPRD},
		{"MISSING_TRD", SeverityHigh, CategoryCompleteness, checkMissingTRD},
		{"MISSING_PLAN", SeverityMedium, CategoryCompleteness, checkMissingPlan},
		{"MISSING_TEST_SPEC", SeverityMedium, CategoryCompleteness, checkMissingTestSpec},
		{"EPIC_NO_STORIES", SeverityHigh, CategoryCompleteness, checkEpicNoStories},

		{"STORY_NO_EPIC", SeverityHigh, CategoryConsistency, checkStoryNoEpic},
		{"PLAN_NO_STORY", SeverityMedium, CategoryConsistency, checkPlanNoStory},
		{"TEST_SPEC_NO_STORY", SeverityMedium, CategoryConsistency, checkTestSpecNoStory},
		{"ORPHAN_REFERENCE", SeverityMedium, CategoryConsistency, checkOrphanReference},
		{"STATUS_MISMATCH", SeverityLow, CategoryConsistency, checkStatusMismatch},
		{"STALE_ARTEFACT_STATUS", SeverityLow, CategoryConsistency, checkStaleArtefactStatus},

		{"MISSING_STATUS", SeverityHigh, CategoryQuality, checkMissingStatus},
		{"MISSING_OWNER", SeverityMedium, CategoryQuality, checkMissingOwner},
		{"MISSING_PRIORITY", SeverityLow, CategoryQuality, checkMissingPriority},
		{"MISSING_STORY_POINTS", SeverityLow, CategoryQuality, checkMissingStoryPoints},

		{"DUPLICATE_DOC_ID", SeverityCritical, CategoryIntegrity, checkDuplicateDocID},
		{"EMPTY_CONTENT", SeverityHigh, CategoryIntegrity, checkEmptyContent},

		{"STALE_DOCUMENT", SeverityLow, CategoryIntegrity, checkStaleDocument},
	}
}

const (
	// minContentLength is the stripped length below which content is a stub.
	minContentLength = 50
	// staleAfter is how long a document may go unsynced.
	staleAfter = 30 * 24 * time.Hour
)

var (
	doneStatuses     = map[string]bool{"Done": true, "Complete": true}
	inactiveStatuses = map[string]bool{"Done": true, "Complete": true, "Won't Implement": true, "Superseded": true}

	// projectLevelIDs are reference documents exempt from the status lifecycle.
	projectLevelIDs = map[string]bool{"brand-guide": true, "personas": true}

	// contentEpicPattern finds a bold Epic field naming an id in raw content.
	contentEpicPattern = regexp.MustCompile(`\*\*Epic:?\*\*:?\s*.*?([A-Z]{2}\d{4})`)

	titleCaser = cases.Title(language.Und)
)

// ===== Classification =====

func isReview(d *document.Document) bool {
	return strings.Contains(d.FilePath, "/reviews/") || strings.HasPrefix(d.FilePath, "reviews/")
}

func isProjectLevel(d *document.Document) bool {
	return d.DocType.IsProjectLevel() || projectLevelIDs[d.DocID]
}

func isInactive(d *document.Document) bool {
	return inactiveStatuses[document.Deref(d.Status)]
}

func hasEpicInContent(d *document.Document) bool {
	return d.Content != "" && contentEpicPattern.MatchString(d.Content)
}

func ofType(docs []*document.Document, t document.DocType) []*document.Document {
	var out []*document.Document
	for _, d := range docs {
		if d.DocType == t {
			out = append(out, d)
		}
	}
	return out
}

// activeStories are non-archive stories not yet in a terminal status.
func activeStories(docs []*document.Document) []*document.Document {
	var out []*document.Document
	for _, d := range ofType(docs, document.TypeStory) {
		if !d.IsArchive() && !isInactive(d) {
			out = append(out, d)
		}
	}
	return out
}

// referenced collects the non-empty values of field over docs.
func referenced(docs []*document.Document, field func(*document.Document) *string) map[string]bool {
	set := make(map[string]bool)
	for _, d := range docs {
		if v := document.Deref(field(d)); v != "" {
			set[v] = true
		}
	}
	return set
}

func epicOf(d *document.Document) *string  { return d.Epic }
func storyOf(d *document.Document) *string { return d.Story }

func typeLabel(d *document.Document) string {
	return titleCaser.String(string(d.DocType))
}

func statusLabel(d *document.Document) string {
	if s := document.Deref(d.Status); s != "" {
		return s
	}
	return "None"
}

// ===== Completeness =====

func checkMissingPRD(docs []*document.Document, _ time.Time) []issue {
	if len(docs) == 0 || len(ofType(docs, document.TypePRD)) > 0 {
		return nil
	}
	return []issue{{
		message: "Project has no PRD document.",
		fix:     "Create a PRD document defining the product requirements for this project.",
	}}
}

func checkMissingTRD(docs []*document.Document, _ time.Time) []issue {
	if len(docs) == 0 || len(ofType(docs, document.TypeTRD)) > 0 {
		return nil
	}
	return []issue{{
		message: "Project has no TRD document.",
		fix:     "Create a TRD document defining the technical requirements and architecture.",
	}}
}

// Plans are pre-implementation artefacts, so finished stories are exempt.
func checkMissingPlan(docs []*document.Document, _ time.Time) []issue {
	planned := referenced(ofType(docs, document.TypePlan), storyOf)

	var issues []issue
	for _, story := range activeStories(docs) {
		if planned[story.CleanPrefix()] {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("Story '%s' has no associated plan.", story.Title),
			fix:      fmt.Sprintf("Create a plan document for story %s with acceptance criteria coverage.", story.DocID),
			affected: []*document.Document{story},
		})
	}
	return issues
}

// An epic-scoped test-spec (epic set, story unset) covers all of the
// epic's stories.
func checkMissingTestSpec(docs []*document.Document, _ time.Time) []issue {
	specs := ofType(docs, document.TypeTestSpec)
	tested := referenced(specs, storyOf)

	epicsWithSpecs := make(map[string]bool)
	for _, ts := range specs {
		if document.Deref(ts.Story) == "" && document.Deref(ts.Epic) != "" {
			epicsWithSpecs[document.Deref(ts.Epic)] = true
		}
	}

	var issues []issue
	for _, story := range activeStories(docs) {
		if tested[story.CleanPrefix()] {
			continue
		}
		if epic := document.Deref(story.Epic); epic != "" && epicsWithSpecs[epic] {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("Story '%s' has no associated test-spec.", story.Title),
			fix:      fmt.Sprintf("Create a test-spec document for story %s with test cases covering the acceptance criteria.", story.DocID),
			affected: []*document.Document{story},
		})
	}
	return issues
}

func checkEpicNoStories(docs []*document.Document, _ time.Time) []issue {
	withStories := referenced(ofType(docs, document.TypeStory), epicOf)

	var issues []issue
	for _, epic := range ofType(docs, document.TypeEpic) {
		if isReview(epic) || withStories[epic.CleanPrefix()] {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("Epic '%s' has no child stories.", epic.Title),
			fix:      fmt.Sprintf("Create story documents under epic %s to break down the work into implementable units.", epic.DocID),
			affected: []*document.Document{epic},
		})
	}
	return issues
}

// ===== Consistency =====

func checkStoryNoEpic(docs []*document.Document, _ time.Time) []issue {
	var issues []issue
	for _, story := range ofType(docs, document.TypeStory) {
		if story.IsArchive() || document.Deref(story.Epic) != "" || hasEpicInContent(story) {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("Story '%s' has no epic reference.", story.Title),
			fix:      fmt.Sprintf("Add an epic reference to story %s in its frontmatter metadata.", story.DocID),
			affected: []*document.Document{story},
		})
	}
	return issues
}

func checkPlanNoStory(docs []*document.Document, _ time.Time) []issue {
	var issues []issue
	for _, plan := range ofType(docs, document.TypePlan) {
		if document.Deref(plan.Story) != "" {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("Plan '%s' has no story reference.", plan.Title),
			fix:      fmt.Sprintf("Add a story reference to plan %s in its frontmatter metadata.", plan.DocID),
			affected: []*document.Document{plan},
		})
	}
	return issues
}

func checkTestSpecNoStory(docs []*document.Document, _ time.Time) []issue {
	var issues []issue
	for _, ts := range ofType(docs, document.TypeTestSpec) {
		if document.Deref(ts.Story) != "" {
			continue
		}
		if document.Deref(ts.Epic) != "" || hasEpicInContent(ts) {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("Test-spec '%s' has no story reference.", ts.Title),
			fix:      fmt.Sprintf("Add a story reference to test-spec %s in its frontmatter metadata.", ts.DocID),
			affected: []*document.Document{ts},
		})
	}
	return issues
}

// References resolve against the clean prefix of every document,
// regardless of type.
func checkOrphanReference(docs []*document.Document, _ time.Time) []issue {
	prefixes := make(map[string]bool, len(docs))
	for _, d := range docs {
		prefixes[d.CleanPrefix()] = true
	}

	var issues []issue
	for _, d := range docs {
		if epic := document.Deref(d.Epic); epic != "" && !prefixes[epic] {
			issues = append(issues, issue{
				message:  fmt.Sprintf("Document '%s' references non-existent epic '%s'.", d.Title, epic),
				fix:      fmt.Sprintf("Update the epic reference in %s to point to an existing epic, or create epic %s.", d.DocID, epic),
				affected: []*document.Document{d},
			})
		}
		if story := document.Deref(d.Story); story != "" && !prefixes[story] {
			issues = append(issues, issue{
				message:  fmt.Sprintf("Document '%s' references non-existent story '%s'.", d.Title, story),
				fix:      fmt.Sprintf("Update the story reference in %s to point to an existing story, or create story %s.", d.DocID, story),
				affected: []*document.Document{d},
			})
		}
	}
	return issues
}

func checkStatusMismatch(docs []*document.Document, _ time.Time) []issue {
	stories := ofType(docs, document.TypeStory)

	var issues []issue
	for _, epic := range ofType(docs, document.TypeEpic) {
		if !doneStatuses[document.Deref(epic.Status)] {
			continue
		}
		prefix := epic.CleanPrefix()
		var incomplete []*document.Document
		for _, s := range stories {
			if document.Deref(s.Epic) == prefix && !isInactive(s) {
				incomplete = append(incomplete, s)
			}
		}
		if len(incomplete) == 0 {
			continue
		}
		issues = append(issues, issue{
			message: fmt.Sprintf("Epic '%s' is marked Done but has %d incomplete child stories.", epic.Title, len(incomplete)),
			fix: fmt.Sprintf("Either update the incomplete stories under %s to Done, or change the epic status to reflect the actual state.",
				epic.DocID),
			affected: append([]*document.Document{epic}, incomplete...),
		})
	}
	return issues
}

func checkStaleArtefactStatus(docs []*document.Document, _ time.Time) []issue {
	storyStatus := make(map[string]string)
	for _, s := range ofType(docs, document.TypeStory) {
		if status := document.Deref(s.Status); status != "" {
			storyStatus[s.CleanPrefix()] = status
		}
	}

	var issues []issue
	for _, d := range docs {
		story := document.Deref(d.Story)
		if d.DocType == document.TypeStory || story == "" || isInactive(d) {
			continue
		}
		parent := storyStatus[story]
		if !inactiveStatuses[parent] {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("%s '%s' is '%s' but its story is '%s'.", typeLabel(d), d.Title, statusLabel(d), parent),
			fix:      fmt.Sprintf("Update the status of %s to Done to match its completed story.", d.DocID),
			affected: []*document.Document{d},
		})
	}
	return issues
}

// ===== Quality =====

// Project-level references evolve continuously and have no lifecycle status.
func checkMissingStatus(docs []*document.Document, _ time.Time) []issue {
	var issues []issue
	for _, d := range docs {
		if isProjectLevel(d) || document.Deref(d.Status) != "" {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("Document '%s' has no status set.", d.Title),
			fix:      fmt.Sprintf("Add a status field to %s frontmatter (e.g. Draft, In Progress, Done).", d.DocID),
			affected: []*document.Document{d},
		})
	}
	return issues
}

func checkMissingOwner(docs []*document.Document, _ time.Time) []issue {
	var issues []issue
	for _, d := range docs {
		if d.DocType != document.TypeStory && d.DocType != document.TypeEpic {
			continue
		}
		if d.IsArchive() || isReview(d) || document.Deref(d.Owner) != "" {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("%s '%s' has no owner assigned.", typeLabel(d), d.Title),
			fix:      fmt.Sprintf("Assign an owner to %s in its frontmatter metadata.", d.DocID),
			affected: []*document.Document{d},
		})
	}
	return issues
}

func checkMissingPriority(docs []*document.Document, _ time.Time) []issue {
	var issues []issue
	for _, story := range activeStories(docs) {
		if document.Deref(story.Priority) != "" {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("Story '%s' has no priority set.", story.Title),
			fix:      fmt.Sprintf("Add a priority field to %s frontmatter (e.g. P0, P1, P2).", story.DocID),
			affected: []*document.Document{story},
		})
	}
	return issues
}

func checkMissingStoryPoints(docs []*document.Document, _ time.Time) []issue {
	var issues []issue
	for _, story := range activeStories(docs) {
		if story.StoryPoints != nil {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("Story '%s' has no story points.", story.Title),
			fix:      fmt.Sprintf("Add story_points to %s frontmatter to help with sprint planning.", story.DocID),
			affected: []*document.Document{story},
		})
	}
	return issues
}

// ===== Integrity =====

// Groups are reported in order of each doc_id's first appearance.
func checkDuplicateDocID(docs []*document.Document, _ time.Time) []issue {
	groups := make(map[string][]*document.Document)
	var order []string
	for _, d := range docs {
		if _, seen := groups[d.DocID]; !seen {
			order = append(order, d.DocID)
		}
		groups[d.DocID] = append(groups[d.DocID], d)
	}

	var issues []issue
	for _, id := range order {
		group := groups[id]
		if len(group) < 2 {
			continue
		}
		types := make([]string, 0, len(group))
		paths := make([]string, 0, len(group))
		for _, d := range group {
			types = append(types, string(d.DocType))
			paths = append(paths, d.FilePath)
		}
		issues = append(issues, issue{
			message: fmt.Sprintf("Multiple documents share doc_id '%s': %s.", id, strings.Join(types, ", ")),
			fix: fmt.Sprintf("Rename the duplicate documents so each has a unique doc_id. Affected: %s.",
				strings.Join(paths, ", ")),
			affected: group,
		})
	}
	return issues
}

func checkEmptyContent(docs []*document.Document, _ time.Time) []issue {
	var issues []issue
	for _, d := range docs {
		if utf8.RuneCountInString(strings.TrimSpace(d.Content)) >= minContentLength {
			continue
		}
		issues = append(issues, issue{
			message:  fmt.Sprintf("Document '%s' has no meaningful content.", d.Title),
			fix:      fmt.Sprintf("Add content to %s (%s). The document appears to be empty or a stub.", d.DocID, d.FilePath),
			affected: []*document.Document{d},
		})
	}
	return issues
}

func checkStaleDocument(docs []*document.Document, now time.Time) []issue {
	threshold := now.Add(-staleAfter)

	var issues []issue
	for _, d := range docs {
		if !d.SyncedAt.Before(threshold) {
			continue
		}
		issues = append(issues, issue{
			message: fmt.Sprintf("Document '%s' has not been synced in over 30 days (last synced %s).",
				d.Title, d.SyncedAt.UTC().Format(time.DateOnly)),
			fix:      fmt.Sprintf("Review and re-sync %s to ensure it is still current.", d.DocID),
			affected: []*document.Document{d},
		})
	}
	return issues
}
