package document

// DocType is the semantic type of a document.
type DocType string

// Document types.
const (
	TypeEpic     DocType = "epic"
	TypeStory    DocType = "story"
	TypeBug      DocType = "bug"
	TypePlan     DocType = "plan"
	TypeTestSpec DocType = "test-spec"
	TypeWorkflow DocType = "workflow"
	TypePRD      DocType = "prd"
	TypeTRD      DocType = "trd"
	TypeTSD      DocType = "tsd"
	TypePersonas DocType = "personas"
	TypeOther    DocType = "other"
)

// AllTypes returns the full vocabulary in display order.
func AllTypes() []DocType {
	return []DocType{
		TypeEpic, TypeStory, TypeBug, TypePlan, TypeTestSpec, TypeWorkflow,
		TypePRD, TypeTRD, TypeTSD, TypePersonas, TypeOther,
	}
}

// IsValid reports whether t is part of the vocabulary.
func (t DocType) IsValid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// IsProjectLevel reports whether t is a project-wide singleton type.
func (t DocType) IsProjectLevel() bool {
	switch t {
	case TypePRD, TypeTRD, TypeTSD, TypePersonas:
		return true
	}
	return false
}

// SyncStatus is a project's position in the sync state machine.
type SyncStatus string

const (
	StatusNeverSynced SyncStatus = "never_synced"
	StatusSyncing     SyncStatus = "syncing"
	StatusSynced      SyncStatus = "synced"
	StatusError       SyncStatus = "error"
)

// SourceType selects the collector used for a project.
type SourceType string

const (
	SourceLocal  SourceType = "local"
	SourceGitHub SourceType = "github"
)

// IsValid reports whether s is a known source type.
func (s SourceType) IsValid() bool {
	return s == SourceLocal || s == SourceGitHub
}

// Ref returns a pointer to s, or nil when s is empty. It is a convenience
// for populating the nullable string fields of Document.
func Ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value of s, or "" when nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
