// Package document defines the persisted data model for sdlc-lens.
//
// # Documents
//
// A Document is one ingested markdown artefact. Its identity across syncs
// is its source-relative file path within a project, not its doc_id: two
// files may produce the same doc_id, which the health engine reports as
// an integrity issue.
//
//	doc := &document.Document{
//	    ProjectID: 1,
//	    DocType:   document.TypeStory,
//	    DocID:     "US0001-register-project",
//	    Title:     "US0001: Register a project",
//	    Epic:      document.Ref("EP0001"),
//	    FilePath:  "stories/US0001-register-project.md",
//	    FileHash:  contenthash.Sum(raw),
//	}
//
// # References
//
// Epic and Story always hold a clean prefix such as "EP0007". Values from
// frontmatter are normalised by ExtractDocID when attributes are built, so
// readers never have to strip markdown links.
//
// # Projects
//
// A Project owns documents and carries the sync status state machine:
//
//	never_synced -> syncing -> synced
//	                        \-> error
//
// Both synced and error projects may be synced again.
package document
