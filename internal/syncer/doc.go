// Package syncer reconciles a project's persisted documents with its source.
//
// Overview
//
// One sync run collects the project's markdown files, compares each file's
// hash against the stored document with the same path, and applies the
// resulting plan in a single transaction:
//
//	Source (local dir or remote archive)
//	     └── *.md                 → source.Collection
//	                                      ↓
//	                          skip / parse + infer / delete
//	                                      ↓
//	                          store.WithTx (one commit)
//	                                      ↓
//	                          FTS rebuild (best effort)
//
// Status transitions
//
//	never_synced ──▶ syncing ──▶ synced
//	                    │
//	                    └──────▶ error
//
// A source that is not addressable moves the project straight to error
// without touching its documents. Per-file decode failures are counted and
// skipped; any other failure rolls back the whole batch.
//
// Usage
//
//	s := syncer.New(st, source.NewCollector(source.Options{}, nil), hub, nil)
//
//	// foreground
//	res, err := s.Sync(ctx, project)
//
//	// background, as the HTTP trigger does
//	if _, err := s.TriggerSync(ctx, "my-project"); err != nil {
//	    return err // store.ErrProjectNotFound or ErrSyncInProgress
//	}
//	s.Dispatch("my-project")
//
// Concurrency
//
// TriggerSync claims a project with a conditional update, so two triggers
// for the same project cannot both succeed. Runs for different projects
// proceed independently.
package syncer
