package store

import "errors"

var (
	// ErrProjectNotFound is returned when no project has the given slug.
	ErrProjectNotFound = errors.New("project not found")

	// ErrDocumentNotFound is returned when no document matches a lookup.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrSlugConflict is returned when a project with the same slug exists.
	ErrSlugConflict = errors.New("project slug already exists")

	// ErrEmptySlug is returned when a project name produces an empty slug.
	ErrEmptySlug = errors.New("project name produces an empty slug after sanitisation")

	// ErrSyncInProgress is returned when a sync is already running for
	// the project.
	ErrSyncInProgress = errors.New("sync already running for this project")
)
