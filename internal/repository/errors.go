package repository

import "github.com/joshjon/kit/errtag"

// ErrTagRepositoryNotFound tags lookups against an unknown alias — the
// spec's RepositoryMissing error kind, surfaced to the caller and never
// retried.
type ErrTagRepositoryNotFound struct{ errtag.NotFound }

func (ErrTagRepositoryNotFound) Msg() string { return "repository alias not found" }

// ErrTagRepositoryConflict tags connect_remote/connect_local calls against
// an alias that already exists.
type ErrTagRepositoryConflict struct{ errtag.Conflict }

func (ErrTagRepositoryConflict) Msg() string { return "repository alias already connected" }
