package service

import "github.com/iliyamo/task-manager/internal/repository"

// Re-exported so handlers depend on one set of sentinels.
var (
	ErrNotFound  = repository.ErrNotFound
	ErrForbidden = repository.ErrForbidden
	ErrConflict  = repository.ErrConflict
)
