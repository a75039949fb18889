package services

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Callers match with errors.Is; the concrete cause is
// wrapped behind the sentinel.
var (
	ErrValidation        = errors.New("validation error")
	ErrChallengeNotFound = fmt.Errorf("%w: challenge not found", ErrValidation)
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrUploadFailure     = errors.New("upload failure")
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrSubmissionPersist = errors.New("submission persist failure")
	ErrLedgerCredit      = errors.New("ledger credit failure")
)
