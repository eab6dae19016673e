// Package store persists correction records as markdown files with YAML
// frontmatter, organized by explanation status.
package store

import (
	"fmt"

	"github.com/iterata/iterata/internal/models"
)

// Status selects which records to load.
type Status string

const (
	// StatusAll loads every record regardless of status.
	StatusAll Status = "all"
	// StatusInbox loads records still awaiting an explanation.
	StatusInbox Status = "inbox"
	// StatusExplained loads records that carry an explanation.
	StatusExplained Status = "explained"
)

// Store is the persistence interface consumed by the analysis components.
type Store interface {
	// SaveCorrection writes a new pending correction and returns its path.
	SaveCorrection(c models.Correction) (string, error)

	// SaveExplanation attaches an explanation to a pending correction,
	// moving it from the inbox to the explained tree. The transition
	// happens exactly once; the correction ID is stable across it.
	SaveExplanation(e models.Explanation, c models.Correction) (string, error)

	// LoadCorrections returns a snapshot of records for the given status.
	// An unsupported status is the only error the analysis layer expects.
	LoadCorrections(status Status) ([]models.Correction, error)
}

// ErrUnknownStatus reports an unsupported status argument.
func ErrUnknownStatus(status Status) error {
	return fmt.Errorf("unknown correction status %q (want %q, %q or %q)",
		status, StatusAll, StatusInbox, StatusExplained)
}
