package debuglog

import "github.com/sundog75/autocoder/pkg/models"

// maxPendingIDsLogged bounds how many pending feature ids a single dump
// records, matching the Python helper's "first 10 pending only" comment.
const maxPendingIDsLogged = 10

// DumpCatalogState snapshots a feature list into a single DB_DUMP log entry:
// counts and ids for passing, in-progress, and pending features. It is
// diagnostic only — the scheduler never branches on anything this writes —
// grounded on the Python orchestrator's _dump_database_state helper.
func DumpCatalogState(l *Logger, all []models.Feature, label string) {
	if l == nil {
		return
	}

	var passingIDs, inProgressIDs, pendingIDs []int64
	for _, f := range all {
		switch {
		case f.Passes:
			passingIDs = append(passingIDs, f.ID)
		case f.InProgress:
			inProgressIDs = append(inProgressIDs, f.ID)
		default:
			pendingIDs = append(pendingIDs, f.ID)
		}
	}

	truncatedPending := pendingIDs
	if len(truncatedPending) > maxPendingIDsLogged {
		truncatedPending = truncatedPending[:maxPendingIDsLogged]
	}

	l.Log("DB_DUMP", "full catalog state "+label,
		F("total_features", len(all)),
		F("passing_count", len(passingIDs)),
		F("passing_ids", passingIDs),
		F("in_progress_count", len(inProgressIDs)),
		F("in_progress_ids", inProgressIDs),
		F("pending_count", len(pendingIDs)),
		F("pending_ids", truncatedPending),
	)
}
