package send

import (
	"github.com/nhle/draftmail/internal/buffer"
	"github.com/nhle/draftmail/internal/deliver"
)

// SentNotice is shown briefly after a successful send.
const SentNotice = "Mail sent."

// Reconciliation tells the UI what to show after a delivery.
type Reconciliation struct {
	BufferID string
	Status   deliver.Status

	// ReturnToSummary is set on success; on failure the draft is shown
	// again.
	ReturnToSummary bool

	Notice  string
	Warning error
	Err     error
}

// Reconcile applies an outcome to the buffers. Sent destroys the draft;
// Failed makes it visible again with its text untouched.
func Reconcile(bufs *buffer.Manager, out deliver.Outcome) Reconciliation {
	r := Reconciliation{
		BufferID: out.DraftID,
		Status:   out.Status,
		Warning:  out.Warning,
	}

	switch out.Status {
	case deliver.Sent:
		// A missing buffer has nothing left to clean up.
		_ = bufs.Destroy(out.DraftID)
		r.ReturnToSummary = true
		r.Notice = SentNotice
	default:
		r.Err = out.Err
		if err := bufs.Restore(out.DraftID); err != nil && r.Err == nil {
			r.Err = err
		}
	}
	return r
}
