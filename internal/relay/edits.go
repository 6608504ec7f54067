package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/topicgate/topicgate/internal/bus"
	"github.com/topicgate/topicgate/internal/correlation"
	"github.com/topicgate/topicgate/internal/transport"
)

// EditPropagator re-applies source-side edits onto the mirrored copies.
type EditPropagator struct {
	forum        transport.Forum
	correlations *correlation.Store

	now func() time.Time
}

// NewEditPropagator wires the propagator.
func NewEditPropagator(forum transport.Forum, correlations *correlation.Store) *EditPropagator {
	return &EditPropagator{forum: forum, correlations: correlations, now: time.Now}
}

// PropagateEdit applies msg's new content to the destination copy. An
// edit with no stored correlation (never relayed, or past retention) is
// a silent no-op. Edits are applied once; failures are logged and
// dropped, never retried.
func (e *EditPropagator) PropagateEdit(ctx context.Context, msg *bus.InboundMessage) (Outcome, error) {
	rec, err := e.correlations.Get(msg.ChatID, msg.ID)
	if err != nil {
		return OutcomeDropped, fmt.Errorf("look up correlation for edit %d/%d: %w", msg.ChatID, msg.ID, err)
	}
	if rec == nil {
		slog.Debug("Edit without correlation, skipping", "chat", msg.ChatID, "message", msg.ID, "trace_id", msg.TraceID)
		return OutcomeDropped, nil
	}

	body := fmt.Sprintf("%s\n\n✏️ edited %s", msg.Text, e.now().Format("15:04"))

	if msg.Media != nil {
		err = e.forum.EditCaption(ctx, rec.DestMessageID, body)
	} else {
		err = e.forum.EditText(ctx, rec.DestMessageID, body)
	}
	if errors.Is(err, transport.ErrNotModified) {
		return OutcomeEdited, nil
	}
	if err != nil {
		slog.Warn("Edit propagation failed", "chat", msg.ChatID, "message", msg.ID, "dest_message", rec.DestMessageID, "error", err)
		return OutcomeDropped, fmt.Errorf("edit destination message %d: %w", rec.DestMessageID, err)
	}
	return OutcomeEdited, nil
}
