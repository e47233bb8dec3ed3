package loop

import (
	"fmt"

	"github.com/klauern/hookloop/internal/protocol"
)

// HandleStop runs the loop state machine for one Stop event. With no
// foreground loop (pointer unset, or pointing at a missing or non-active
// record) it is a no-op and termination proceeds. Errors along the way
// degrade to allowing termination: a stuck session is worse than a loop
// that ends one turn early.
func HandleStop(store *Store, ev *protocol.Event) *protocol.Result {
	active, warnings := store.Active()
	if active == nil || active.Status != StatusActive {
		res := protocol.OK()
		res.Warnings = warnings
		return res
	}

	lastTurn, err := LastAssistantTurn(ev.TranscriptPath)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("loop %s: cannot read transcript: %v", active.ID, err))
	}

	if lastTurn != "" && active.PromiseSatisfied(lastTurn) {
		active.complete()
		if err := store.Save(active); err != nil {
			warnings = append(warnings, fmt.Sprintf("loop %s: persist completion: %v", active.ID, err))
		}
		if err := store.ClearActive(); err != nil {
			warnings = append(warnings, fmt.Sprintf("loop %s: clear foreground pointer: %v", active.ID, err))
		}
		res := protocol.OK()
		res.Output = &protocol.Output{
			SystemMessage: fmt.Sprintf("Loop %s completed: promise matched after %d continuation(s).", shortID(active.ID), active.Iteration),
		}
		res.Warnings = warnings
		return res
	}

	exhausted := active.advance()
	if err := store.Save(active); err != nil {
		// Never block on unpersistable state: the host would re-deliver
		// the same directive forever.
		warnings = append(warnings, fmt.Sprintf("loop %s: persist iteration: %v", active.ID, err))
		res := protocol.OK()
		res.Warnings = warnings
		return res
	}

	if exhausted {
		if err := store.ClearActive(); err != nil {
			warnings = append(warnings, fmt.Sprintf("loop %s: clear foreground pointer: %v", active.ID, err))
		}
		res := protocol.OK()
		res.Output = &protocol.Output{
			SystemMessage: fmt.Sprintf("Loop %s ended: iteration budget of %d exhausted before the promise appeared.", shortID(active.ID), active.MaxIterations),
		}
		res.Warnings = warnings
		return res
	}

	res := protocol.BlockStop(continuationReason(active))
	res.Warnings = warnings
	return res
}

// continuationReason re-delivers the original directive verbatim along
// with the completion convention, so the agent understands why the turn
// continues and how to end it.
func continuationReason(l *Loop) string {
	budget := "unbounded"
	if l.MaxIterations > 0 {
		budget = fmt.Sprintf("%d/%d", l.Iteration, l.MaxIterations)
	}
	return fmt.Sprintf(
		"Loop %s is still in progress (iteration %s).\n\n%s\n\nWhen the directive is fully satisfied, output the completion marker exactly: %s",
		shortID(l.ID), budget, l.Directive, l.Marker(),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
