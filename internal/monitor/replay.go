package monitor

import "github.com/blackwell-systems/sessionwatch/internal/stream"

// Replay folds a batch of already-parsed records into a fresh session state.
// It applies the same classification rules as live monitoring and returns
// nil when no record classifies, matching State() before the first event.
func Replay(sessionID string, recs []stream.Record) *SessionState {
	var st *SessionState
	for _, rec := range recs {
		ev, ok := Classify(rec)
		if !ok {
			if st != nil {
				st.touch(rec.Timestamp)
			}
			continue
		}
		ev.SessionID = sessionID
		if st == nil {
			st = newSessionState(sessionID)
		}
		st.apply(ev)
	}
	return st
}
