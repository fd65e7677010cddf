package timebin

// SessionStats describes what happened to the on/off pairs of a cleaned stream
type SessionStats struct {
	Dropped      int
	Unterminated bool
}

// Classify returns the class of a session of the given duration.
// A session exactly at the threshold is short.
func Classify(duration, shortThreshold int64) SessionClass {
	if duration <= shortThreshold {
		return ClassShort
	}
	return ClassLong
}

// ExtractSessions pairs every on event with the next off event of a cleaned,
// alternating stream. Pairs with a non-positive duration or one longer than
// the maximum session duration are dropped. A trailing on event without a
// terminating off event does not produce a session.
func ExtractSessions(events []Event, p Params) ([]Session, SessionStats) {
	var (
		sessions []Session
		stats    SessionStats
		onAt     int64
		open     bool
	)

	for _, ev := range events {
		if ev.On {
			onAt = ev.Timestamp
			open = true
			continue
		}
		if !open {
			continue
		}
		open = false

		d := ev.Timestamp - onAt
		if d <= 0 || d > p.MaxSessionDuration {
			stats.Dropped++
			continue
		}
		sessions = append(sessions, Session{
			Start:    onAt,
			Duration: d,
			Class:    Classify(d, p.ShortSessionThreshold),
		})
	}

	stats.Unterminated = open
	return sessions, stats
}
