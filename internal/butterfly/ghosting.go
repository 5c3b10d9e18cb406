package butterfly

import "time"

// CheckGhosting flags the match when either side has been silent longer than
// the threshold. It never clears the flag; only a new message does that.
func CheckGhosting(m *Match, now time.Time) bool {
	if len(SilentSides(m, now)) == 0 {
		return false
	}
	m.Ghosting.IsGhosted = true
	return true
}

// SilentSides lists the participants whose gap exceeds the threshold. A side
// that never responded is measured from the match creation time.
func SilentSides(m *Match, now time.Time) []int64 {
	threshold := time.Duration(m.Ghosting.SilenceThresholdHours) * time.Hour
	if threshold <= 0 {
		threshold = time.Duration(DefaultSettings().SilenceThresholdHours) * time.Hour
	}
	var silent []int64
	if now.Sub(lastOr(m.Ghosting.LastResponseUser1, m.CreatedAt)) > threshold {
		silent = append(silent, m.User1ID)
	}
	if now.Sub(lastOr(m.Ghosting.LastResponseUser2, m.CreatedAt)) > threshold {
		silent = append(silent, m.User2ID)
	}
	return silent
}

// RecordResponse is the message-send side effect: it stamps the sender's side
// and clears the ghosted state unconditionally.
func RecordResponse(m *Match, senderID int64, now time.Time) error {
	if !m.HasParticipant(senderID) {
		return ErrNotParticipant
	}
	t := now
	if senderID == m.User1ID {
		m.Ghosting.LastResponseUser1 = &t
	} else {
		m.Ghosting.LastResponseUser2 = &t
	}
	m.Ghosting.IsGhosted = false
	m.Ghosting.WarningSent = false
	m.UpdatedAt = now
	return nil
}

func lastOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return *t
}
