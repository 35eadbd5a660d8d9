package guard

import (
	"time"

	"messaging-service/internal/auth"
)

// TimeWindow is a daily UTC window, half-open [StartHour, EndHour). A window
// with StartHour > EndHour wraps past midnight.
type TimeWindow struct {
	StartHour int
	EndHour   int
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	h := t.UTC().Hour()
	if w.StartHour <= w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	return h >= w.StartHour || h < w.EndHour
}

// Guard decides whether an identity may perform an operation on a
// conversation-scoped resource. All checks are pure predicates; membership is
// looked up by the caller and passed in.
type Guard struct {
	window TimeWindow
	now    func() time.Time
}

// New builds a Guard with the configured message-creation window.
func New(window TimeWindow) *Guard {
	return &Guard{window: window, now: time.Now}
}

// NewWithClock builds a Guard with an injected clock, for tests.
func NewWithClock(window TimeWindow, now func() time.Time) *Guard {
	return &Guard{window: window, now: now}
}

// CanRead allows participants to read conversation content.
func (g *Guard) CanRead(identity auth.Identity, isParticipant bool) bool {
	return !identity.Anonymous && isParticipant
}

// CanCreateMessage allows participants to post, but only inside the daily
// window. Outside the window denial is unconditional regardless of role.
func (g *Guard) CanCreateMessage(identity auth.Identity, isParticipant bool) bool {
	if identity.Anonymous || !isParticipant {
		return false
	}
	return g.window.Contains(g.now())
}

// CanUpdateMessage allows only the original sender to edit.
func (g *Guard) CanUpdateMessage(identity auth.Identity, isParticipant, isSender bool) bool {
	return !identity.Anonymous && isParticipant && isSender
}

// CanDelete allows participants to delete their own content; deleting other
// users' content additionally requires an elevated role.
func (g *Guard) CanDelete(identity auth.Identity, isParticipant, isOwner bool) bool {
	if identity.Anonymous || !isParticipant {
		return false
	}
	if isOwner {
		return true
	}
	return identity.User.Elevated()
}

// Window exposes the configured creation window for error payloads.
func (g *Guard) Window() TimeWindow {
	return g.window
}
