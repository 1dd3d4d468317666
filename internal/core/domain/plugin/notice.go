package plugindomain

const (
	UpdatesMessage = "The following plugins have updates:"
	ReloadMessage  = "To finish updating you need to reload."
)

// Notice is a snapshot of the notification state handed to presenters.
type Notice struct {
	Outdated   []string `json:"outdated"`
	Downloaded []string `json:"downloaded"`
}

// Visible reports whether the notice surface should be shown at all
func (n Notice) Visible() bool {
	return len(n.Outdated) > 0 || len(n.Downloaded) > 0
}

// ReloadVisible reports whether the reload affordance should be shown
func (n Notice) ReloadVisible() bool {
	return len(n.Downloaded) > 0
}

// Message is the headline for the notice surface. Empty when not visible.
func (n Notice) Message() string {
	switch {
	case len(n.Outdated) > 0:
		return UpdatesMessage
	case len(n.Downloaded) > 0:
		return ReloadMessage
	default:
		return ""
	}
}
