package models

// Default values applied when the wire payload omits a field. The strings
// match what the SOUSEI frontend displays for an empty push.
const (
	DefaultTitle = "SOUSEI システム"
	DefaultBody  = "新しいメッセージが届きました"
	DefaultIcon  = "/pwa-192x192.png"
	DefaultBadge = "/pwa-192x192.png"
	DefaultTag   = "general-notification"
)

// TypeHospitalization marks urgent care events. Notifications of this type
// demand interaction and carry their own tag and action set.
const TypeHospitalization = "hospitalization_notification"

// HospitalizationTag groups hospitalization notifications so a newer one
// replaces an older undismissed one instead of stacking.
const HospitalizationTag = "hospitalization"

// DefaultVibration is the generic vibration pattern in milliseconds.
var DefaultVibration = []int{200, 100, 200}

// UrgentVibration is the stronger pattern applied to hospitalization events.
var UrgentVibration = []int{300, 100, 300, 100, 300}

// Action is one tappable button attached to a displayed notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

const (
	ActionOpen        = "open"
	ActionClose       = "close"
	ActionViewDetails = "view-details"
)

// Notification is the fully populated, display-ready form of a push
// payload. Every field has a value regardless of what arrived on the wire;
// it lives only for the duration of one push event.
type Notification struct {
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon"`
	Badge              string         `json:"badge"`
	Tag                string         `json:"tag"`
	Data               map[string]any `json:"data"`
	Vibrate            []int          `json:"vibrate"`
	RequireInteraction bool           `json:"requireInteraction"`
	Actions            []Action       `json:"actions,omitempty"`
}

// Type returns the domain subtype carried in the payload data, if any.
func (n *Notification) Type() string {
	if n.Data == nil {
		return ""
	}
	if t, ok := n.Data["type"].(string); ok {
		return t
	}
	return ""
}

// IsHospitalization reports whether this notification is an urgent
// hospitalization event.
func (n *Notification) IsHospitalization() bool {
	return n.Type() == TypeHospitalization
}
