package delivery

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/sousei-dev/push-service/internal/models"
)

// wireNotification mirrors the optional nested "notification" sub-object
// some backend senders wrap their fields in.
type wireNotification struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	Icon               string `json:"icon"`
	Badge              string `json:"badge"`
	Vibrate            []int  `json:"vibrate"`
	RequireInteraction *bool  `json:"requireInteraction"`
}

// wirePayload is the tolerant decode target for whatever arrives on the
// wire. Every field is optional; no schema is enforced by the sender.
type wirePayload struct {
	Title              string            `json:"title"`
	Body               string            `json:"body"`
	Icon               string            `json:"icon"`
	Badge              string            `json:"badge"`
	Tag                string            `json:"tag"`
	Vibrate            []int             `json:"vibrate"`
	RequireInteraction *bool             `json:"requireInteraction"`
	Data               map[string]any    `json:"data"`
	Notification       *wireNotification `json:"notification"`
}

func (p *wirePayload) nested() wireNotification {
	if p.Notification == nil {
		return wireNotification{}
	}
	return *p.Notification
}

// stringField describes where one string field of the normalized
// notification comes from: candidate sources in priority order, then a
// fixed fallback. Keeping the precedence in a table makes the order
// testable on its own instead of being scattered across expressions.
type stringField struct {
	sources  []func(p *wirePayload) string
	fallback string
	assign   func(n *models.Notification, v string)
}

var stringFields = []stringField{
	{
		sources: []func(p *wirePayload) string{
			func(p *wirePayload) string { return p.nested().Title },
			func(p *wirePayload) string { return p.Title },
		},
		fallback: models.DefaultTitle,
		assign:   func(n *models.Notification, v string) { n.Title = v },
	},
	{
		sources: []func(p *wirePayload) string{
			func(p *wirePayload) string { return p.nested().Body },
			func(p *wirePayload) string { return p.Body },
		},
		fallback: models.DefaultBody,
		assign:   func(n *models.Notification, v string) { n.Body = v },
	},
	{
		sources: []func(p *wirePayload) string{
			func(p *wirePayload) string { return p.nested().Icon },
			func(p *wirePayload) string { return p.Icon },
		},
		fallback: models.DefaultIcon,
		assign:   func(n *models.Notification, v string) { n.Icon = v },
	},
	{
		sources: []func(p *wirePayload) string{
			func(p *wirePayload) string { return p.nested().Badge },
			func(p *wirePayload) string { return p.Badge },
		},
		fallback: models.DefaultBadge,
		assign:   func(n *models.Notification, v string) { n.Badge = v },
	},
}

func (f stringField) resolve(p *wirePayload) string {
	for _, src := range f.sources {
		if v := src(p); v != "" {
			return v
		}
	}
	return f.fallback
}

// decodePayload turns the raw push blob into a wirePayload. It never
// fails: malformed JSON degrades to a plain-text wrap, and unusable bytes
// degrade to the empty payload, which normalizes to all defaults.
func decodePayload(raw []byte) wirePayload {
	if len(raw) == 0 {
		return wirePayload{}
	}

	var p wirePayload
	if err := json.Unmarshal(raw, &p); err == nil {
		return p
	}

	if utf8.Valid(raw) {
		return wirePayload{Title: models.DefaultTitle, Body: string(raw)}
	}
	return wirePayload{}
}

// Normalize produces a fully populated Notification from an arbitrary
// push payload. Nested notification.* fields win over top-level fields,
// which win over the hardcoded defaults. Hospitalization events get the
// urgent treatment: dedicated tag, stronger vibration, forced interaction
// and a "view details" action instead of the generic set.
func Normalize(raw []byte) models.Notification {
	p := decodePayload(raw)

	var n models.Notification
	for _, f := range stringFields {
		f.assign(&n, f.resolve(&p))
	}

	n.Vibrate = firstVibration(p.nested().Vibrate, p.Vibrate, models.DefaultVibration)
	n.RequireInteraction = firstBool(p.nested().RequireInteraction, p.RequireInteraction)

	n.Data = p.Data
	if n.Data == nil {
		n.Data = map[string]any{}
	}

	n.Tag = models.DefaultTag
	if p.Tag != "" {
		n.Tag = p.Tag
	}
	if t, ok := n.Data["type"].(string); ok && t != "" {
		n.Tag = t
	}

	n.Actions = []models.Action{
		{Action: models.ActionOpen, Title: "開く", Icon: models.DefaultIcon},
		{Action: models.ActionClose, Title: "閉じる", Icon: models.DefaultIcon},
	}

	if n.IsHospitalization() {
		n.Tag = models.HospitalizationTag
		n.Vibrate = models.UrgentVibration
		n.RequireInteraction = true
		n.Actions = []models.Action{
			{Action: models.ActionViewDetails, Title: "詳細を見る", Icon: models.DefaultIcon},
			{Action: models.ActionClose, Title: "閉じる", Icon: models.DefaultIcon},
		}
	}

	return n
}

func firstVibration(candidates ...[]int) []int {
	for _, c := range candidates {
		if len(c) > 0 {
			return c
		}
	}
	return models.DefaultVibration
}

func firstBool(candidates ...*bool) bool {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return false
}

// unreadCount extracts the application-wide unread counter when the
// payload carries one.
func unreadCount(n *models.Notification) (int, bool) {
	for _, key := range []string{"unread_count", "badge_count"} {
		if v, ok := n.Data[key]; ok {
			if f, ok := v.(float64); ok && f >= 0 {
				return int(f), true
			}
		}
	}
	return 0, false
}
