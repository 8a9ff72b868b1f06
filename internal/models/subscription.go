package models

import "time"

// PushSubscription is a device-and-browser specific push endpoint plus its
// key material, persisted per user. The endpoint is unique per installation
// and doubles as the primary key.
type PushSubscription struct {
	Endpoint       string `gorm:"primaryKey"`
	UserID         string `gorm:"index;not null"`
	P256dh         string `gorm:"column:p256dh;not null"`
	Auth           string `gorm:"not null"`
	ExpirationTime *time.Time
	UserAgent      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SubscriptionKeys is the wire form of the two authentication secrets.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscriptionPayload is the subscription object as serialized by the
// browser's PushManager and posted to /push/save-subscription.
type SubscriptionPayload struct {
	Endpoint       string           `json:"endpoint"`
	Keys           SubscriptionKeys `json:"keys"`
	ExpirationTime *int64           `json:"expirationTime"` // epoch milliseconds, usually null
}

// SupportReport is the client's self-reported push capability, used for
// diagnostics and for annotating known-restrictive platforms.
type SupportReport struct {
	ServiceWorker bool   `json:"serviceWorker"`
	PushManager   bool   `json:"pushManager"`
	UserAgent     string `json:"userAgent"`
	Standalone    bool   `json:"standalone"`
	Permission    string `json:"permission"` // "granted" | "denied" | "default"
	// GestureBlocked is set when the permission prompt was rejected for
	// lack of a user gesture (iOS Safari enforces this).
	GestureBlocked bool `json:"gestureBlocked"`
}
