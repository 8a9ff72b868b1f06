package models

// Message types sent from the worker to connected clients.
const (
	MsgPushReceived             = "PUSH_RECEIVED"
	MsgSWActivated              = "SW_ACTIVATED"
	MsgHospitalization          = "HOSPITALIZATION_NOTIFICATION"
	MsgNavigateHospitalization  = "NAVIGATE_TO_HOSPITALIZATION"
	MsgCloseNotificationForward = "CLOSE_NOTIFICATION"
)

// Message types sent from clients to the worker.
const (
	MsgShowNotification      = "SHOW_NOTIFICATION"
	MsgCloseNotification     = "CLOSE_NOTIFICATION"
	MsgCloseAllNotifications = "CLOSE_ALL_NOTIFICATIONS"
	MsgTestPush              = "TEST_PUSH"
	MsgNotificationClick     = "NOTIFICATION_CLICK"
)

// ClientMessage is the unit of the worker/client coordination protocol in
// both directions. Data is type-dependent and intentionally loose.
type ClientMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}
