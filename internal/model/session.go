package model

import "time"

type SessionStatus string

const (
	StatusDisconnected SessionStatus = "disconnected"
	StatusConnecting   SessionStatus = "connecting"
	StatusWaitingQR    SessionStatus = "waiting_qr"
	StatusConnected    SessionStatus = "connected"
	StatusReconnecting SessionStatus = "reconnecting"
	StatusLoggedOut    SessionStatus = "logged_out"
)

// SessionInfo is a point-in-time snapshot of the session. QRCode is only
// populated while the session is waiting for the code to be scanned.
type SessionInfo struct {
	Connected bool          `json:"connected"`
	Status    SessionStatus `json:"status"`
	QRCode    string        `json:"qrCode,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
