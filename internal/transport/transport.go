// Package transport is the boundary to the underlying messaging-network
// client. The protocol itself lives behind the Client interface; the session
// service only consumes lifecycle events and issues sends.
package transport

import "context"

// Credentials is the on-disk authentication state handed to a dial, keyed by
// file name within the session directory.
type Credentials map[string][]byte

type EventKind int

const (
	// EventConnected fires once the session is authenticated and open.
	EventConnected EventKind = iota
	// EventQRCode carries a pairing code the operator must scan.
	EventQRCode
	// EventCredentials carries rotated credential material to persist.
	EventCredentials
	// EventClosed fires when the connection drops, with a reason.
	EventClosed
)

type CloseReason int

const (
	CloseUnknown CloseReason = iota
	CloseConnectionLost
	CloseLoggedOut
)

// Event is the single lifecycle notification type. Which fields are set
// depends on Kind.
type Event struct {
	Kind           EventKind
	QRCode         string
	Reason         CloseReason
	CredentialFile string
	CredentialData []byte
}

// Handler receives lifecycle events. Implementations of Client must deliver
// events from their own goroutine, never from inside a Client method call.
type Handler func(Event)

type Client interface {
	// Connect starts the handshake and returns without waiting for it to
	// complete; progress arrives through the event handler.
	Connect(ctx context.Context) error
	// Logout terminates the session on the network side.
	Logout(ctx context.Context) error
	// IsOnNetwork reports whether an address is reachable and returns the
	// canonical JID sends should target.
	IsOnNetwork(ctx context.Context, address string) (string, bool, error)
	// Send delivers one text message and returns the network message ID.
	Send(ctx context.Context, jid string, text string) (string, error)
}

// DialFn builds a client bound to the given credentials, wired to deliver
// lifecycle events to handler.
type DialFn func(creds Credentials, handler Handler) (Client, error)
