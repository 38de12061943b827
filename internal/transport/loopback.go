package transport

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"
)

// Loopback returns a DialFn for a transport that never leaves the process.
// It walks the same lifecycle a real client does (pairing on first connect,
// credential rotation, per-message IDs) so the gateway can be exercised end
// to end in development without a network account.
func Loopback() DialFn {
	return func(creds Credentials, handler Handler) (Client, error) {
		if handler == nil {
			return nil, errors.New("loopback: nil event handler")
		}
		return &loopback{creds: creds, handler: handler}, nil
	}
}

type loopback struct {
	mu      sync.Mutex
	creds   Credentials
	handler Handler
	open    bool
}

func (l *loopback) Connect(ctx context.Context) error {
	go func() {
		if len(l.creds) == 0 {
			l.handler(Event{Kind: EventQRCode, QRCode: cuid2.Generate()})
			l.handler(Event{
				Kind:           EventCredentials,
				CredentialFile: "creds.json",
				CredentialData: []byte(`{"registered":true}`),
			})
		}
		l.mu.Lock()
		l.open = true
		l.mu.Unlock()
		l.handler(Event{Kind: EventConnected})
	}()
	return nil
}

func (l *loopback) Logout(ctx context.Context) error {
	l.mu.Lock()
	l.open = false
	l.mu.Unlock()
	return nil
}

func (l *loopback) IsOnNetwork(ctx context.Context, address string) (string, bool, error) {
	if !strings.Contains(address, "@") {
		return "", false, nil
	}
	return address, true, nil
}

func (l *loopback) Send(ctx context.Context, jid string, text string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return "", errors.New("connection is closed")
	}
	log.Debugf("loopback delivery to %s (%d bytes)", jid, len(text))
	return cuid2.Generate(), nil
}
