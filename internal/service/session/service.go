// Package session owns the one WhatsApp session of the process: opening it,
// relaying transport lifecycle events into a status, recovering from
// involuntary disconnects and wiping credentials on operator request.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"br.com.tavares.disparo/internal/model"
	"br.com.tavares.disparo/internal/transport"
)

type Config interface {
	ReconnectDelay() time.Duration
}

type CredentialStore interface {
	Load() (transport.Credentials, error)
	Save(name string, data []byte) error
	Wipe() (int, error)
}

type service struct {
	config Config
	store  CredentialStore
	dial   transport.DialFn

	// mu serializes every state transition; apply is the only mutator and
	// always runs under it.
	mu        sync.Mutex
	status    model.SessionStatus
	qrCode    string
	client    transport.Client
	reconnect *time.Timer
}

func New(config Config, store CredentialStore, dial transport.DialFn) *service {
	return &service{
		config: config,
		store:  store,
		dial:   dial,
		status: model.StatusDisconnected,
	}
}

// Open starts connecting. It is a no-op when a connection attempt is already
// under way or established, and it does not wait for the handshake: the
// outcome arrives through transport events.
func (s *service) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open(ctx)
}

// open does the actual dialing. Callers hold s.mu.
func (s *service) open(ctx context.Context) error {
	switch s.status {
	case model.StatusConnecting, model.StatusWaitingQR, model.StatusConnected:
		return nil
	}

	s.stopReconnect()

	creds, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	client, err := s.dial(creds, s.handleEvent)
	if err != nil {
		return fmt.Errorf("creating transport client: %w", err)
	}

	s.client = client
	s.status = model.StatusConnecting
	s.qrCode = ""

	if err := client.Connect(ctx); err != nil {
		s.client = nil
		s.status = model.StatusDisconnected
		return fmt.Errorf("connecting: %w", err)
	}

	log.Infof("whatsapp session connecting")
	return nil
}

func (s *service) handleEvent(ev transport.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(ev)
}

// apply is the single state-transition function. Callers hold s.mu.
func (s *service) apply(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnected:
		s.status = model.StatusConnected
		s.qrCode = ""
		log.Infof("whatsapp session connected")

	case transport.EventQRCode:
		// A challenge arriving after the session is already up is stale
		// and must not downgrade the state.
		if s.status == model.StatusConnected {
			log.Warnf("ignoring stale pairing code")
			return
		}
		s.status = model.StatusWaitingQR
		s.qrCode = ev.QRCode
		log.Infof("pairing code received, scan it to authorize the session")

	case transport.EventCredentials:
		if err := s.store.Save(ev.CredentialFile, ev.CredentialData); err != nil {
			log.Errorf("persisting rotated credentials: %v", err)
		}

	case transport.EventClosed:
		if s.client == nil {
			// We initiated the close; the state is already settled.
			return
		}
		s.client = nil
		s.qrCode = ""
		if ev.Reason == transport.CloseLoggedOut {
			s.status = model.StatusLoggedOut
			log.Warnf("session logged out by the network, not reconnecting")
			return
		}
		s.status = model.StatusReconnecting
		delay := s.config.ReconnectDelay()
		log.Warnf("connection closed, reconnecting in %s", delay)
		// One retry per closure event. A failed retry is not rescheduled
		// here; the next closure event schedules its own.
		s.reconnect = time.AfterFunc(delay, s.retryOpen)
	}
}

// retryOpen runs the scheduled reconnect. It re-checks the state under the
// lock: an operator Close racing the timer wins, and the session stays down.
func (s *service) retryOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusReconnecting {
		return
	}
	if err := s.open(context.Background()); err != nil {
		log.Errorf("reconnecting: %v", err)
	}
}

// stopReconnect cancels a scheduled retry. Callers hold s.mu.
func (s *service) stopReconnect() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
}

// Close logs out and releases the transport handle. Credentials stay on
// disk. Calling it while already disconnected is a no-op.
func (s *service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// An explicit disconnect also cancels any retry scheduled by an
	// earlier involuntary closure; the session must stay down.
	s.stopReconnect()

	if s.client == nil {
		s.status = model.StatusDisconnected
		s.qrCode = ""
		return nil
	}

	client := s.client
	s.client = nil
	s.status = model.StatusDisconnected
	s.qrCode = ""

	if err := client.Logout(ctx); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	log.Infof("whatsapp session disconnected")
	return nil
}

// Wipe deletes all persisted credential material. The session must be
// closed first. Individual files that fail to delete are skipped, so the
// count returned can be lower than the number of files present.
func (s *service) Wipe() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil || (s.status != model.StatusDisconnected && s.status != model.StatusLoggedOut) {
		return 0, model.ErrorSessionActive
	}

	removed, err := s.store.Wipe()
	s.status = model.StatusDisconnected
	s.qrCode = ""
	if err != nil {
		return removed, fmt.Errorf("wiping credentials: %w", err)
	}
	return removed, nil
}

func (s *service) Status() model.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.SessionInfo{
		Connected: s.status == model.StatusConnected,
		Status:    s.status,
		QRCode:    s.qrCode,
		Timestamp: time.Now().UTC(),
	}
}

// Transport hands out the connected client, or ErrorSessionNotReady. Senders
// call this per message so a mid-batch disconnect fails fast instead of
// hanging on a dead handle.
func (s *service) Transport() (transport.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusConnected || s.client == nil {
		return nil, model.ErrorSessionNotReady
	}
	return s.client, nil
}
