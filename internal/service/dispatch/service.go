// Package dispatch pushes validated messages through the session transport,
// one at a time. Bulk runs are paced to stay under the network's throttling
// radar and isolate per-item failures.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"

	"br.com.tavares.disparo/internal/model"
	"br.com.tavares.disparo/internal/transport"
	"br.com.tavares.disparo/pkg/phone"
)

type Config interface {
	MessageDelay() time.Duration
}

type Session interface {
	Transport() (transport.Client, error)
}

type RunLog interface {
	Record(run *model.DispatchRun) error
}

type service struct {
	config  Config
	session Session
	plan    phone.Plan
	runlog  RunLog

	// inflight enforces one bulk run at a time; interleaved runs would
	// destroy each other's pacing and ordering.
	inflight chan struct{}
}

// New builds a dispatcher. runlog may be nil to disable run auditing.
func New(config Config, session Session, plan phone.Plan, runlog RunLog) *service {
	return &service{
		config:   config,
		session:  session,
		plan:     plan,
		runlog:   runlog,
		inflight: make(chan struct{}, 1),
	}
}

// Dispatch sends every message strictly in input order and returns one
// result per input, in the same order. A single item failing never stops
// the rest of the batch. If the whole session is down before the first
// send, the call fails as a unit with ErrorSessionNotReady instead.
//
// Cancelling ctx between items returns the partial result built so far;
// items not attempted are omitted, not marked failed.
func (s *service) Dispatch(ctx context.Context, messages []model.OutboundMessage) (*model.DispatchResult, error) {
	if _, err := s.session.Transport(); err != nil {
		return nil, err
	}

	select {
	case s.inflight <- struct{}{}:
	default:
		return nil, model.ErrorDispatchInProgress
	}
	defer func() { <-s.inflight }()

	result := &model.DispatchResult{
		ID:        model.CreateID(),
		Results:   make([]model.ItemResult, 0, len(messages)),
		StartedAt: time.Now().UTC(),
	}

	for i, msg := range messages {
		if i > 0 {
			// Pace between items, never after the last one. Cancellation
			// is only honored here, between items.
			select {
			case <-ctx.Done():
				log.Warnf("bulk dispatch %s cancelled after %d of %d items", result.ID, i, len(messages))
				return s.finish(result), nil
			case <-time.After(s.config.MessageDelay()):
			}
		}

		item := model.ItemResult{Number: msg.Number, Timestamp: time.Now().UTC()}
		id, err := s.send(ctx, msg.Number, msg.Text)
		if err != nil {
			log.Errorf("sending to %s: %v", msg.Number, err)
			item.Status = model.ItemStatusError
			item.Error = err.Error()
		} else {
			item.Status = model.ItemStatusSent
			item.MessageID = id
		}
		result.Results = append(result.Results, item)
	}

	return s.finish(result), nil
}

// SendOne is the single-message path: same normalize, reachability check
// and send as a bulk item, without the pacing.
func (s *service) SendOne(ctx context.Context, number string, text string) (model.MessageID, error) {
	return s.send(ctx, number, text)
}

func (s *service) send(ctx context.Context, number string, text string) (model.MessageID, error) {
	client, err := s.session.Transport()
	if err != nil {
		return "", err
	}

	address := s.plan.Normalize(number)

	jid, reachable, err := client.IsOnNetwork(ctx, address)
	if err != nil {
		return "", fmt.Errorf("checking number: %w", err)
	}
	if !reachable {
		return "", model.ErrorNumberNotOnNetwork
	}

	id, err := client.Send(ctx, jid, text)
	if err != nil {
		return "", fmt.Errorf("sending message: %w", err)
	}

	log.Infof("message %s sent to %s", id, number)
	return model.MessageID(id), nil
}

func (s *service) finish(result *model.DispatchResult) *model.DispatchResult {
	result.FinishedAt = time.Now().UTC()
	for _, item := range result.Results {
		result.Summary.Total++
		if item.Status == model.ItemStatusSent {
			result.Summary.Sent++
		} else {
			result.Summary.Errors++
		}
	}

	if s.runlog != nil {
		run := &model.DispatchRun{
			ID:         result.ID,
			StartedAt:  result.StartedAt,
			FinishedAt: result.FinishedAt,
			Total:      result.Summary.Total,
			Sent:       result.Summary.Sent,
			Errors:     result.Summary.Errors,
		}
		if err := s.runlog.Record(run); err != nil {
			log.Errorf("recording dispatch run: %v", err)
		}
	}

	return result
}
