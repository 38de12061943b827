package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"br.com.tavares.disparo/internal/model"
	"br.com.tavares.disparo/internal/transport"
	"br.com.tavares.disparo/pkg/phone"
)

type testConfig struct {
	delay time.Duration
}

func (c testConfig) MessageDelay() time.Duration { return c.delay }

type fakeClient struct {
	mu          sync.Mutex
	checks      []string
	sends       []string
	failSends   map[string]error
	unreachable map[string]bool
	onSend      func()
	nextID      int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		failSends:   map[string]error{},
		unreachable: map[string]bool{},
	}
}

func (c *fakeClient) Connect(ctx context.Context) error { return nil }
func (c *fakeClient) Logout(ctx context.Context) error  { return nil }

func (c *fakeClient) IsOnNetwork(ctx context.Context, address string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, address)
	if c.unreachable[address] {
		return "", false, nil
	}
	return address, true, nil
}

func (c *fakeClient) Send(ctx context.Context, jid string, text string) (string, error) {
	c.mu.Lock()
	c.sends = append(c.sends, jid)
	onSend := c.onSend
	err := c.failSends[jid]
	c.mu.Unlock()

	if onSend != nil {
		onSend()
	}
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return fmt.Sprintf("3EB0MSG%d", c.nextID), nil
}

func (c *fakeClient) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sends)
}

func (c *fakeClient) checkCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.checks)
}

type fakeSession struct {
	mu     sync.Mutex
	client transport.Client
	err    error
}

func (s *fakeSession) Transport() (transport.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.client, nil
}

func (s *fakeSession) disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = model.ErrorSessionNotReady
}

type fakeRunLog struct {
	mu   sync.Mutex
	runs []*model.DispatchRun
}

func (l *fakeRunLog) Record(run *model.DispatchRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, run)
	return nil
}

func newTestService(delay time.Duration, client *fakeClient) (*service, *fakeSession, *fakeRunLog) {
	session := &fakeSession{client: client}
	runlog := &fakeRunLog{}
	svc := New(testConfig{delay: delay}, session, phone.Default(), runlog)
	return svc, session, runlog
}

func messages(numbers ...string) []model.OutboundMessage {
	out := make([]model.OutboundMessage, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, model.OutboundMessage{Number: n, Text: "oi"})
	}
	return out
}

func TestDispatch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	t.Run("one result per item in input order", func(t *testing.T) {
		client := newFakeClient()
		svc, _, _ := newTestService(time.Millisecond, client)

		result, err := svc.Dispatch(ctx, messages("11911111111", "11922222222", "11933333333"))
		assert.Nil(err)
		assert.Len(result.Results, 3)
		assert.Equal("11911111111", result.Results[0].Number)
		assert.Equal("11922222222", result.Results[1].Number)
		assert.Equal("11933333333", result.Results[2].Number)
		assert.Equal(model.DispatchSummary{Total: 3, Sent: 3, Errors: 0}, result.Summary)
	})

	t.Run("a failed item never stops the rest", func(t *testing.T) {
		client := newFakeClient()
		client.failSends["5511922222222@s.whatsapp.net"] = errors.New("stream error")
		svc, _, _ := newTestService(time.Millisecond, client)

		result, err := svc.Dispatch(ctx, messages("11911111111", "11922222222", "11933333333"))
		assert.Nil(err)
		assert.Len(result.Results, 3)
		assert.Equal(model.ItemStatusSent, result.Results[0].Status)
		assert.Equal(model.ItemStatusError, result.Results[1].Status)
		assert.Contains(result.Results[1].Error, "stream error")
		assert.Equal(model.ItemStatusSent, result.Results[2].Status)
		assert.Equal(model.DispatchSummary{Total: 3, Sent: 2, Errors: 1}, result.Summary)
	})

	t.Run("unreachable number fails that item only", func(t *testing.T) {
		client := newFakeClient()
		client.unreachable["5511922222222@s.whatsapp.net"] = true
		svc, _, _ := newTestService(time.Millisecond, client)

		result, err := svc.Dispatch(ctx, messages("11911111111", "11922222222", "11933333333"))
		assert.Nil(err)
		assert.Equal(model.ItemStatusError, result.Results[1].Status)
		assert.Contains(result.Results[1].Error, "not registered")
		assert.Equal(2, client.sendCount())
		assert.Equal(3, client.checkCount())
	})

	t.Run("fails as a unit when the session is down", func(t *testing.T) {
		client := newFakeClient()
		svc, session, _ := newTestService(time.Millisecond, client)
		session.disconnect()

		_, err := svc.Dispatch(ctx, messages("11911111111"))
		assert.ErrorIs(err, model.ErrorSessionNotReady)
		assert.Equal(0, client.checkCount())
		assert.Equal(0, client.sendCount())
	})

	t.Run("mid batch disconnect fails fast per remaining item", func(t *testing.T) {
		client := newFakeClient()
		svc, session, _ := newTestService(time.Millisecond, client)
		client.onSend = session.disconnect

		result, err := svc.Dispatch(ctx, messages("11911111111", "11922222222", "11933333333"))
		assert.Nil(err)
		assert.Len(result.Results, 3)
		assert.Equal(model.ItemStatusSent, result.Results[0].Status)
		assert.Equal(model.ItemStatusError, result.Results[1].Status)
		assert.Contains(result.Results[1].Error, "not connected")
		assert.Equal(model.ItemStatusError, result.Results[2].Status)
		assert.Equal(1, client.sendCount())
	})

	t.Run("records a run summary", func(t *testing.T) {
		client := newFakeClient()
		client.unreachable["5511922222222@s.whatsapp.net"] = true
		svc, _, runlog := newTestService(time.Millisecond, client)

		result, err := svc.Dispatch(ctx, messages("11911111111", "11922222222"))
		assert.Nil(err)
		assert.Len(runlog.runs, 1)
		assert.Equal(result.ID, runlog.runs[0].ID)
		assert.Equal(2, runlog.runs[0].Total)
		assert.Equal(1, runlog.runs[0].Sent)
		assert.Equal(1, runlog.runs[0].Errors)
	})
}

func TestDispatchPacing(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	delay := 100 * time.Millisecond

	t.Run("pauses between items but not after the last", func(t *testing.T) {
		client := newFakeClient()
		svc, _, _ := newTestService(delay, client)

		start := time.Now()
		result, err := svc.Dispatch(ctx, messages("11911111111", "11922222222", "11933333333"))
		elapsed := time.Since(start)

		assert.Nil(err)
		assert.Len(result.Results, 3)
		assert.GreaterOrEqual(elapsed, 2*delay)
		assert.Less(elapsed, 3*delay)
	})

	t.Run("single item is not delayed", func(t *testing.T) {
		client := newFakeClient()
		svc, _, _ := newTestService(delay, client)

		start := time.Now()
		_, err := svc.Dispatch(ctx, messages("11911111111"))
		assert.Nil(err)
		assert.Less(time.Since(start), delay)
	})
}

func TestDispatchCancellation(t *testing.T) {
	assert := assert.New(t)

	client := newFakeClient()
	svc, _, _ := newTestService(time.Minute, client)

	ctx, cancel := context.WithCancel(context.Background())
	client.onSend = cancel

	result, err := svc.Dispatch(ctx, messages("11911111111", "11922222222", "11933333333"))
	assert.Nil(err)
	// the item in flight finishes; the rest are omitted, not failed
	assert.Len(result.Results, 1)
	assert.Equal(model.ItemStatusSent, result.Results[0].Status)
	assert.Equal(model.DispatchSummary{Total: 1, Sent: 1, Errors: 0}, result.Summary)
}

func TestDispatchMutualExclusion(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	client := newFakeClient()
	svc, _, _ := newTestService(time.Millisecond, client)

	started := make(chan struct{})
	release := make(chan struct{})
	client.onSend = func() {
		close(started)
		<-release
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Dispatch(ctx, messages("11911111111"))
		assert.Nil(err)
	}()

	<-started
	_, err := svc.Dispatch(ctx, messages("11922222222"))
	assert.ErrorIs(err, model.ErrorDispatchInProgress)

	close(release)
	<-done

	// and a new run is accepted once the first finishes
	client.onSend = nil
	_, err = svc.Dispatch(ctx, messages("11933333333"))
	assert.Nil(err)
}

func TestSendOne(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	t.Run("sends without pacing", func(t *testing.T) {
		client := newFakeClient()
		svc, _, _ := newTestService(time.Minute, client)

		start := time.Now()
		id, err := svc.SendOne(ctx, "11987654321", "oi")
		assert.Nil(err)
		assert.NotEmpty(id)
		assert.Less(time.Since(start), time.Second)
		assert.Equal([]string{"5511987654321@s.whatsapp.net"}, client.sends)
	})

	t.Run("unreachable number", func(t *testing.T) {
		client := newFakeClient()
		client.unreachable["5511987654321@s.whatsapp.net"] = true
		svc, _, _ := newTestService(time.Millisecond, client)

		_, err := svc.SendOne(ctx, "11987654321", "oi")
		assert.ErrorIs(err, model.ErrorNumberNotOnNetwork)
	})

	t.Run("session not ready", func(t *testing.T) {
		client := newFakeClient()
		svc, session, _ := newTestService(time.Millisecond, client)
		session.disconnect()

		_, err := svc.SendOne(ctx, "11987654321", "oi")
		assert.ErrorIs(err, model.ErrorSessionNotReady)
	})
}
