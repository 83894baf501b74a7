package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Cypherspark/sms-autoresponder/internal/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sourceNumber = "+15559990000"

// --- fakes ---

type memRegistry struct {
	mu        sync.Mutex
	byKeyword map[string]core.Campaign
	err       error
}

func newMemRegistry() *memRegistry {
	return &memRegistry{byKeyword: map[string]core.Campaign{}}
}

func (r *memRegistry) add(t *testing.T, keyword, reply string) core.Campaign {
	t.Helper()
	c := core.Campaign{
		ID:              uuid.New(),
		Name:            "campaign " + keyword,
		Keyword:         core.NormalizeKeyword(keyword),
		ResponseMessage: reply,
		OwnerID:         "owner-1",
		CreatedAt:       time.Now().UTC(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKeyword[c.Keyword] = c
	return c
}

func (r *memRegistry) FindByKeyword(_ context.Context, rawText string) (*core.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.byKeyword[core.NormalizeKeyword(rawText)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

type memLog struct {
	mu      sync.Mutex
	entries []core.MessageLogEntry
	err     error
}

func (l *memLog) Record(_ context.Context, in core.NewLogEntry) (*core.MessageLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	e := core.MessageLogEntry{
		ID:         uuid.New(),
		CampaignID: in.CampaignID,
		FromNumber: in.FromNumber,
		ToNumber:   in.ToNumber,
		Message:    in.Message,
		Status:     in.Status,
		SentAt:     time.Now().UTC(),
	}
	if in.ProviderMessageID != "" {
		e.ProviderMessageID = &in.ProviderMessageID
	}
	if in.Error != "" {
		e.Error = &in.Error
	}
	l.entries = append(l.entries, e)
	return &e, nil
}

func (l *memLog) all() []core.MessageLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.MessageLogEntry(nil), l.entries...)
}

type mockCarrier struct {
	mock.Mock
}

func (m *mockCarrier) Send(ctx context.Context, to, from, body string) (string, error) {
	args := m.Called(ctx, to, from, body)
	return args.String(0), args.Error(1)
}

func newDispatcher(reg *memRegistry, log *memLog, c core.Carrier) *core.Dispatcher {
	return core.NewDispatcher(reg, log, c, core.DispatcherOptions{
		SourceNumber: sourceNumber,
		SendTimeout:  200 * time.Millisecond,
		StoreTimeout: 200 * time.Millisecond,
	}, zap.NewNop())
}

// --- tests ---

func TestDispatch_JoinEndToEnd(t *testing.T) {
	reg, log := newMemRegistry(), &memLog{}
	camp := reg.add(t, "JOIN", "Welcome aboard!")

	carrier := &mockCarrier{}
	carrier.On("Send", mock.Anything, "+15551234567", sourceNumber, "Welcome aboard!").
		Return("SM123", nil).Once()

	res := newDispatcher(reg, log, carrier).Dispatch(context.Background(), core.InboundMessage{
		Body: " join ",
		From: "+15551234567",
	})

	carrier.AssertExpectations(t)
	require.Equal(t, core.OutcomeSent, res.Outcome)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Entry)

	entries := log.all()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, camp.ID, e.CampaignID)
	assert.Equal(t, core.StatusSent, e.Status)
	assert.Equal(t, "Welcome aboard!", e.Message)
	assert.Equal(t, "+15551234567", e.FromNumber)
	assert.Equal(t, sourceNumber, e.ToNumber)
	require.NotNil(t, e.ProviderMessageID)
	assert.Equal(t, "SM123", *e.ProviderMessageID)
	assert.Nil(t, e.Error)
}

func TestDispatch_NoMatch(t *testing.T) {
	reg, log := newMemRegistry(), &memLog{}
	reg.add(t, "sale", "Half price today")
	carrier := &mockCarrier{}

	d := newDispatcher(reg, log, carrier)
	for _, body := range []string{"unknown-word", "sale please", "sal", "", "   "} {
		res := d.Dispatch(context.Background(), core.InboundMessage{Body: body, From: "+15550000000"})
		assert.Equal(t, core.OutcomeUnmatched, res.Outcome, "body %q", body)
		assert.Nil(t, res.Campaign)
		assert.NoError(t, res.Err)
	}

	carrier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, log.all())
}

func TestDispatch_NoMatchLogsAtInfo(t *testing.T) {
	reg, log := newMemRegistry(), &memLog{}
	d, logs := observedDispatcher(reg, log, &mockCarrier{})

	res := d.Dispatch(context.Background(), inbound("nothing"))
	assert.Equal(t, core.OutcomeUnmatched, res.Outcome)

	entries := logs.FilterMessage("no campaign for keyword").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "nothing", entries[0].ContextMap()["keyword"])
}

func TestDispatch_CarrierFailureRecordsFailed(t *testing.T) {
	reg, log := newMemRegistry(), &memLog{}
	reg.add(t, "promo", "Use code SAVE10")

	carrier := &mockCarrier{}
	carrier.On("Send", mock.Anything, "+15552220000", sourceNumber, "Use code SAVE10").
		Return("", errors.New("gateway unavailable")).Once()

	res := newDispatcher(reg, log, carrier).Dispatch(context.Background(), core.InboundMessage{
		Body: "PROMO",
		From: "+15552220000",
	})

	require.Equal(t, core.OutcomeFailed, res.Outcome)
	require.ErrorIs(t, res.Err, core.ErrTransport)
	var te *core.TransportError
	require.ErrorAs(t, res.Err, &te)

	entries := log.all()
	require.Len(t, entries, 1)
	assert.Equal(t, core.StatusFailed, entries[0].Status)
	assert.Equal(t, "Use code SAVE10", entries[0].Message)
	assert.Nil(t, entries[0].ProviderMessageID)
	require.NotNil(t, entries[0].Error)
	assert.Contains(t, *entries[0].Error, "gateway unavailable")
}

type blockingCarrier struct{}

func (blockingCarrier) Send(ctx context.Context, _, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestDispatch_SendTimeoutIsTransportError(t *testing.T) {
	reg, log := newMemRegistry(), &memLog{}
	reg.add(t, "slow", "Eventually")

	res := core.NewDispatcher(reg, log, blockingCarrier{}, core.DispatcherOptions{
		SourceNumber: sourceNumber,
		SendTimeout:  20 * time.Millisecond,
	}, nil).Dispatch(context.Background(), core.InboundMessage{Body: "slow", From: "+1"})

	require.Equal(t, core.OutcomeFailed, res.Outcome)
	require.ErrorIs(t, res.Err, core.ErrTransport)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	require.Len(t, log.all(), 1)
	assert.Equal(t, core.StatusFailed, log.all()[0].Status)
}

func TestDispatch_CanceledRequestStillRecords(t *testing.T) {
	reg, log := newMemRegistry(), &memLog{}
	reg.add(t, "join", "Welcome aboard!")

	carrier := &mockCarrier{}
	carrier.On("Send", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }),
		"+15551234567", sourceNumber, "Welcome aboard!").Return("SM1", nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newDispatcher(reg, log, carrier).Dispatch(ctx, core.InboundMessage{Body: "join", From: "+15551234567"})

	carrier.AssertExpectations(t)
	require.Equal(t, core.OutcomeSent, res.Outcome)
	require.Len(t, log.all(), 1)
}

func TestDispatch_LookupFailure(t *testing.T) {
	reg, log := newMemRegistry(), &memLog{}
	reg.err = &core.StorageError{Op: "find campaign", Err: errors.New("connection refused")}
	carrier := &mockCarrier{}

	d, logs := observedDispatcher(reg, log, carrier)
	res := d.Dispatch(context.Background(), inbound("join"))

	assert.Equal(t, core.OutcomeLookupFailed, res.Outcome)
	assert.Error(t, res.Err)
	carrier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, log.all())
	assert.Equal(t, 1, logs.FilterMessage("campaign lookup failed, inbound message dropped").Len())
}

func TestDispatch_LogWriteFailureAfterSend(t *testing.T) {
	reg, log := newMemRegistry(), &memLog{}
	reg.add(t, "join", "Welcome aboard!")
	log.err = &core.StorageError{Op: "record message", Err: errors.New("disk full")}

	carrier := &mockCarrier{}
	carrier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("SM9", nil).Once()

	d, logs := observedDispatcher(reg, log, carrier)
	res := d.Dispatch(context.Background(), inbound("join"))

	carrier.AssertExpectations(t)
	assert.Equal(t, core.OutcomeSent, res.Outcome)
	assert.Nil(t, res.Entry)
	assert.ErrorIs(t, res.Err, core.ErrStorage)

	entries := logs.FilterMessage("message log write failed, audit trail incomplete").All()
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].ContextMap()["reply_delivered"])
}

func TestDispatch_ConcurrentEvents(t *testing.T) {
	reg, log := newMemRegistry(), &memLog{}
	reg.add(t, "join", "Welcome aboard!")
	reg.add(t, "stop", "You are unsubscribed")

	carrier := &mockCarrier{}
	carrier.On("Send", mock.Anything, mock.Anything, sourceNumber, mock.Anything).Return("SM", nil)

	d := newDispatcher(reg, log, carrier)
	bodies := []string{"join", "STOP", "nope", " Join "}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.Dispatch(context.Background(), core.InboundMessage{Body: bodies[i%len(bodies)], From: "+1555000"})
		}(i)
	}
	wg.Wait()

	assert.Len(t, log.all(), 30)
	carrier.AssertNumberOfCalls(t, "Send", 30)
}

func inbound(body string) core.InboundMessage {
	return core.InboundMessage{Body: body, From: "+15551234567", ProviderMessageID: "SMin"}
}

func observedDispatcher(reg *memRegistry, log *memLog, c core.Carrier) (*core.Dispatcher, *observer.ObservedLogs) {
	zc, logs := observer.New(zap.InfoLevel)
	d := core.NewDispatcher(reg, log, c, core.DispatcherOptions{SourceNumber: sourceNumber}, zap.New(zc))
	return d, logs
}
