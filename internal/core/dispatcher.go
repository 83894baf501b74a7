package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Cypherspark/sms-autoresponder/internal/metrics"
)

type Outcome string

const (
	OutcomeUnmatched    Outcome = "unmatched"
	OutcomeSent         Outcome = "sent"
	OutcomeFailed       Outcome = "failed"
	OutcomeLookupFailed Outcome = "lookup_failed"
)

// Result describes how one inbound event was handled. Every Result means
// the event is acknowledged.
type Result struct {
	Outcome  Outcome
	Campaign *Campaign
	// Entry is nil when nothing was written, including a failed log write.
	Entry *MessageLogEntry
	Err   error
}

type DispatcherOptions struct {
	SourceNumber string        // number replies are sent from
	SendTimeout  time.Duration // bound on one carrier call
	StoreTimeout time.Duration // bound on lookup and log write
}

// Dispatcher routes inbound messages to campaign replies. It holds no
// per-event state and is safe for concurrent use.
type Dispatcher struct {
	campaigns CampaignFinder
	log       Recorder
	carrier   Carrier
	opts      DispatcherOptions
	logger    *zap.Logger
}

func NewDispatcher(campaigns CampaignFinder, log Recorder, carrier Carrier, opts DispatcherOptions, logger *zap.Logger) *Dispatcher {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		campaigns: campaigns,
		log:       log,
		carrier:   carrier,
		opts:      opts,
		logger:    logger.With(zap.String("component", "dispatcher")),
	}
}

// Dispatch handles one inbound event: normalize, look up, send, record.
// It never fails; problems are reported through Result, the message log
// and operator logs.
func (d *Dispatcher) Dispatch(ctx context.Context, in InboundMessage) Result {
	// The webhook caller may hang up; a reply that went out must still be
	// recorded.
	ctx = context.WithoutCancel(ctx)

	log := d.logger.With(
		zap.String("from", in.From),
		zap.String("provider_message_id", in.ProviderMessageID),
	)

	keyword := NormalizeKeyword(in.Body)
	if keyword == "" {
		metrics.InboundMessages.WithLabelValues(string(OutcomeUnmatched)).Inc()
		log.Info("inbound message with empty body")
		return Result{Outcome: OutcomeUnmatched}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, d.opts.StoreTimeout)
	campaign, err := d.campaigns.FindByKeyword(lookupCtx, keyword)
	cancel()
	if err != nil {
		metrics.InboundMessages.WithLabelValues(string(OutcomeLookupFailed)).Inc()
		log.Error("campaign lookup failed, inbound message dropped",
			zap.String("keyword", keyword), zap.Error(err))
		return Result{Outcome: OutcomeLookupFailed, Err: err}
	}
	if campaign == nil {
		metrics.InboundMessages.WithLabelValues(string(OutcomeUnmatched)).Inc()
		log.Info("no campaign for keyword", zap.String("keyword", keyword))
		return Result{Outcome: OutcomeUnmatched}
	}
	log = log.With(zap.String("campaign_id", campaign.ID.String()), zap.String("keyword", campaign.Keyword))

	res := Result{Outcome: OutcomeSent, Campaign: campaign}
	entry := NewLogEntry{
		CampaignID: campaign.ID,
		FromNumber: in.From,
		ToNumber:   d.opts.SourceNumber,
		Message:    campaign.ResponseMessage,
		Status:     StatusSent,
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	start := time.Now()
	providerID, sendErr := d.carrier.Send(sendCtx, in.From, d.opts.SourceNumber, campaign.ResponseMessage)
	cancel()
	metrics.CarrierSendDuration.Observe(time.Since(start).Seconds())

	if sendErr != nil {
		sendErr = AsTransportError("", sendErr)
		entry.Status = StatusFailed
		entry.Error = sendErr.Error()
		res.Outcome = OutcomeFailed
		res.Err = sendErr
		metrics.CarrierSend.WithLabelValues(string(StatusFailed)).Inc()
		log.Warn("reply not delivered", zap.Error(sendErr))
	} else {
		entry.ProviderMessageID = providerID
		metrics.CarrierSend.WithLabelValues(string(StatusSent)).Inc()
		log.Info("reply sent", zap.String("carrier_message_id", providerID))
	}
	metrics.InboundMessages.WithLabelValues(string(res.Outcome)).Inc()

	writeCtx, cancel := context.WithTimeout(ctx, d.opts.StoreTimeout)
	defer cancel()
	written, err := d.log.Record(writeCtx, entry)
	if err != nil {
		metrics.MessageLogWriteFailures.Inc()
		log.Error("message log write failed, audit trail incomplete",
			zap.String("status", string(entry.Status)),
			zap.Bool("reply_delivered", sendErr == nil),
			zap.Error(err))
		res.Err = errors.Join(res.Err, err)
		return res
	}
	res.Entry = written
	return res
}
