// Package carrier holds the outbound SMS gateways.
package carrier

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Cypherspark/sms-autoresponder/internal/config"
	"github.com/Cypherspark/sms-autoresponder/internal/core"
)

// New builds the configured carrier behind the process-wide rate limit.
func New(cfg *config.Config, logger *zap.Logger) (core.Carrier, error) {
	var c core.Carrier
	switch cfg.CarrierDriver {
	case config.CarrierTwilio:
		c = NewTwilio(TwilioConfig{
			AccountSID: cfg.TwilioSID,
			AuthToken:  cfg.TwilioToken,
			BaseURL:    cfg.TwilioBaseURL,
		}, logger)
	case config.CarrierSimulated:
		c = NewSimulated(50*time.Millisecond, 0.03)
	default:
		return nil, fmt.Errorf("unknown carrier driver %q", cfg.CarrierDriver)
	}
	return NewLimited(c, cfg.CarrierQPS, cfg.CarrierBurst), nil
}
