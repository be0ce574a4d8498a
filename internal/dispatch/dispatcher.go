package dispatch

import (
	"context"
	"time"

	"okapi/internal/config"
	"okapi/internal/constants"
	"okapi/internal/logger"
	"okapi/internal/recorder"
	"okapi/internal/rule"
	"okapi/pkg/metrics"
)

const (
	StatusDispatched = "dispatched"
	StatusFailed     = "failed"
)

// Dispatcher runs a fired rule's actions in declaration order. A failed
// action is recorded and the remaining actions still run; one flaky
// downstream must not mask the others.
type Dispatcher struct {
	campaign CampaignClient
	notifier NotifierClient
	flags    FlagClient
	admin    AdminNotifier
	timeout  time.Duration
	logger   logger.Logger
}

func NewDispatcher(campaign CampaignClient, notifier NotifierClient, flags FlagClient, admin AdminNotifier, timeout time.Duration, log logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = constants.DefaultActionTimeout
	}
	return &Dispatcher{
		campaign: campaign,
		notifier: notifier,
		flags:    flags,
		admin:    admin,
		timeout:  timeout,
		logger:   log,
	}
}

// NewHTTPDispatcher wires the dispatcher with HTTP clients for every
// downstream service. All clients share one circuit breaker
// configuration; each gets its own breaker instance.
func NewHTTPDispatcher(cfg config.DispatchConfig, cbCfg config.CircuitBreakerConfig, timeout time.Duration, log logger.Logger) *Dispatcher {
	return NewDispatcher(
		NewHTTPCampaignClient(cfg, cbCfg),
		NewHTTPNotifierClient(cfg, cbCfg),
		NewHTTPFlagClient(cfg, cbCfg),
		NewHTTPAdminNotifier(cfg, cbCfg),
		timeout,
		log,
	)
}

func (d *Dispatcher) Dispatch(ctx context.Context, tr *rule.TriggerRule, entityIDs []string) []recorder.ActionResult {
	results := make([]recorder.ActionResult, 0, len(tr.Actions))

	for _, action := range tr.Actions {
		start := time.Now()
		err := d.dispatchOne(ctx, tr, action, entityIDs)
		elapsed := time.Since(start)

		metrics.ObserveActionDispatch(string(action.Kind), elapsed, err)

		result := recorder.ActionResult{
			Kind:     string(action.Kind),
			Status:   StatusDispatched,
			Duration: elapsed.Milliseconds(),
		}

		if err != nil {
			result.Status = StatusFailed
			result.Error = err.Error()
			d.logger.ErrorwCtx(ctx, "Action dispatch failed",
				"rule_id", tr.ID,
				"kind", action.Kind,
				"error", err,
			)
		}

		results = append(results, result)
	}

	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, tr *rule.TriggerRule, action rule.Action, entityIDs []string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	switch cfg := action.Config.(type) {
	case rule.CampaignConfig:
		return d.campaign.Launch(ctx, cfg.CampaignID, entityIDs)
	case rule.NotificationConfig:
		return d.notifier.Send(ctx, cfg.Message, entityIDs)
	case rule.FlagConfig:
		return d.flags.Flag(ctx, cfg.Reason, entityIDs)
	case rule.AdminAlertConfig:
		return d.admin.Alert(ctx, tr.Name, cfg.Message)
	default:
		// Validation rejects unknown kinds at write time.
		return nil
	}
}
