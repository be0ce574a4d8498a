package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"okapi/internal/config"
	"okapi/internal/constants"
	"okapi/pkg/circuitbreaker"
	pkgerrors "okapi/pkg/errors"
)

// CampaignClient launches marketing campaigns against an audience.
type CampaignClient interface {
	Launch(ctx context.Context, campaignID string, entityIDs []string) error
}

// NotifierClient delivers a notification to a set of recipients.
type NotifierClient interface {
	Send(ctx context.Context, message string, entityIDs []string) error
}

// FlagClient marks entities for manual review. Flagging is idempotent:
// flagging an already-flagged entity is not an error.
type FlagClient interface {
	Flag(ctx context.Context, reason string, entityIDs []string) error
}

// AdminNotifier pushes an alert to the operations channel.
type AdminNotifier interface {
	Alert(ctx context.Context, ruleName, message string) error
}

type httpDoer struct {
	client *http.Client
	cb     *circuitbreaker.Wrapper
}

func newHTTPDoer(name string, cbCfg config.CircuitBreakerConfig) httpDoer {
	d := httpDoer{
		client: &http.Client{Timeout: constants.DefaultHTTPTimeout},
	}
	if cbCfg.Enabled {
		d.cb = circuitbreaker.NewWrapper(breakerConfig(name, cbCfg))
	}
	return d
}

// breakerConfig starts from the library defaults and applies only the
// thresholds the operator actually set.
func breakerConfig(name string, cfg config.CircuitBreakerConfig) circuitbreaker.Config {
	cbConfig := circuitbreaker.DefaultConfig(name)
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}
	return cbConfig
}

// postJSON sends the payload and returns the response status code.
// Transport errors and 5xx responses count against the breaker;
// 4xx responses are the caller's problem and do not trip it.
func (d httpDoer) postJSON(ctx context.Context, method, url string, payload interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	if d.cb == nil {
		return d.send(ctx, method, url, body)
	}

	result, err := d.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return d.send(ctx, method, url, body)
	})

	d.cb.RecordRequest(err == nil)

	status, _ := result.(int)
	if err != nil {
		if d.cb.IsOpen() {
			return status, fmt.Errorf("circuit breaker is open for %s: %w", d.cb.Name(), err)
		}
		return status, err
	}

	return status, nil
}

func (d httpDoer) send(ctx context.Context, method, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return resp.StatusCode, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	return resp.StatusCode, nil
}

type HTTPCampaignClient struct {
	baseURL string
	doer    httpDoer
}

func NewHTTPCampaignClient(cfg config.DispatchConfig, cbCfg config.CircuitBreakerConfig) *HTTPCampaignClient {
	return &HTTPCampaignClient{
		baseURL: cfg.CampaignURL,
		doer:    newHTTPDoer("campaign-service", cbCfg),
	}
}

func (c *HTTPCampaignClient) Launch(ctx context.Context, campaignID string, entityIDs []string) error {
	url := fmt.Sprintf("%s/api/campaigns/%s/launch", c.baseURL, campaignID)
	payload := map[string]interface{}{
		"entity_ids": entityIDs,
	}

	status, err := c.doer.postJSON(ctx, http.MethodPost, url, payload)
	if status == http.StatusNotFound {
		return pkgerrors.ErrCampaignNotFound.WithDetail("campaign_id", campaignID)
	}
	if err != nil {
		return pkgerrors.ErrActionDispatch.WithCause(err).WithDetail("campaign_id", campaignID)
	}
	if status >= 400 {
		return pkgerrors.ErrActionDispatch.WithDetail("status", status).WithDetail("campaign_id", campaignID)
	}

	return nil
}

type HTTPNotifierClient struct {
	baseURL string
	doer    httpDoer
}

func NewHTTPNotifierClient(cfg config.DispatchConfig, cbCfg config.CircuitBreakerConfig) *HTTPNotifierClient {
	return &HTTPNotifierClient{
		baseURL: cfg.NotifierURL,
		doer:    newHTTPDoer("notifier-service", cbCfg),
	}
}

func (c *HTTPNotifierClient) Send(ctx context.Context, message string, entityIDs []string) error {
	url := c.baseURL + "/api/notifications"
	payload := map[string]interface{}{
		"message":    message,
		"recipients": entityIDs,
	}

	status, err := c.doer.postJSON(ctx, http.MethodPost, url, payload)
	if err != nil {
		return pkgerrors.ErrNotificationDelivery.WithCause(err)
	}
	if status >= 400 {
		return pkgerrors.ErrNotificationDelivery.WithDetail("status", status)
	}

	return nil
}

type HTTPFlagClient struct {
	baseURL string
	doer    httpDoer
}

func NewHTTPFlagClient(cfg config.DispatchConfig, cbCfg config.CircuitBreakerConfig) *HTTPFlagClient {
	return &HTTPFlagClient{
		baseURL: cfg.FlagServiceURL,
		doer:    newHTTPDoer("flag-service", cbCfg),
	}
}

func (c *HTTPFlagClient) Flag(ctx context.Context, reason string, entityIDs []string) error {
	url := c.baseURL + "/api/flags"
	payload := map[string]interface{}{
		"reason":     reason,
		"entity_ids": entityIDs,
	}

	// PUT: re-flagging the same entities with the same reason is a no-op
	// on the flag service side.
	status, err := c.doer.postJSON(ctx, http.MethodPut, url, payload)
	if err != nil {
		return pkgerrors.ErrFlagService.WithCause(err)
	}
	if status >= 400 {
		return pkgerrors.ErrFlagService.WithDetail("status", status)
	}

	return nil
}

type HTTPAdminNotifier struct {
	baseURL string
	channel string
	doer    httpDoer
}

func NewHTTPAdminNotifier(cfg config.DispatchConfig, cbCfg config.CircuitBreakerConfig) *HTTPAdminNotifier {
	return &HTTPAdminNotifier{
		baseURL: cfg.NotifierURL,
		channel: cfg.AdminChannel,
		doer:    newHTTPDoer("admin-notifier", cbCfg),
	}
}

func (c *HTTPAdminNotifier) Alert(ctx context.Context, ruleName, message string) error {
	url := c.baseURL + "/api/admin/alerts"
	payload := map[string]interface{}{
		"channel":   c.channel,
		"rule_name": ruleName,
		"message":   message,
	}

	status, err := c.doer.postJSON(ctx, http.MethodPost, url, payload)
	if err != nil {
		return pkgerrors.ErrNotificationDelivery.WithCause(err)
	}
	if status >= 400 {
		return pkgerrors.ErrNotificationDelivery.WithDetail("status", status)
	}

	return nil
}
