package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const dispatchTimeout = 30 * time.Second

// DispatchError reports a rejected or unconfirmed push. The dispatcher
// never retries; the ledger row stays unpushed and the next cycle that
// revisits the channel retries naturally.
type DispatchError struct {
	Endpoint string
	Reason   string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("push to %s failed: %s", e.Endpoint, e.Reason)
}

// Dispatcher delivers notifications to Gotify-style push endpoints. A
// shared rate limiter keeps a backlog of unpushed messages from hammering
// the endpoint in one cycle.
type Dispatcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher allowing a sustained 5 pushes/s with
// small bursts.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{Timeout: dispatchTimeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		logger:     logger,
	}
}

// Send delivers one notification. Success is strictly HTTP 200 with a
// well-formed JSON acknowledgement body; anything else is a DispatchError.
func (d *Dispatcher) Send(ctx context.Context, endpoint, token, title, body string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	form := url.Values{
		"title":    {title},
		"message":  {body},
		"priority": {"2"},
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	target := endpoint + sep + "token=" + url.QueryEscape(token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return &DispatchError{Endpoint: endpoint, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &DispatchError{Endpoint: endpoint, Reason: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &DispatchError{Endpoint: endpoint, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var ack map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return &DispatchError{Endpoint: endpoint, Reason: "malformed acknowledgement: " + err.Error()}
	}

	d.logger.Info("notification pushed", zap.String("title", title))
	return nil
}
