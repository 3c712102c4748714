package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ai-saas-billing/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*HTTPNotifier)(nil)

// HTTPNotifier forwards notification events to the platform's notification
// service. Delivery is best effort; a missing endpoint degrades to logging so
// local setups run without the service.
type HTTPNotifier struct {
	endpoint string
	client   *http.Client
	log      *zerolog.Logger
}

func NewHTTPNotifier(endpoint string, logger *zerolog.Logger) *HTTPNotifier {
	l := logger.With().Str("component", "Notifier").Logger()
	return &HTTPNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
		log:      &l,
	}
}

type event struct {
	UserID  string            `json:"user_id"`
	Kind    string            `json:"kind"`
	Payload map[string]string `json:"payload"`
}

func (n *HTTPNotifier) Notify(ctx context.Context, userID string, kind adapter.NotificationKind, payload map[string]string) error {
	if n.endpoint == "" {
		n.log.Info().Str("user_id", userID).Str("kind", string(kind)).
			Interface("payload", payload).Msg("notification (no endpoint configured)")
		return nil
	}

	body, err := json.Marshal(event{UserID: userID, Kind: string(kind), Payload: payload})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification service answered %d", resp.StatusCode)
	}
	return nil
}
