package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/server/internal/config"
)

// deliveryTimeout bounds one webhook POST.
const deliveryTimeout = 10 * time.Second

// notification is the rendered form of one alert event, shared by all
// webhook payload encoders.
type notification struct {
	alert *Alert
	title string // "[CRITICAL] loss"
	text  string // "Loss detected: $300 on shop"
	color string // hex without '#'
}

func newNotification(a *Alert) notification {
	n := notification{alert: a}
	if a.State == StateResolved {
		n.title = "[RESOLVED] " + a.RuleName
		n.text = fmt.Sprintf("%s resolved on %s", a.RuleName, a.SourceID)
		n.color = "2EB67D"
		return n
	}
	switch a.Severity {
	case analysis.SeverityCritical:
		n.title, n.color = "[CRITICAL] "+a.RuleName, "FF4F6A"
	case analysis.SeverityWarning:
		n.title, n.color = "[WARNING] "+a.RuleName, "FFAB40"
	default:
		n.title, n.color = "[INFO] "+a.RuleName, "00D4FF"
	}
	n.text = fmt.Sprintf("%s on %s", a.Message, a.SourceID)
	return n
}

// payloadFuncs encode a notification for each webhook type.
var payloadFuncs = map[string]func(n notification) any{
	config.WebhookSlack: func(n notification) any {
		return map[string]any{
			"text": fmt.Sprintf("*%s* %s", n.title, n.text),
			"attachments": []map[string]string{{
				"color": "#" + n.color,
				"text":  fmt.Sprintf("source: %s, value: %g", n.alert.SourceID, n.alert.Value),
			}},
		}
	},
	config.WebhookTeams: func(n notification) any {
		return map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": n.color,
			"summary":    n.alert.RuleName,
			"title":      "bizpulse alert: " + n.title,
			"text":       n.text,
		}
	},
	config.WebhookHTTP: func(n notification) any {
		return map[string]any{
			"event": n.alert.State,
			"text":  n.text,
			"alert": n.alert,
		}
	},
}

// deliver sends a to every configured webhook. Errors are logged only.
func (e *Engine) deliver(a *Alert) {
	n := newNotification(a)
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		encode, ok := payloadFuncs[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err := e.post(url, encode(n)); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"source", a.SourceID,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

func (e *Engine) post(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
