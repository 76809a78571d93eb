package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rulstream/rulstream/monitor/internal/config"
)

// payloads builds the request body for each webhook type.
var payloads = map[string]func(*Alert) any{
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  func(a *Alert) any { return map[string]any{"alert": a} },
}

// deliver posts a to every webhook in hooks. Failures are logged and dropped.
func (e *Engine) deliver(hooks []config.WebhookConfig, a *Alert) {
	for _, wh := range hooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		build, ok := payloads[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		if err := e.post(url, build(a)); err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "rule", a.RuleName, "engine", a.EngineID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "engine", a.EngineID, "state", a.State)
	}
}

func slackPayload(a *Alert) any {
	icon := ":large_blue_circle:"
	switch {
	case a.State == StateResolved:
		icon = ":white_check_mark:"
	case a.Severity == "critical":
		icon = ":red_circle:"
	case a.Severity == "warning":
		icon = ":large_orange_circle:"
	}
	return map[string]string{"text": fmt.Sprintf("%s %s", icon, headline(a))}
}

// teamsPayload is a legacy connector MessageCard.
func teamsPayload(a *Alert) any {
	color := map[string]string{"critical": "D32F2F", "warning": "F57C00"}[a.Severity]
	if color == "" || a.State == StateResolved {
		color = "388E3C"
	}
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": color,
		"summary":    headline(a),
		"title":      fmt.Sprintf("Engine %d: %s", a.EngineID, a.RuleName),
		"sections": []map[string]any{{
			"text": a.Message,
			"facts": []map[string]string{
				{"name": "State", "value": a.State},
				{"name": "Severity", "value": a.Severity},
				{"name": "Value", "value": strconv.FormatFloat(a.Value, 'f', 2, 64)},
				{"name": "Fired", "value": a.FiredAt.UTC().Format("2006-01-02 15:04:05Z")},
			},
		}},
	}
}

func headline(a *Alert) string {
	if a.State == StateResolved {
		return fmt.Sprintf("resolved: %s on engine %d", a.RuleName, a.EngineID)
	}
	return a.Message
}

func (e *Engine) post(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	resp, err := e.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook answered %s", resp.Status)
	}
	return nil
}
