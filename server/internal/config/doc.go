// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `analyst:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort: port for the REST API and WebSocket hub (default 8080)
//   - Auth.Mode: "apikey" or "none"
//   - Auth.KeyEnv: environment variable holding the expected API key
//   - Auth.Header: HTTP header name (default "x-api-key")
//   - Reports.TTL: how long a source snapshot remains live (default 24h)
//   - BroadcastInterval: WebSocket push period (default 5s)
//   - Alerts.Cooldown: minimum gap between repeats of one alert (default 1h)
//   - Alerts.Rules: extra alert conditions (expressions over metrics)
//   - Alerts.Webhooks: slack | teams | http delivery targets
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
