// Package config loads and watches the analyst configuration file (config.yaml).
//
// Top-level types:
//   - Config{Analyst}: the `analyst:` section; the `server:` section is ignored
//   - AnalystConfig: server_endpoint, interval, buffer_size, output, server_auth,
//     log, sources []
//   - Source: id, type (file|http|prometheus|sql) and the per-type settings:
//     path; endpoint/auth/tls; metrics mapping; driver/dsn_env/query
//   - AuthConfig: mode (apikey|bearer|basic|none); Key(), Token() and
//     Password() resolve secrets from environment variables
//
// Load(path) reads the YAML file, applies defaults (1m interval, buffer of
// 100 snapshots), then validates required fields and enums.
//
// LoadEnvFile(path) loads a .env file so *_env settings can be kept out of
// the config file.
//
// Watch(ctx, path, onChange) uses fsnotify to reload the file on change.
package config
