// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent}: full config tree parsed from YAML
//   - AgentConfig: enabled, api_key / api_key_env, server_url,
//     submission_batch_size, process_interval, submission_timeout, compress,
//     listen_addr, log_level, storage, tls
//   - StorageConfig: backend (sqlite|memory), path
//   - TLSConfig: insecure_skip_verify, ca_file
//
// Load(path) reads the YAML file, applies defaults (enabled, 50 events per
// batch, 10s process interval, 30s submission timeout, sqlite storage), then
// validates. Validation failures wrap ErrInvalid. Key() resolves the API key
// from api_key_env before falling back to the literal api_key.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. The parent directory is watched so
// atomic-save editors that replace the file via rename are still seen.
package config
