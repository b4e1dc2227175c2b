// Package config loads the mock ingestion server configuration from the
// `server:` section of a YAML file: listen port, API key authentication,
// body size limit, event retention and fault injection.
package config
