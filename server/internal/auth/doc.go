// Package auth provides API key authentication middleware for the mock
// ingestion server. Agents send their project key as a bearer token.
package auth
