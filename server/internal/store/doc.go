// Package store holds the events accepted by the mock ingestion server so
// developers can inspect what an agent actually delivered.
//
// Entries expire after a configurable retention. List hides expired
// entries immediately; Run removes them from memory in the background.
package store
