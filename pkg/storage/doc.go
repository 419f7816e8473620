// Package storage owns the relational store handle and the optional object-store
// archive used by the analytics pipeline.
//
// # Overview
//
// The store is an explicitly constructed ConnectionManager. Commands open it at startup,
// pass Primary() or Replica() into each analytics component, and close it from the
// shutdown path. There is no process-wide handle.
//
// Two drivers are supported:
//
//   - postgres (github.com/lib/pq): production deployments, optional read replicas
//   - sqlite3 (github.com/mattn/go-sqlite3): single-node deployments and tests
//
// # Schema
//
// Migrate creates four tables:
//
//   - analytics_events: append-only telemetry rows
//   - daily_aggregates: one row per UTC day, keyed by day (YYYY-MM-DD)
//   - popular_urls: one row per normalized URL hash
//   - popular_url_tools: the set of tools that analyzed each URL
//
// Queries elsewhere use $n placeholders numbered in order of first appearance, which both
// drivers bind positionally.
//
// # Archive
//
// S3Archiver writes each computed daily aggregate as JSON to <prefix>/<day>.json. It works
// against AWS S3 or any S3-compatible endpoint (MinIO) with path-style addressing.
//
// # Errors
//
// IsUniqueViolation and IsMissingTable classify driver errors so callers can retry an
// insert as an update or fall back when a table has not been provisioned.
package storage
