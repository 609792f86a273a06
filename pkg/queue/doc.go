// Package queue provides the durable webhook job queue service.
//
// The service ingests units of work (Enqueue), deduplicates them by
// upstream delivery id or in-flight domain entity, persists them, and
// drains each tenant's backlog through a per-tenant loop that is
// re-entrancy-guarded in-process and serialized across processes by an
// advisory lock. Handler failures are retried with full exponential
// backoff plus jitter until the retry budget is exhausted, after which
// the job is dead-lettered for operator inspection.
package queue
