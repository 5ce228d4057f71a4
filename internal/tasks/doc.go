// Package tasks drives image generations from request to outcome with real-time progress reporting.
//
// # Core Operations
//
//  1. [GenerationEngine.Run] : one generation
//     - Validates the request and checks the provider credential before any network call
//     - Submits the task; a synchronous provider answer is returned as-is
//     - Otherwise hands the task id to a [Poller]
//     - Resolves exactly one [models.Outcome]: success, failure or timeout
//
//  2. [Poller.Poll] : bounded status polling
//     - First query immediately, then one query per interval
//     - PENDING and RUNNING continue; SUCCEEDED, FAILED and anything else end polling
//     - An unreachable provider consumes an attempt and is only reported on the last one
//     - Waits select on the request context, so a deadline aborts the sleep and the in-flight query
//
//  3. [BatchRun] : many independent generations
//     - Worker pool paced by a [rate.Limiter]
//     - Returns one result per request in request order
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Recording
//
// The optional [Recorder] interface stores every outcome that reached the provider
// (repositories.GenerationRepository). Recording errors are logged and never change the outcome.
package tasks
