// Package models defines domain entities for the animx style-transfer proxy.
//
// The package contains two categories of types:
//
// 1. Protocol values: produced and consumed while a single generation request is in flight
//   - [GenerationRequest] : Prompt, optional image reference and generation parameters
//   - [Submission] : Result of task creation, either a task identifier or synchronous results
//   - [TaskStatus] : One snapshot of provider-reported progress
//   - [Outcome] : Tagged success/failure/timeout result returned to callers
//
// 2. Persistent entities: records stored by the repositories package
//   - [User] : Account with bcrypt password hash and VIP flag
//   - [GenerationRecord] : History entry for every resolved generation
//
// Protocol values are never shared across requests and never persisted as-is.
package models
