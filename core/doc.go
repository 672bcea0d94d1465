// Package core defines the domain model shared by the warden security core.
//
// # Overview
//
// The core package provides:
//   - Security events recorded by the request path and the query guard
//   - Rolling security metrics snapshots and dashboard trend points
//   - Security alerts raised by anomaly detection
//   - Validation checks produced by the self-test runner
//   - The error taxonomy used across the guard and the monitoring pipeline
//
// # Design Principles
//
//  1. Types carry JSON tags matching the persisted layout in Redis
//  2. Events are immutable once built by NewSecurityEvent
//  3. Only guard rejections are actionable errors for callers; everything
//     else in the monitoring pipeline is logged and contained
//  4. Time is read through a Clock so window boundaries can be tested
package core
