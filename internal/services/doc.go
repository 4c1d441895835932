// Package services implements the business logic layer of csvpulse.
// It sits between the HTTP handlers and the pipeline, keeping session
// lookups, tracing, metrics and error translation out of both.
//
// # Available Services
//
//   - DashboardService: uploads, sessions, views, exports and charts
//   - HealthService: liveness, readiness and version information
//
// # Error Handling
//
// Services return errors the shared error handler already understands:
//
//   - apierrors.ErrSessionNotFound for unknown or expired sessions
//   - *apierrors.AppError of type PARSING for files that cannot be loaded
//   - *apierrors.AppError of type VALIDATION for bad criteria or profiles
//   - *apierrors.AppError of type NOT_FOUND for unknown sections
//
// The sentinels in errors.go stay reachable through errors.Is.
//
// # Concurrency
//
// Work on one session runs under that session's lock, so a view never sees
// a table being replaced. Different sessions never block each other.
package services
