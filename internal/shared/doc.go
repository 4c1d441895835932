// Package shared holds helpers used across csvpulse packages that belong to
// no single layer.
//
// # Structure
//
//   - testutil: slog capture handler and CSV fixtures for the three
//     built-in dashboards (baby names, streamers, stock prices)
//
// Nothing here may import a domain package; the fixtures are plain strings
// so that any package's tests can use them without import cycles.
package shared
