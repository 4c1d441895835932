// Package app wires csvpulse together and manages its lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration from defaults, an optional YAML file and the environment
//  2. Initialize logging and OpenTelemetry (traces and Prometheus metrics)
//  3. Create the session store, the pipeline and the live connection hub
//  4. Initialize the dashboard and health services
//  5. Set up the chi router with middleware and handlers
//  6. Create the HTTP server
//
// # Running
//
// Serve runs the HTTP server, the session janitor and the hub under one
// errgroup. Cancelling its context shuts the server down, closes live
// connections and flushes telemetry:
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    os.Exit(1)
//	}
//	if err := application.Run(); err != nil {
//	    os.Exit(1)
//	}
package app
