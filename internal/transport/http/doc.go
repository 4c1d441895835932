// Package http implements the HTTP handlers of the csvpulse web service.
// Handlers parse requests, call the dashboard service and format responses;
// all table logic lives in the service layer.
//
// # Endpoints
//
// DashboardHandler.Routes is mounted at /api:
//
//	GET    /profiles
//	POST   /sessions                          multipart file [+ profile]
//	GET    /sessions/{sessionID}
//	DELETE /sessions/{sessionID}
//	PUT    /sessions/{sessionID}/table        multipart file [+ profile]
//	POST   /sessions/{sessionID}/view         criteria JSON
//	POST   /sessions/{sessionID}/export       criteria JSON, ?format=csv|parquet&gzip=true
//	POST   /sessions/{sessionID}/charts/{section}?width=&height=
//	POST   /pipeline/run                      multipart file + criteria field
//	POST   /pipeline/describe                 multipart file [+ profile]
//
// LiveHandler serves GET /api/sessions/{sessionID}/live. It must be mounted
// outside any request timeout since the connection outlives the request.
//
// # Error Handling
//
// Every error is rendered as RFC 7807 problem details by the shared
// ErrorHandler:
//
//	{
//	    "type": "/errors/session/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "Session not found or expired",
//	    "instance": "/api/sessions/5f0c.../view",
//	    "error_code": "SESSION_NOT_FOUND",
//	    "trace_id": "..."
//	}
//
// On the live channel the same object is sent as the data of an "error"
// message.
package http
