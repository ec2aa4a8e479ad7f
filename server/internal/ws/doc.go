// Package ws serves the live adjuster dashboard over WebSocket.
//
// Every connected session receives the same document as
// GET /api/v1/dashboard, wrapped in an event envelope:
//
//	{"event": "dashboard", "data": {...}}
//
// "dashboard" snapshots go out on the configured interval. The receiver
// calls Hub.Notify after each processed claim or override, which produces a
// "claims_updated" snapshot without waiting for the next tick.
//
// Origins are not checked here; the server mounts the hub at /ws/dashboard
// behind the same auth middleware as the REST API.
package ws
