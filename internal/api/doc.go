/*
Package api exposes the notification engine over HTTP for callers that run
out of process.

# Contract

POST /api/v1/updates answers 202 once the update is scheduled. It never waits
for delivery, and a delivery failure never changes the response. A full work
queue answers 503 with Retry-After so the caller may retry.

Preference writes are validated before they reach the store: the frequency
must be known and every toggle must name a preference key.

POST /api/v1/users/{id}/digest/drain answers 502 when the send failed. The
pending entries stay queued in that case.
*/
package api
