// Package http provides HTTP handlers and middleware for the dispatch API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at","principal":{"operator_id","is_manager"}} with the token
//     also surfaced via the `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the caller's session token extracted from the
//     Authorization header or session cookie. Returns 204 No Content and clears the cookie.
//   - DELETE /sessions/{token}: manager-only revocation of an arbitrary session.
//   - GET /technicians, POST /technicians, GET /technicians/{id}, PUT /technicians/{id}:
//     roster endpoints exchanging the `technicianDTO` payload defined in
//     technician_handler.go. Mutations require a manager principal.
//   - GET /jobs, POST /jobs, GET /jobs/backlog, GET /jobs/{id}, PUT /jobs/{id}: service
//     ticket endpoints exchanging the `jobDTO` payload defined in job_handler.go. The
//     backlog view lists jobs without an active appointment, optionally narrowed by
//     `technician_id`.
//   - POST /appointments: places a job on the calendar. Long jobs come back as several
//     draft segments. GET/PUT/DELETE /appointments/{id} fetch, move and remove a single
//     segment; POST /appointments/{id}/commit, /customer-invite, /confirm and /reset
//     drive the invite handshake.
//   - GET /schedule: the calendar grid rows for a date range, joined with technician
//     and customer display fields.
//   - POST /conflicts/check: probes a candidate slot and returns buffer violations
//     without creating anything.
//   - POST /calendar/responses: ingestion point for accept/decline signals pushed by
//     the calendar gateway. Deployed outside the session middleware.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
