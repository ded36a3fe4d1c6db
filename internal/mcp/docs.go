package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `caseload coordinates therapy clinics: clients, therapists, assignments and sessions, gated by the clinic's subscription tier.

Core concepts:
- Subscription: the clinic's tier (beta, alpha, theta) with daily limits on new clients and scripts and a cap on therapists.
- Client status: new -> assigned -> consultation -> therapy -> done. Done is final.
- Assignment: an append-only record linking a client to a therapist. Transfers create a new record.
- Session: a scheduled meeting between a client in consultation or therapy and the client's therapist.

Default workflow:
1) subscribe once per clinic, then onboard_therapist and set_therapist_status active.
2) create_client, then assign_client. Assignment moves the client to consultation unless auto_consultation=false.
3) advance_client for consultation -> therapy -> done.
4) transfer_assignment or start_over to change therapist; both need a reason.
5) schedule_session / transition_session to track meetings; completing a session bumps the client's counters.
6) get_usage and check_quota to watch quota; get_recent_activity and client_history to audit.

Errors are JSON objects with code, retryable, rolled_back and recovery_hint.
Retryable failures were rolled back; the same request may be sent again.

Docs:
- caseload://docs/workflow (status machine and tool mapping)
- caseload://docs/errors (error codes)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "caseload://docs/workflow",
		Name:        "docs_workflow",
		Title:       "Client and session workflow",
		Description: "Client status machine, session states and which tool drives each edge.",
		Content: `# Client workflow

| From | To | Tool |
|------|----|------|
| new | assigned | ` + "`assign_client`" + ` with auto_consultation=false |
| new | consultation | ` + "`assign_client`" + ` (default) |
| assigned | consultation | ` + "`advance_client`" + ` |
| consultation | therapy | ` + "`advance_client`" + ` |
| therapy | done | ` + "`advance_client`" + ` |
| assigned, consultation, therapy | new | ` + "`unassign_client`" + ` |
| assigned, consultation, therapy | consultation | ` + "`transfer_assignment`" + ` (reason required) |
| any but done | consultation | ` + "`start_over`" + ` (reason required, resets progress) |

Done is terminal. Any other edge fails with INVALID_TRANSITION.

Only one operation per client runs at a time; a concurrent call fails with
CONCURRENT_MODIFICATION and can be retried.

## Quota

- ` + "`assign_client`" + ` and ` + "`start_over`" + ` of a new client consume one clientsToday.
- ` + "`onboard_therapist`" + ` consumes one therapists seat.
- ` + "`record_script_usage`" + ` consumes scriptsToday.
- Alerts fire at 80% (warning), 95% (critical) and 100% (limit_reached).
- Daily counters reset at the first call of each UTC day; monthly totals reset with the month.
  ` + "`reset_daily_usage`" + ` applies the roll-over immediately.

# Session workflow

| From | To |
|------|----|
| new | scheduled, cancelled |
| scheduled | started, cancelled, no_show |
| started | completed, cancelled |
| cancelled, no_show | scheduled (reschedule, needs at) |

Completing a session increments the client's total_sessions, sets last_session
and optionally records progress (0-100).
`,
	},
	{
		URI:         "caseload://docs/errors",
		Name:        "docs_errors",
		Title:       "Error codes",
		Description: "Error codes returned by tools and how to recover.",
		Content: `# Error codes

Retryable (the change was rolled back):
- TIMEOUT
- UPSTREAM_FAILURE
- CONCURRENT_MODIFICATION

Not retryable without changing the request:
- INVALID_INPUT, MISSING_REASON, INVALID_TRANSITION
- QUOTA_EXCEEDED, SUBSCRIPTION_NOT_FOUND, SUBSCRIPTION_EXISTS, UNKNOWN_TIER
- THERAPIST_NOT_ACTIVE, THERAPIST_AT_CAPACITY, SAME_THERAPIST
- CLIENT_NOT_FOUND, THERAPIST_NOT_FOUND, ASSIGNMENT_NOT_FOUND, SESSION_NOT_FOUND
- CLIENT_NOT_IN_THERAPY, THERAPIST_MISMATCH
- UNAUTHENTICATED, FORBIDDEN

Not rolled back:
- COMPENSATION_FAILED: the operation failed and could not be undone. The
  client may already point at the new therapist and the assignment record is
  kept. Reload the client before acting again.

Every error carries a recovery_hint.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
