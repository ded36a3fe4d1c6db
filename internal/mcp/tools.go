package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/caseload/internal/domain/activity"
	"github.com/rpggio/caseload/internal/domain/assignment"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/session"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/rpggio/caseload/internal/domain/tier"
	"github.com/rpggio/caseload/internal/identity"
)

var errInvalidArgument = errors.New("invalid argument")

// addTool registers a typed tool. An empty action only requires an
// authenticated caller.
func addTool[In any](server *sdkmcp.Server, logger *slog.Logger, name, description string, action identity.Action, fn func(context.Context, identity.Caller, In) (any, error)) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
			caller, err := authorize(ctx, action)
			if err != nil {
				return errorResult(logger, name, err), nil, nil
			}
			out, err := fn(ctx, caller, in)
			if err != nil {
				return errorResult(logger, name, err), nil, nil
			}
			return jsonResult(out), nil, nil
		})
}

func authorize(ctx context.Context, action identity.Action) (identity.Caller, error) {
	if action != "" {
		return identity.Authorize(ctx, action)
	}
	c, ok := identity.CallerFrom(ctx)
	if !ok || c.ClinicID == "" {
		return identity.Caller{}, identity.ErrUnauthenticated
	}
	return c, nil
}

func jsonResult(v any) *sdkmcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &sdkmcp.CallToolResult{
			IsError: true,
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: fmt.Sprintf("encoding result: %v", err)}},
		}
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}

func errorResult(logger *slog.Logger, tool string, err error) *sdkmcp.CallToolResult {
	apiErr := MapError(err)
	if apiErr.Retryable || apiErr.Code == "INTERNAL_ERROR" {
		logger.Warn("tool failed", "tool", tool, "code", apiErr.Code, "error", err)
	} else {
		logger.Debug("tool rejected", "tool", tool, "code", apiErr.Code, "error", err)
	}
	data, _ := json.Marshal(apiErr)
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}

func timeoutOf(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func parseTime(field, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339: %v", errInvalidArgument, field, err)
	}
	return t, nil
}

func parseTier(v string) tier.Tier {
	return tier.Tier(strings.ToLower(strings.TrimSpace(v)))
}

// ensureOwnClient restricts therapists to the clients assigned to them.
func ensureOwnClient(ctx context.Context, clients ClientService, caller identity.Caller, clientID string) error {
	if caller.Role != identity.RoleTherapist {
		return nil
	}
	cl, err := clients.Get(ctx, caller.ClinicID, clientID)
	if err != nil {
		return err
	}
	if cl.TherapistID() != caller.UserID {
		return fmt.Errorf("%w: client %s is not assigned to %s", identity.ErrForbidden, clientID, caller.UserID)
	}
	return nil
}

func registerTools(server *sdkmcp.Server, svcs Services, logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registerQuotaTools(server, svcs, logger)
	registerClientTools(server, svcs, logger)
	registerTherapistTools(server, svcs, logger)
	registerAssignmentTools(server, svcs, logger)
	registerSessionTools(server, svcs, logger)
	registerActivityTools(server, svcs, logger)
}

func registerQuotaTools(server *sdkmcp.Server, svcs Services, logger *slog.Logger) {
	addTool(server, logger, "list_tiers", "List subscription tiers with their limits and prices", "",
		func(ctx context.Context, _ identity.Caller, _ EmptyParams) (any, error) {
			plans := svcs.Quota.Catalog().Plans()
			out := make([]PlanResponse, 0, len(plans))
			for _, p := range plans {
				out = append(out, PlanResponse{
					Tier:        p.Tier,
					Name:        p.Name,
					Limits:      p.Limits,
					MonthlyCost: p.Price(tier.CycleMonthly),
					AnnualCost:  p.Price(tier.CycleAnnual),
				})
			}
			return out, nil
		})

	addTool(server, logger, "subscribe", "Subscribe the clinic to a tier", identity.ActionManageSubscription,
		func(ctx context.Context, caller identity.Caller, in SubscribeParams) (any, error) {
			cycle, err := tier.ParseCycle(in.Cycle)
			if err != nil {
				return nil, err
			}
			return svcs.Quota.Subscribe(ctx, caller.ClinicID, parseTier(in.Tier), cycle)
		})

	addTool(server, logger, "get_usage", "Get the clinic's subscription, usage and active alerts", identity.ActionViewClients,
		func(ctx context.Context, caller identity.Caller, _ EmptyParams) (any, error) {
			sub, err := svcs.Quota.Get(ctx, caller.ClinicID)
			if err != nil {
				return nil, err
			}
			alerts, err := svcs.Quota.Alerts(ctx, caller.ClinicID)
			if err != nil {
				return nil, err
			}
			if alerts == nil {
				alerts = []quota.UsageAlert{}
			}
			return UsageResponse{Subscription: sub, Alerts: alerts}, nil
		})

	addTool(server, logger, "check_quota", "Report whether the clinic may consume one more unit of a metric", identity.ActionViewClients,
		func(ctx context.Context, caller identity.Caller, in CheckQuotaParams) (any, error) {
			metric := quota.Metric(in.Metric)
			err := svcs.Quota.Check(ctx, caller.ClinicID, metric)
			var exceeded *quota.ExceededError
			if err != nil && !errors.As(err, &exceeded) {
				return nil, err
			}
			sub, err := svcs.Quota.Get(ctx, caller.ClinicID)
			if err != nil {
				return nil, err
			}
			return QuotaCheckResponse{
				Metric:  metric,
				Allowed: exceeded == nil,
				Usage:   sub.UsageOf(metric),
				Limit:   sub.LimitOf(metric),
			}, nil
		})

	addTool(server, logger, "change_tier", "Upgrade or downgrade the clinic's tier; usage is kept", identity.ActionManageSubscription,
		func(ctx context.Context, caller identity.Caller, in SubscribeParams) (any, error) {
			cycle, err := tier.ParseCycle(in.Cycle)
			if err != nil {
				return nil, err
			}
			return svcs.Quota.ChangeTier(ctx, caller.ClinicID, parseTier(in.Tier), cycle)
		})

	addTool(server, logger, "record_script_usage", "Count generated scripts against today's quota", identity.ActionRecordSessions,
		func(ctx context.Context, caller identity.Caller, in RecordScriptUsageParams) (any, error) {
			amount := in.Amount
			if amount == 0 {
				amount = 1
			}
			applied, err := svcs.Quota.Increment(ctx, caller.ClinicID, quota.MetricScriptsToday, amount)
			if err != nil {
				return nil, err
			}
			alerts, err := svcs.Quota.Alerts(ctx, caller.ClinicID)
			if err != nil {
				return nil, err
			}
			if alerts == nil {
				alerts = []quota.UsageAlert{}
			}
			return ScriptUsageResponse{Applied: applied, Alerts: alerts}, nil
		})

	addTool(server, logger, "reset_daily_usage", "Apply the day and month roll-over to the clinic's counters", identity.ActionManageSubscription,
		func(ctx context.Context, caller identity.Caller, _ EmptyParams) (any, error) {
			return svcs.Quota.ResetDaily(ctx, caller.ClinicID)
		})
}

func registerClientTools(server *sdkmcp.Server, svcs Services, logger *slog.Logger) {
	addTool(server, logger, "create_client", "Register a new, unassigned client", identity.ActionAssignClients,
		func(ctx context.Context, caller identity.Caller, in CreateClientParams) (any, error) {
			return svcs.Clients.Create(ctx, caller.ClinicID, client.CreateRequest{ID: in.ID, Name: in.Name})
		})

	addTool(server, logger, "get_client", "Get a client", identity.ActionViewClients,
		func(ctx context.Context, caller identity.Caller, in ClientIDParams) (any, error) {
			if err := ensureOwnClient(ctx, svcs.Clients, caller, in.ClientID); err != nil {
				return nil, err
			}
			return svcs.Clients.Get(ctx, caller.ClinicID, in.ClientID)
		})

	addTool(server, logger, "list_clients", "List clients, optionally by status or therapist", identity.ActionViewClients,
		func(ctx context.Context, caller identity.Caller, in ListClientsParams) (any, error) {
			opts := client.ListOptions{Limit: in.Limit, Offset: in.Offset}
			if in.Status != "" {
				s := strings.ToLower(in.Status)
				opts.Status = &s
			}
			if in.TherapistID != "" {
				opts.TherapistID = &in.TherapistID
			}
			if caller.Role == identity.RoleTherapist {
				opts.TherapistID = &caller.UserID
			}
			clients, err := svcs.Clients.List(ctx, caller.ClinicID, opts)
			if err != nil {
				return nil, err
			}
			if clients == nil {
				clients = []client.Client{}
			}
			return clients, nil
		})
}

func registerTherapistTools(server *sdkmcp.Server, svcs Services, logger *slog.Logger) {
	addTool(server, logger, "onboard_therapist", "Add a therapist in pending_setup; consumes a therapist seat", identity.ActionManageTherapists,
		func(ctx context.Context, caller identity.Caller, in OnboardTherapistParams) (any, error) {
			return svcs.Therapists.Onboard(ctx, caller.ClinicID, therapist.OnboardRequest{
				ID:         in.ID,
				Name:       in.Name,
				MaxClients: in.MaxClients,
			})
		})

	addTool(server, logger, "set_therapist_status", "Set a therapist active, pending_setup or inactive", identity.ActionManageTherapists,
		func(ctx context.Context, caller identity.Caller, in SetTherapistStatusParams) (any, error) {
			status := therapist.ActivityStatus(strings.ToLower(strings.TrimSpace(in.Status)))
			return svcs.Therapists.SetActivityStatus(ctx, caller.ClinicID, in.TherapistID, status)
		})

	addTool(server, logger, "list_therapists", "List therapists with their current load", identity.ActionViewClients,
		func(ctx context.Context, caller identity.Caller, _ EmptyParams) (any, error) {
			list, err := svcs.Therapists.List(ctx, caller.ClinicID)
			if err != nil {
				return nil, err
			}
			if list == nil {
				list = []therapist.Therapist{}
			}
			return list, nil
		})
}

func registerAssignmentTools(server *sdkmcp.Server, svcs Services, logger *slog.Logger) {
	addTool(server, logger, "assign_client", "Assign a new client to an active therapist", identity.ActionAssignClients,
		func(ctx context.Context, caller identity.Caller, in AssignClientParams) (any, error) {
			return svcs.Assignments.Assign(ctx, caller.ClinicID, assignment.AssignRequest{
				ClientID:         in.ClientID,
				TherapistID:      in.TherapistID,
				Notes:            in.Notes,
				AutoConsultation: in.AutoConsultation,
				Timeout:          timeoutOf(in.TimeoutMS),
			})
		})

	addTool(server, logger, "unassign_client", "Return a client to the unassigned pool", identity.ActionAssignClients,
		func(ctx context.Context, caller identity.Caller, in UnassignClientParams) (any, error) {
			return svcs.Assignments.Unassign(ctx, caller.ClinicID, assignment.UnassignRequest{
				ClientID: in.ClientID,
				Reason:   in.Reason,
				Timeout:  timeoutOf(in.TimeoutMS),
			})
		})

	addTool(server, logger, "transfer_assignment", "Move a client to another therapist; the client restarts at consultation", identity.ActionAssignClients,
		func(ctx context.Context, caller identity.Caller, in TransferAssignmentParams) (any, error) {
			return svcs.Assignments.Transfer(ctx, caller.ClinicID, assignment.TransferRequest{
				AssignmentID:   in.AssignmentID,
				NewTherapistID: in.NewTherapistID,
				Reason:         in.Reason,
				Notes:          in.Notes,
				Timeout:        timeoutOf(in.TimeoutMS),
			})
		})

	addTool(server, logger, "start_over", "Restart a client's therapy with a different therapist and reset progress", identity.ActionAssignClients,
		func(ctx context.Context, caller identity.Caller, in StartOverParams) (any, error) {
			return svcs.Assignments.StartOver(ctx, caller.ClinicID, assignment.StartOverRequest{
				ClientID:       in.ClientID,
				NewTherapistID: in.NewTherapistID,
				Reason:         in.Reason,
				Notes:          in.Notes,
				Timeout:        timeoutOf(in.TimeoutMS),
			})
		})

	addTool(server, logger, "advance_client", "Move a client one step along the workflow", identity.ActionAdvanceClients,
		func(ctx context.Context, caller identity.Caller, in AdvanceClientParams) (any, error) {
			if err := ensureOwnClient(ctx, svcs.Clients, caller, in.ClientID); err != nil {
				return nil, err
			}
			return svcs.Assignments.Advance(ctx, caller.ClinicID, assignment.AdvanceRequest{
				ClientID: in.ClientID,
				To:       lifecycle.ClientStatus(strings.ToLower(strings.TrimSpace(in.To))),
				Reason:   in.Reason,
				Timeout:  timeoutOf(in.TimeoutMS),
			})
		})

	addTool(server, logger, "client_history", "Get a client with its assignments, sessions and activity", identity.ActionViewClients,
		func(ctx context.Context, caller identity.Caller, in ClientHistoryParams) (any, error) {
			if err := ensureOwnClient(ctx, svcs.Clients, caller, in.ClientID); err != nil {
				return nil, err
			}
			cl, err := svcs.Clients.Get(ctx, caller.ClinicID, in.ClientID)
			if err != nil {
				return nil, err
			}
			out := ClientHistoryResponse{Client: cl}
			if out.Assignments, err = svcs.Assignments.History(ctx, caller.ClinicID, in.ClientID); err != nil {
				return nil, err
			}
			if out.Sessions, err = svcs.Sessions.ListByClient(ctx, caller.ClinicID, in.ClientID); err != nil {
				return nil, err
			}
			if out.Activity, err = svcs.Activity.History(ctx, caller.ClinicID, in.ClientID, in.Limit); err != nil {
				return nil, err
			}
			if out.Assignments == nil {
				out.Assignments = []assignment.Assignment{}
			}
			if out.Sessions == nil {
				out.Sessions = []session.Session{}
			}
			if out.Activity == nil {
				out.Activity = []activity.ActivityEntry{}
			}
			return out, nil
		})
}

func registerSessionTools(server *sdkmcp.Server, svcs Services, logger *slog.Logger) {
	addTool(server, logger, "schedule_session", "Schedule a therapy session for a client in consultation or therapy", identity.ActionRecordSessions,
		func(ctx context.Context, caller identity.Caller, in ScheduleSessionParams) (any, error) {
			if err := ensureOwnClient(ctx, svcs.Clients, caller, in.ClientID); err != nil {
				return nil, err
			}
			at, err := parseTime("at", in.At)
			if err != nil {
				return nil, err
			}
			return svcs.Sessions.Schedule(ctx, caller.ClinicID, session.ScheduleRequest{
				ClientID:    in.ClientID,
				TherapistID: in.TherapistID,
				At:          at,
				Notes:       in.Notes,
			})
		})

	addTool(server, logger, "transition_session", "Start, complete, cancel, mark no-show or reschedule a session", identity.ActionRecordSessions,
		func(ctx context.Context, caller identity.Caller, in TransitionSessionParams) (any, error) {
			if caller.Role == identity.RoleTherapist {
				sess, err := svcs.Sessions.Get(ctx, caller.ClinicID, in.SessionID)
				if err != nil {
					return nil, err
				}
				if sess.TherapistID != caller.UserID {
					return nil, fmt.Errorf("%w: session %s belongs to another therapist", identity.ErrForbidden, in.SessionID)
				}
			}
			req := session.TransitionRequest{
				SessionID: in.SessionID,
				To:        lifecycle.SessionStatus(strings.ToLower(strings.TrimSpace(in.To))),
				Progress:  in.Progress,
			}
			if in.At != "" {
				at, err := parseTime("at", in.At)
				if err != nil {
					return nil, err
				}
				req.At = &at
			}
			return svcs.Sessions.Transition(ctx, caller.ClinicID, req)
		})
}

func registerActivityTools(server *sdkmcp.Server, svcs Services, logger *slog.Logger) {
	addTool(server, logger, "get_recent_activity", "List recent clinic activity, newest first", identity.ActionViewClients,
		func(ctx context.Context, caller identity.Caller, in RecentActivityParams) (any, error) {
			opts := activity.ListActivityOptions{Limit: in.Limit, Offset: in.Offset}
			if in.Type != "" {
				t := activity.ActivityType(in.Type)
				opts.ActivityType = &t
			}
			entries, err := svcs.Activity.GetRecentActivity(ctx, caller.ClinicID, opts)
			if err != nil {
				return nil, err
			}
			if entries == nil {
				entries = []activity.ActivityEntry{}
			}
			return entries, nil
		})
}
