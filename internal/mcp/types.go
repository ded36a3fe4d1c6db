package mcp

import (
	"github.com/rpggio/caseload/internal/domain/activity"
	"github.com/rpggio/caseload/internal/domain/assignment"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/session"
	"github.com/rpggio/caseload/internal/domain/tier"
)

type EmptyParams struct{}

type SubscribeParams struct {
	Tier  string `json:"tier" jsonschema:"tier name: beta, alpha or theta"`
	Cycle string `json:"cycle,omitempty" jsonschema:"billing cycle: monthly (default) or annual"`
}

type CheckQuotaParams struct {
	Metric string `json:"metric" jsonschema:"therapists, clientsToday or scriptsToday"`
}

type RecordScriptUsageParams struct {
	Amount int `json:"amount,omitempty" jsonschema:"number of scripts generated (default 1)"`
}

type CreateClientParams struct {
	ID   string `json:"id,omitempty" jsonschema:"client id (generated when omitted)"`
	Name string `json:"name" jsonschema:"client display name"`
}

type ClientIDParams struct {
	ClientID string `json:"client_id" jsonschema:"client id"`
}

type ListClientsParams struct {
	Status      string `json:"status,omitempty" jsonschema:"filter by status: new, assigned, consultation, therapy, done"`
	TherapistID string `json:"therapist_id,omitempty" jsonschema:"filter by assigned therapist"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
	Offset      int    `json:"offset,omitempty" jsonschema:"offset for pagination"`
}

type OnboardTherapistParams struct {
	ID         string `json:"id,omitempty" jsonschema:"therapist id (generated when omitted)"`
	Name       string `json:"name" jsonschema:"therapist display name"`
	MaxClients int    `json:"max_clients,omitempty" jsonschema:"maximum concurrent clients (0 means no cap)"`
}

type SetTherapistStatusParams struct {
	TherapistID string `json:"therapist_id" jsonschema:"therapist id"`
	Status      string `json:"status" jsonschema:"active, pending_setup or inactive"`
}

type AssignClientParams struct {
	ClientID         string `json:"client_id" jsonschema:"client to assign; must be new"`
	TherapistID      string `json:"therapist_id" jsonschema:"active therapist with free capacity"`
	Notes            string `json:"notes,omitempty" jsonschema:"free-form notes stored on the assignment"`
	AutoConsultation *bool  `json:"auto_consultation,omitempty" jsonschema:"move straight to consultation (server default when omitted)"`
	TimeoutMS        int    `json:"timeout_ms,omitempty" jsonschema:"per-call timeout in milliseconds"`
}

type UnassignClientParams struct {
	ClientID  string `json:"client_id" jsonschema:"client to release"`
	Reason    string `json:"reason,omitempty" jsonschema:"why the client is released"`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema:"per-call timeout in milliseconds"`
}

type TransferAssignmentParams struct {
	AssignmentID   string `json:"assignment_id" jsonschema:"current assignment of the client"`
	NewTherapistID string `json:"new_therapist_id" jsonschema:"therapist taking over"`
	Reason         string `json:"reason" jsonschema:"required reason for the transfer"`
	Notes          string `json:"notes,omitempty" jsonschema:"free-form notes"`
	TimeoutMS      int    `json:"timeout_ms,omitempty" jsonschema:"per-call timeout in milliseconds"`
}

type StartOverParams struct {
	ClientID       string `json:"client_id" jsonschema:"client to restart"`
	NewTherapistID string `json:"new_therapist_id" jsonschema:"therapist taking over"`
	Reason         string `json:"reason" jsonschema:"required reason for starting over"`
	Notes          string `json:"notes,omitempty" jsonschema:"free-form notes"`
	TimeoutMS      int    `json:"timeout_ms,omitempty" jsonschema:"per-call timeout in milliseconds"`
}

type AdvanceClientParams struct {
	ClientID  string `json:"client_id" jsonschema:"client to advance"`
	To        string `json:"to" jsonschema:"target status: consultation, therapy or done"`
	Reason    string `json:"reason,omitempty" jsonschema:"optional note recorded with the transition"`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema:"per-call timeout in milliseconds"`
}

type ClientHistoryParams struct {
	ClientID string `json:"client_id" jsonschema:"client id"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of activity entries"`
}

type ScheduleSessionParams struct {
	ClientID    string `json:"client_id" jsonschema:"client in consultation or therapy"`
	TherapistID string `json:"therapist_id,omitempty" jsonschema:"defaults to the client's therapist"`
	At          string `json:"at" jsonschema:"RFC 3339 start time"`
	Notes       string `json:"notes,omitempty" jsonschema:"free-form notes"`
}

type TransitionSessionParams struct {
	SessionID string `json:"session_id" jsonschema:"session id"`
	To        string `json:"to" jsonschema:"scheduled, started, completed, cancelled or no_show"`
	At        string `json:"at,omitempty" jsonschema:"RFC 3339 time; required when rescheduling"`
	Progress  *int   `json:"progress,omitempty" jsonschema:"client progress 0-100 recorded on completion"`
}

type RecentActivityParams struct {
	Type   string `json:"type,omitempty" jsonschema:"filter by activity type"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
	Offset int    `json:"offset,omitempty" jsonschema:"offset for pagination"`
}

// PlanResponse is a catalog entry with both billing prices.
type PlanResponse struct {
	Tier        tier.Tier   `json:"tier"`
	Name        string      `json:"name"`
	Limits      tier.Limits `json:"limits"`
	MonthlyCost int64       `json:"monthly_cents"`
	AnnualCost  int64       `json:"annual_cents"`
}

type UsageResponse struct {
	Subscription *quota.Subscription `json:"subscription"`
	Alerts       []quota.UsageAlert  `json:"alerts"`
}

type QuotaCheckResponse struct {
	Metric  quota.Metric `json:"metric"`
	Allowed bool         `json:"allowed"`
	Usage   int          `json:"usage"`
	Limit   int          `json:"limit"`
}

type ScriptUsageResponse struct {
	Applied int                `json:"applied"`
	Alerts  []quota.UsageAlert `json:"alerts"`
}

type ClientHistoryResponse struct {
	Client      *client.Client           `json:"client"`
	Assignments []assignment.Assignment  `json:"assignments"`
	Sessions    []session.Session        `json:"sessions"`
	Activity    []activity.ActivityEntry `json:"activity"`
}
