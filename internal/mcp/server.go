package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/caseload/internal/domain/activity"
	"github.com/rpggio/caseload/internal/domain/assignment"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/session"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/rpggio/caseload/internal/domain/tier"
	"github.com/rpggio/caseload/internal/identity"
)

// ClientService defines client operations needed by MCP.
type ClientService interface {
	Create(ctx context.Context, clinicID string, req client.CreateRequest) (*client.Client, error)
	Get(ctx context.Context, clinicID, id string) (*client.Client, error)
	List(ctx context.Context, clinicID string, opts client.ListOptions) ([]client.Client, error)
}

// TherapistService defines therapist operations needed by MCP.
type TherapistService interface {
	Onboard(ctx context.Context, clinicID string, req therapist.OnboardRequest) (*therapist.Therapist, error)
	SetActivityStatus(ctx context.Context, clinicID, id string, status therapist.ActivityStatus) (*therapist.Therapist, error)
	Get(ctx context.Context, clinicID, id string) (*therapist.Therapist, error)
	List(ctx context.Context, clinicID string) ([]therapist.Therapist, error)
}

// QuotaService defines subscription and usage operations needed by MCP.
type QuotaService interface {
	Catalog() *tier.Catalog
	Subscribe(ctx context.Context, clinicID string, t tier.Tier, cycle tier.BillingCycle) (*quota.Subscription, error)
	Get(ctx context.Context, clinicID string) (*quota.Subscription, error)
	Check(ctx context.Context, clinicID string, metric quota.Metric) error
	ChangeTier(ctx context.Context, clinicID string, t tier.Tier, cycle tier.BillingCycle) (*quota.Subscription, error)
	ResetDaily(ctx context.Context, clinicID string) (*quota.Subscription, error)
	Increment(ctx context.Context, clinicID string, metric quota.Metric, amount int) (int, error)
	Alerts(ctx context.Context, clinicID string) ([]quota.UsageAlert, error)
}

// AssignmentService defines coordinator operations needed by MCP.
type AssignmentService interface {
	Assign(ctx context.Context, clinicID string, req assignment.AssignRequest) (*assignment.Result, error)
	Unassign(ctx context.Context, clinicID string, req assignment.UnassignRequest) (*assignment.Result, error)
	Transfer(ctx context.Context, clinicID string, req assignment.TransferRequest) (*assignment.Result, error)
	StartOver(ctx context.Context, clinicID string, req assignment.StartOverRequest) (*assignment.Result, error)
	Advance(ctx context.Context, clinicID string, req assignment.AdvanceRequest) (*assignment.Result, error)
	History(ctx context.Context, clinicID, clientID string) ([]assignment.Assignment, error)
}

// SessionService defines therapy session operations needed by MCP.
type SessionService interface {
	Schedule(ctx context.Context, clinicID string, req session.ScheduleRequest) (*session.Session, error)
	Transition(ctx context.Context, clinicID string, req session.TransitionRequest) (*session.TransitionResult, error)
	Get(ctx context.Context, clinicID, id string) (*session.Session, error)
	ListByClient(ctx context.Context, clinicID, clientID string) ([]session.Session, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, clinicID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
	History(ctx context.Context, clinicID, clientID string, limit int) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Clients     ClientService
	Therapists  TherapistService
	Quota       QuotaService
	Assignments AssignmentService
	Sessions    SessionService
	Activity    ActivityService
}

// CallerResolver resolves an API key to a caller.
type CallerResolver interface {
	Resolve(ctx context.Context, key string) (identity.Caller, error)
}

// Config contains server configuration.
type Config struct {
	Services Services
	Resolver CallerResolver
	// AuthEnabled requires bearer API keys. Stdio mode never authenticates
	// and acts as DefaultCaller.
	AuthEnabled   bool
	DefaultCaller identity.Caller
	TransportMode string // "stdio" or "http"
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "caseload",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(cfg.DefaultCaller))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services, cfg.Logger)

	return server
}
