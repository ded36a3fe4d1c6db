// Package testserver runs the caseload MCP server over HTTP for tests.
package testserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/caseload/internal/domain/activity"
	"github.com/rpggio/caseload/internal/domain/assignment"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/session"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/rpggio/caseload/internal/domain/tier"
	"github.com/rpggio/caseload/internal/events"
	"github.com/rpggio/caseload/internal/identity"
	"github.com/rpggio/caseload/internal/mcp"
	"github.com/rpggio/caseload/internal/sqlstore"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlstore.DB
	Bus      *events.Bus
	Token    string
	ClinicID string
}

// New starts an authenticated HTTP server with a clinic_admin key for
// clinicID.
func New(t *testing.T, token, clinicID string) *TestServer {
	t.Helper()

	db, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	bus := events.NewBus(nil)
	clientRepo := sqlstore.NewClientRepository(db)
	therapistRepo := sqlstore.NewTherapistRepository(db)
	gate := quota.NewGate(sqlstore.NewSubscriptionRepository(db), tier.Default(), bus, nil)

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Clients:    client.NewService(clientRepo, nil),
			Therapists: therapist.NewService(therapistRepo, gate, nil),
			Quota:      gate,
			Assignments: assignment.NewService(assignment.Deps{
				Clients:     clientRepo,
				Therapists:  therapistRepo,
				Assignments: sqlstore.NewAssignmentRepository(db),
				Quota:       gate,
				Events:      bus,
			}, assignment.Config{AutoConsultation: true}, nil),
			Sessions: session.NewService(sqlstore.NewSessionRepository(db), clientRepo, bus, nil),
			Activity: activity.NewService(sqlstore.NewActivityRepository(db), nil),
		},
		Resolver:      identity.NewResolver(sqlstore.NewAPIKeyRepository(db), 0),
		AuthEnabled:   true,
		TransportMode: "http",
		Version:       "test",
	})

	handler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
	)
	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	server := httptest.NewServer(mux)

	ts := &TestServer{
		Server:   server,
		DB:       db,
		Bus:      bus,
		Token:    token,
		ClinicID: clinicID,
	}

	require.NoError(t, ts.AddAPIKey(token, clinicID, identity.RoleClinicAdmin))

	t.Cleanup(func() {
		server.Close()
		bus.Close()
		_ = db.Close()
	})

	return ts
}

// AddAPIKey grants token the role within clinicID.
func (ts *TestServer) AddAPIKey(token, clinicID string, role identity.Role) error {
	return sqlstore.NewAPIKeyRepository(ts.DB).Issue(context.Background(), identity.KeyRecord{
		KeyHash:  identity.HashKey(token),
		ClinicID: clinicID,
		UserID:   string(role) + "-user",
		Role:     string(role),
	}, "test key")
}

// Connect opens an MCP client session that sends token as a bearer key.
func (ts *TestServer) Connect(t *testing.T, token string) *sdkmcp.ClientSession {
	t.Helper()

	transport := &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{token: token}},
	}
	c := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := c.Connect(context.Background(), transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

type bearerTransport struct {
	token string
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(req)
}
