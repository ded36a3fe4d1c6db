package sqlstore

import "strings"

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS subscriptions (
    clinic_id TEXT PRIMARY KEY,
    tier TEXT NOT NULL CHECK(tier IN ('beta', 'alpha', 'theta')),
    billing_cycle TEXT NOT NULL CHECK(billing_cycle IN ('monthly', 'annual')),
    limit_therapists INTEGER NOT NULL,
    limit_clients_per_day INTEGER NOT NULL,
    limit_scripts_per_day INTEGER NOT NULL,
    therapists INTEGER NOT NULL DEFAULT 0,
    clients_today INTEGER NOT NULL DEFAULT 0,
    clients_this_month INTEGER NOT NULL DEFAULT 0,
    scripts_today INTEGER NOT NULL DEFAULT 0,
    scripts_this_month INTEGER NOT NULL DEFAULT 0,
    billing_cents BIGINT NOT NULL,
    usage_date {{TIMESTAMP}} NOT NULL,
    created_at {{TIMESTAMP}} NOT NULL,
    updated_at {{TIMESTAMP}} NOT NULL,
    version BIGINT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS therapists (
    id TEXT NOT NULL,
    clinic_id TEXT NOT NULL,
    name TEXT NOT NULL,
    activity_status TEXT NOT NULL CHECK(activity_status IN ('active', 'pending_setup', 'inactive')),
    max_clients INTEGER NOT NULL DEFAULT 0,
    created_at {{TIMESTAMP}} NOT NULL,
    PRIMARY KEY (clinic_id, id)
);

CREATE TABLE IF NOT EXISTS clients (
    id TEXT NOT NULL,
    clinic_id TEXT NOT NULL,
    name TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('new', 'assigned', 'consultation', 'therapy', 'done')),
    therapist_id TEXT,
    join_date {{TIMESTAMP}} NOT NULL,
    total_sessions INTEGER NOT NULL DEFAULT 0,
    progress INTEGER NOT NULL DEFAULT 0 CHECK(progress BETWEEN 0 AND 100),
    last_session {{TIMESTAMP}},
    updated_at {{TIMESTAMP}} NOT NULL,
    PRIMARY KEY (clinic_id, id),
    FOREIGN KEY (clinic_id, therapist_id) REFERENCES therapists(clinic_id, id)
);
CREATE INDEX IF NOT EXISTS idx_clients_therapist ON clients(clinic_id, therapist_id);
CREATE INDEX IF NOT EXISTS idx_clients_status ON clients(clinic_id, status);

CREATE TABLE IF NOT EXISTS assignments (
    id TEXT PRIMARY KEY,
    clinic_id TEXT NOT NULL,
    client_id TEXT NOT NULL,
    therapist_id TEXT NOT NULL,
    previous_therapist_id TEXT,
    reason TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    created_at {{TIMESTAMP}} NOT NULL,
    FOREIGN KEY (clinic_id, client_id) REFERENCES clients(clinic_id, id),
    FOREIGN KEY (clinic_id, therapist_id) REFERENCES therapists(clinic_id, id)
);
CREATE INDEX IF NOT EXISTS idx_assignments_client ON assignments(clinic_id, client_id);

CREATE TABLE IF NOT EXISTS therapy_sessions (
    id TEXT PRIMARY KEY,
    clinic_id TEXT NOT NULL,
    client_id TEXT NOT NULL,
    therapist_id TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('new', 'scheduled', 'started', 'completed', 'cancelled', 'no_show')),
    scheduled_at {{TIMESTAMP}} NOT NULL,
    started_at {{TIMESTAMP}},
    completed_at {{TIMESTAMP}},
    notes TEXT NOT NULL DEFAULT '',
    created_at {{TIMESTAMP}} NOT NULL,
    updated_at {{TIMESTAMP}} NOT NULL,
    FOREIGN KEY (clinic_id, client_id) REFERENCES clients(clinic_id, id)
);
CREATE INDEX IF NOT EXISTS idx_sessions_client ON therapy_sessions(clinic_id, client_id);

CREATE TABLE IF NOT EXISTS activity_log (
    id {{SERIAL}},
    clinic_id TEXT NOT NULL,
    event_id TEXT NOT NULL UNIQUE,
    client_id TEXT,
    activity_type TEXT NOT NULL,
    summary TEXT NOT NULL,
    details TEXT,
    created_at {{TIMESTAMP}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_clinic ON activity_log(clinic_id, created_at);
CREATE INDEX IF NOT EXISTS idx_activity_client ON activity_log(clinic_id, client_id);

CREATE TABLE IF NOT EXISTS api_keys (
    key_hash TEXT PRIMARY KEY,
    clinic_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    role TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at {{TIMESTAMP}} NOT NULL,
    last_used {{TIMESTAMP}}
);
CREATE INDEX IF NOT EXISTS idx_api_keys_clinic ON api_keys(clinic_id);
`

// schema returns the DDL statements for a dialect.
func schema(d Dialect) []string {
	r := strings.NewReplacer(
		"{{TIMESTAMP}}", "TIMESTAMP",
		"{{SERIAL}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
	)
	if d == DialectPostgres {
		r = strings.NewReplacer(
			"{{TIMESTAMP}}", "TIMESTAMPTZ",
			"{{SERIAL}}", "BIGSERIAL PRIMARY KEY",
		)
	}

	var stmts []string
	for _, stmt := range strings.Split(r.Replace(schemaTemplate), ";") {
		if strings.TrimSpace(stmt) != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
