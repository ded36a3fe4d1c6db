package client

import (
	"time"

	"github.com/rpggio/caseload/internal/domain/lifecycle"
)

// Client is a person moving through the therapy workflow of a clinic.
type Client struct {
	ID                  string                 `json:"id"`
	ClinicID            string                 `json:"clinic_id"`
	Name                string                 `json:"name"`
	Status              lifecycle.ClientStatus `json:"status"`
	AssignedTherapistID *string                `json:"assigned_therapist_id,omitempty"`
	JoinDate            time.Time              `json:"join_date"`
	TotalSessions       int                    `json:"total_sessions"`
	Progress            int                    `json:"progress"`
	LastSession         *time.Time             `json:"last_session,omitempty"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// Clone returns a deep copy.
func (c *Client) Clone() *Client {
	if c == nil {
		return nil
	}
	out := *c
	if c.AssignedTherapistID != nil {
		id := *c.AssignedTherapistID
		out.AssignedTherapistID = &id
	}
	if c.LastSession != nil {
		at := *c.LastSession
		out.LastSession = &at
	}
	return &out
}

// TherapistID returns the assigned therapist or "".
func (c *Client) TherapistID() string {
	if c == nil || c.AssignedTherapistID == nil {
		return ""
	}
	return *c.AssignedTherapistID
}

// Patch is a partial client update. Nil fields are left unchanged.
// AddSessions is added to the stored session count in the same write, after
// TotalSessions when both are set.
type Patch struct {
	Status         *lifecycle.ClientStatus `json:"status,omitempty"`
	TherapistID    *string                 `json:"therapist_id,omitempty"`
	ClearTherapist bool                    `json:"clear_therapist,omitempty"`
	TotalSessions  *int                    `json:"total_sessions,omitempty"`
	AddSessions    int                     `json:"add_sessions,omitempty"`
	Progress       *int                    `json:"progress,omitempty"`
	LastSession    *time.Time              `json:"last_session,omitempty"`
}

// Apply returns a copy of c with the patch applied.
func (p Patch) Apply(c *Client) *Client {
	out := c.Clone()
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.ClearTherapist {
		out.AssignedTherapistID = nil
	}
	if p.TherapistID != nil {
		id := *p.TherapistID
		out.AssignedTherapistID = &id
	}
	if p.TotalSessions != nil {
		out.TotalSessions = *p.TotalSessions
	}
	out.TotalSessions += p.AddSessions
	if p.Progress != nil {
		out.Progress = *p.Progress
	}
	if p.LastSession != nil {
		at := *p.LastSession
		out.LastSession = &at
	}
	return out
}

// Restore builds the patch that puts the workflow fields of a client back to
// the values in prev.
func Restore(prev *Client) Patch {
	status := prev.Status
	p := Patch{Status: &status}
	if prev.AssignedTherapistID == nil {
		p.ClearTherapist = true
	} else {
		id := *prev.AssignedTherapistID
		p.TherapistID = &id
	}
	return p
}
