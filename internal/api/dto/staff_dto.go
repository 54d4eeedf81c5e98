package dto

import (
	v "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TransferRequest names the agent who receives the ticket.
type TransferRequest struct {
	AgentID string `json:"agent_id"`
}

// Validate implements Validatable.
func (r *TransferRequest) Validate() error {
	return validateStruct(r, v.Field(&r.AgentID, v.Required, is.UUID))
}

// SetRolesRequest replaces a profile's staff roles.
type SetRolesRequest struct {
	IsSupport bool `json:"is_support"`
	IsAdmin   bool `json:"is_admin"`
}

// AssignmentResponse is the live assignment of a ticket.
type AssignmentResponse struct {
	TicketID   string `json:"ticket_id"`
	AgentID    string `json:"agent_id"`
	AssignedBy string `json:"assigned_by,omitempty"`
}

// NewAssignmentResponse maps an assignment; nil stays nil.
func NewAssignmentResponse(a *domain.Assignment) *AssignmentResponse {
	if a == nil {
		return nil
	}
	return &AssignmentResponse{TicketID: a.TicketID, AgentID: a.AgentID, AssignedBy: a.AssignedBy}
}
