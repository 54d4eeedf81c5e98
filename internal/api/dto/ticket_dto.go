package dto

import (
	"time"

	v "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/handoff"
)

func statusValues() []interface{} {
	out := make([]interface{}, 0, len(domain.TicketStatuses))
	for _, s := range domain.TicketStatuses {
		out = append(out, s)
	}
	return out
}

func priorityValues() []interface{} {
	out := make([]interface{}, 0, len(domain.TicketPriorities))
	for _, p := range domain.TicketPriorities {
		out = append(out, p)
	}
	return out
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Priority       domain.TicketPriority `json:"priority"`
	InitialMessage *string               `json:"initial_message"`
}

// Validate implements Validatable.
func (r *CreateTicketRequest) Validate() error {
	return validateStruct(r,
		v.Field(&r.Title, v.Required, v.RuneLength(3, 200)),
		v.Field(&r.Description, v.RuneLength(0, 10000)),
		v.Field(&r.Priority, v.In(priorityValues()...)),
		v.Field(&r.InitialMessage, v.RuneLength(0, 10000)),
	)
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body string `json:"body"`
}

// Validate implements Validatable.
func (r *CreateMessageRequest) Validate() error {
	return validateStruct(r, v.Field(&r.Body, v.Required, v.RuneLength(1, 10000)))
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// Validate implements Validatable.
func (r *UpdateStatusRequest) Validate() error {
	return validateStruct(r, v.Field(&r.Status, v.Required, v.In(statusValues()...)))
}

// UpdatePriorityRequest payload.
type UpdatePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// Validate implements Validatable.
func (r *UpdatePriorityRequest) Validate() error {
	return validateStruct(r, v.Field(&r.Priority, v.Required, v.In(priorityValues()...)))
}

// RatingRequest payload.
type RatingRequest struct {
	Rating   int     `json:"rating"`
	Feedback *string `json:"feedback"`
}

// Validate implements Validatable.
func (r *RatingRequest) Validate() error {
	return validateStruct(r,
		v.Field(&r.Rating, v.Required, v.Min(domain.MinRating), v.Max(domain.MaxRating)),
		v.Field(&r.Feedback, v.RuneLength(0, 2000)),
	)
}

// TicketResponse is the ticket itself.
type TicketResponse struct {
	ID             string                `json:"id"`
	UserID         string                `json:"user_id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	InitialMessage *string               `json:"initial_message,omitempty"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	ClosedAt       *time.Time            `json:"closed_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             t.ID,
		UserID:         t.UserID,
		Title:          t.Title,
		Description:    t.Description,
		InitialMessage: t.InitialMessage,
		Status:         t.Status,
		Priority:       t.Priority,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		ClosedAt:       t.ClosedAt,
	}
}

// NewTicketResponses maps a list.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// MessageResponse represents one conversation entry.
type MessageResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  *string   `json:"author_id"`
	Body      string    `json:"body"`
	IsBot     bool      `json:"is_bot"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessageResponse maps a message; nil stays nil.
func NewMessageResponse(m *domain.Message) *MessageResponse {
	if m == nil {
		return nil
	}
	return &MessageResponse{
		ID:        m.ID,
		TicketID:  m.TicketID,
		AuthorID:  m.AuthorID,
		Body:      m.Body,
		IsBot:     m.IsBot,
		CreatedAt: m.CreatedAt,
	}
}

// TicketDetailResponse is a ticket with its conversation and assignment.
type TicketDetailResponse struct {
	Ticket     TicketResponse      `json:"ticket"`
	Messages   []MessageResponse   `json:"messages"`
	Assignment *AssignmentResponse `json:"assignment"`
}

// NewTicketDetailResponse maps the detail view.
func NewTicketDetailResponse(t *domain.Ticket, messages []domain.Message, a *domain.Assignment) TicketDetailResponse {
	out := TicketDetailResponse{
		Ticket:     NewTicketResponse(t),
		Messages:   make([]MessageResponse, 0, len(messages)),
		Assignment: NewAssignmentResponse(a),
	}
	for i := range messages {
		out.Messages = append(out.Messages, *NewMessageResponse(&messages[i]))
	}
	return out
}

// AssistantResponse tells the client what happened after its message.
type AssistantResponse struct {
	Outcome         handoff.OutcomeKind `json:"outcome"`
	Reply           *MessageResponse    `json:"reply,omitempty"`
	Acknowledgement string              `json:"acknowledgement,omitempty"`
}

// NewAssistantResponse maps a handoff outcome; nil stays nil.
func NewAssistantResponse(o *handoff.Outcome) *AssistantResponse {
	if o == nil {
		return nil
	}
	return &AssistantResponse{
		Outcome:         o.Kind,
		Reply:           NewMessageResponse(o.Reply),
		Acknowledgement: o.Acknowledgement,
	}
}

// MessagePostedResponse is returned after appending a message.
type MessagePostedResponse struct {
	Ticket    TicketResponse     `json:"ticket"`
	Message   *MessageResponse   `json:"message"`
	Assistant *AssistantResponse `json:"assistant,omitempty"`
}

// HistoryResponse is one journal entry.
type HistoryResponse struct {
	ID        string         `json:"id"`
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	ActorID   *string        `json:"actor_id"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewHistoryResponses maps journal entries.
func NewHistoryResponses(entries []domain.TicketHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryResponse{
			ID:        e.ID,
			EventID:   e.EventID,
			EventType: e.EventType,
			ActorID:   e.ActorID,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// RatingResponse is a stored rating.
type RatingResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Rating    int       `json:"rating"`
	Feedback  *string   `json:"feedback"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRatingResponse maps a rating.
func NewRatingResponse(r *domain.Rating) RatingResponse {
	return RatingResponse{ID: r.ID, TicketID: r.TicketID, Rating: r.Rating, Feedback: r.Feedback, CreatedAt: r.CreatedAt}
}

// SurveyResponse is a rating with ticket context.
type SurveyResponse struct {
	RatingResponse
	TicketTitle    string                `json:"ticket_title"`
	TicketPriority domain.TicketPriority `json:"ticket_priority"`
	OwnerNickname  *string               `json:"owner_nickname"`
}

// NewSurveyResponses maps surveys.
func NewSurveyResponses(surveys []domain.Survey) []SurveyResponse {
	out := make([]SurveyResponse, 0, len(surveys))
	for i := range surveys {
		s := surveys[i]
		out = append(out, SurveyResponse{
			RatingResponse: NewRatingResponse(&s.Rating),
			TicketTitle:    s.TicketTitle,
			TicketPriority: s.TicketPriority,
			OwnerNickname:  s.OwnerNickname,
		})
	}
	return out
}
