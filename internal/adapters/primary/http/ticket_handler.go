package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/lorrc/support-engine/internal/adapters/primary/http/middleware"
	"github.com/lorrc/support-engine/internal/adapters/primary/validation"
	"github.com/lorrc/support-engine/internal/auth"
	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/lorrc/support-engine/internal/core/ports"
)

const (
	maxTicketsPerPage    = 100
	maxDescriptionLength = 5000
)

var (
	allowedPriorities = []string{"LOW", "MEDIUM", "HIGH", "URGENT", "CRITICAL"}
	allowedStatuses   = []string{"OPEN", "ASSIGNED", "IN_PROGRESS", "WAITING_CUSTOMER", "ESCALATED", "RESOLVED", "CLOSED"}
)

// TicketHandler handles HTTP requests for tickets
type TicketHandler struct {
	ticketService     ports.TicketService
	escalationService ports.EscalationService
	messageHandler    *MessageHandler
	errorHandler      *ErrorHandler
	logger            *slog.Logger
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(
	ticketService ports.TicketService,
	escalationService ports.EscalationService,
	messageHandler *MessageHandler,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TicketHandler {
	return &TicketHandler{
		ticketService:     ticketService,
		escalationService: escalationService,
		messageHandler:    messageHandler,
		errorHandler:      errorHandler,
		logger:            logger.With("handler", "ticket"),
	}
}

// RegisterRoutes sets up the routing for all ticket endpoints.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListTickets)
	r.Post("/", h.HandleCreateTicket)
	r.Get("/overdue", h.HandleListOverdue)

	// Routes for a specific ticket
	r.Route("/{ticketID}", func(r chi.Router) {
		r.Get("/", h.HandleGetTicket)
		r.Patch("/status", h.HandleUpdateTicketStatus)
		r.Patch("/assignee", h.HandleAssignTicket)
		r.Patch("/priority", h.HandleChangePriority)
		r.Post("/escalate", h.HandleEscalateTicket)

		// Conversation thread
		r.Route("/messages", h.messageHandler.RegisterRoutes)
	})
}

// --- Request/Response DTOs ---

// CreateTicketRequest defines the expected JSON body for creating a ticket.
// Category and priority are optional: when absent they are derived from the
// description.
type CreateTicketRequest struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	CustomerID  string `json:"customerId"`
	HighUrgency bool   `json:"highUrgency"`
}

// Validate validates the create ticket request
func (r *CreateTicketRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("description", r.Description).
		MaxLength("description", r.Description, maxDescriptionLength)

	v.Required("customerId", r.CustomerID).
		UUID("customerId", r.CustomerID)

	if r.Priority != "" {
		v.OneOf("priority", r.Priority, allowedPriorities)
	}

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// UpdateStatusRequest defines the expected JSON body for status updates
type UpdateStatusRequest struct {
	Status          string `json:"status"`
	ResolutionNotes string `json:"resolutionNotes"`
}

// Validate validates the update status request
func (r *UpdateStatusRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("status", r.Status).
		OneOf("status", r.Status, allowedStatuses)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// AssignTicketRequest defines the expected JSON body for assigning a ticket
type AssignTicketRequest struct {
	AgentID string `json:"agentId"`
}

// Validate validates the assign ticket request
func (r *AssignTicketRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("agentId", r.AgentID).
		UUID("agentId", r.AgentID)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// ChangePriorityRequest defines the expected JSON body for priority changes
type ChangePriorityRequest struct {
	Priority string `json:"priority"`
}

// Validate validates the change priority request
func (r *ChangePriorityRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("priority", r.Priority).
		OneOf("priority", r.Priority, allowedPriorities)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// EscalateTicketRequest defines the expected JSON body for escalations
type EscalateTicketRequest struct {
	Reason      string `json:"reason"`
	TargetAgent string `json:"targetAgent"`
}

// Validate validates the escalate ticket request
func (r *EscalateTicketRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("reason", r.Reason)

	if r.TargetAgent != "" {
		v.UUID("targetAgent", r.TargetAgent)
	}

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// TicketDTO defines the JSON response for tickets.
type TicketDTO struct {
	domain.TicketSnapshot
	Description string            `json:"description"`
	SLA         *domain.SLAReport `json:"sla,omitempty"`
}

func toTicketDTO(ticket *domain.Ticket) TicketDTO {
	return TicketDTO{
		TicketSnapshot: domain.NewTicketSnapshot(ticket),
		Description:    ticket.Description,
	}
}

func toTicketDTOWithSLA(item *ports.TicketWithSLA) TicketDTO {
	dto := toTicketDTO(item.Ticket)
	sla := item.SLA
	dto.SLA = &sla
	return dto
}

func toTicketDTOs(tickets []*domain.Ticket) []TicketDTO {
	response := make([]TicketDTO, 0, len(tickets))
	for _, ticket := range tickets {
		response = append(response, toTicketDTO(ticket))
	}
	return response
}

// --- Handlers ---

// HandleListTickets handles GET /tickets
func (h *TicketHandler) HandleListTickets(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.getClaims(w, r); !ok {
		return
	}

	pagination := validation.ParsePagination(r, maxTicketsPerPage)

	status := validation.ParseStringQueryParam(r, "status")
	priority := validation.ParseStringQueryParam(r, "priority")
	unassigned := validation.ParseBoolQueryParam(r, "unassigned", false)

	v := validation.NewValidator()

	var agentID *uuid.UUID
	if agentIDStr := r.URL.Query().Get("agentId"); agentIDStr != "" {
		parsed, err := uuid.Parse(agentIDStr)
		if err != nil {
			v.Custom("agentId", false, "Must be a valid UUID")
		} else {
			agentID = &parsed
		}
	}

	if status != nil {
		v.OneOf("status", *status, allowedStatuses)
	}
	if priority != nil {
		v.OneOf("priority", *priority, allowedPriorities)
	}

	// An unassigned view and an agent filter are mutually exclusive.
	if unassigned {
		agentID = nil
	}

	if v.HasErrors() {
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	params := ports.ListTicketsParams{
		Status:     status,
		Priority:   priority,
		AgentID:    agentID,
		Unassigned: unassigned,
		Limit:      pagination.Limit,
		Offset:     pagination.Offset,
	}

	tickets, err := h.ticketService.ListTickets(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WritePaginatedSimple(w, toTicketDTOs(tickets), pagination.Limit, pagination.Offset)
}

// HandleCreateTicket handles POST /tickets
func (h *TicketHandler) HandleCreateTicket(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeAndValidate[CreateTicketRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params := ports.CreateTicketParams{
		Description: req.Description,
		Category:    req.Category,
		Priority:    domain.TicketPriority(req.Priority),
		CustomerID:  customerID,
		HighUrgency: req.HighUrgency,
	}

	ticket, err := h.ticketService.CreateTicket(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket created",
		"ticket_code", ticket.Code,
		"user_id", claims.UserID,
	)

	WriteCreated(w, toTicketDTO(ticket))
}

// HandleGetTicket handles GET /tickets/{ticketID}
func (h *TicketHandler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.getClaims(w, r); !ok {
		return
	}

	ticketID, err := h.parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.ticketService.GetTicket(r.Context(), ticketID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTicketDTOWithSLA(ticket))
}

// HandleUpdateTicketStatus handles PATCH /tickets/{ticketID}/status
func (h *TicketHandler) HandleUpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	ticketID, err := h.parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[UpdateStatusRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params := ports.UpdateStatusParams{
		TicketID:        ticketID,
		Status:          domain.TicketStatus(req.Status),
		ResolutionNotes: req.ResolutionNotes,
	}

	ticket, err := h.ticketService.UpdateStatus(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket status updated",
		"ticket_code", ticket.Code,
		"new_status", req.Status,
		"user_id", claims.UserID,
	)

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleAssignTicket handles PATCH /tickets/{ticketID}/assignee
func (h *TicketHandler) HandleAssignTicket(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	ticketID, err := h.parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[AssignTicketRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params := ports.AssignTicketParams{
		TicketID: ticketID,
		AgentID:  agentID,
	}

	ticket, err := h.ticketService.AssignTicket(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket assigned",
		"ticket_code", ticket.Code,
		"agent_id", agentID,
		"user_id", claims.UserID,
	)

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleChangePriority handles PATCH /tickets/{ticketID}/priority
func (h *TicketHandler) HandleChangePriority(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	ticketID, err := h.parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[ChangePriorityRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params := ports.ChangePriorityParams{
		TicketID: ticketID,
		Priority: domain.TicketPriority(req.Priority),
	}

	ticket, err := h.ticketService.ChangePriority(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket priority changed",
		"ticket_code", ticket.Code,
		"priority", req.Priority,
		"user_id", claims.UserID,
	)

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleEscalateTicket handles POST /tickets/{ticketID}/escalate
func (h *TicketHandler) HandleEscalateTicket(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	ticketID, err := h.parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[EscalateTicketRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	var targetAgent *uuid.UUID
	if req.TargetAgent != "" {
		parsed, err := uuid.Parse(req.TargetAgent)
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
		targetAgent = &parsed
	}

	params := ports.EscalateParams{
		TicketID:    ticketID,
		Reason:      req.Reason,
		Actor:       claims.UserID.String(),
		TargetAgent: targetAgent,
	}

	ticket, err := h.escalationService.Escalate(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket escalated",
		"ticket_code", ticket.Code,
		"priority", string(ticket.Priority),
		"user_id", claims.UserID,
	)

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleListOverdue handles GET /tickets/overdue
func (h *TicketHandler) HandleListOverdue(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.getClaims(w, r); !ok {
		return
	}

	overdue, err := h.ticketService.ListOverdue(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	response := make([]TicketDTO, 0, len(overdue))
	for _, item := range overdue {
		response = append(response, toTicketDTOWithSLA(item))
	}

	WriteList(w, response)
}

// --- Helper methods ---

// getClaims extracts and validates user claims from the request context
func (h *TicketHandler) getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := mw.GetClaims(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Not authorized",
			Code:  "UNAUTHORIZED",
		})
		return nil, false
	}
	return claims, true
}

// parseTicketID extracts and validates the ticket ID from the URL
func (h *TicketHandler) parseTicketID(r *http.Request) (int64, error) {
	ticketIDStr := chi.URLParam(r, "ticketID")
	ticketID, err := strconv.ParseInt(ticketIDStr, 10, 64)
	if err != nil || ticketID <= 0 {
		v := validation.NewValidator()
		v.Custom("ticketID", false, "Invalid ticket ID")
		return 0, v.Errors()
	}
	return ticketID, nil
}
