package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	mw "github.com/lorrc/support-engine/internal/adapters/primary/http/middleware"
	"github.com/lorrc/support-engine/internal/adapters/primary/validation"
	"github.com/lorrc/support-engine/internal/auth"
	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/lorrc/support-engine/internal/core/ports"
)

// MessageHandler handles HTTP requests for ticket threads.
type MessageHandler struct {
	messageService ports.MessageService
	errorHandler   *ErrorHandler
	logger         *slog.Logger
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(
	messageService ports.MessageService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		errorHandler:   errorHandler,
		logger:         logger.With("handler", "message"),
	}
}

// RegisterRoutes registers the thread endpoints.
// These routes are relative to /api/v1/tickets/{ticketID}/messages
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandlePostMessage)
	r.Get("/", h.HandleListMessages)
}

// PostMessageRequest defines the expected JSON body for posting a message
type PostMessageRequest struct {
	Body string `json:"body"`
}

// Validate validates the post message request
func (r *PostMessageRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("body", r.Body).
		MaxLength("body", r.Body, domain.MaxMessageBodyLength)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// MessageDTO defines the JSON response for thread entries.
type MessageDTO struct {
	ID        string `json:"id"`
	TicketID  int64  `json:"ticketId"`
	AuthorID  string `json:"authorId"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

func toMessageDTO(message *domain.Message) MessageDTO {
	return MessageDTO{
		ID:        strconv.FormatInt(message.ID, 10),
		TicketID:  message.TicketID,
		AuthorID:  message.AuthorID.String(),
		Body:      message.Body,
		CreatedAt: message.CreatedAt.Format(time.RFC3339),
	}
}

// HandlePostMessage handles POST /tickets/{ticketID}/messages
func (h *MessageHandler) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	ticketID, err := parseThreadTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[PostMessageRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	message, err := h.messageService.PostMessage(r.Context(), ports.PostMessageParams{
		TicketID: ticketID,
		AuthorID: claims.UserID,
		Body:     req.Body,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toMessageDTO(message))
}

// HandleListMessages handles GET /tickets/{ticketID}/messages
func (h *MessageHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.getClaims(w, r); !ok {
		return
	}

	ticketID, err := parseThreadTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	messages, err := h.messageService.ListMessages(r.Context(), ticketID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	response := make([]MessageDTO, 0, len(messages))
	for _, message := range messages {
		response = append(response, toMessageDTO(message))
	}

	WriteList(w, response)
}

func (h *MessageHandler) getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
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

func parseThreadTicketID(r *http.Request) (int64, error) {
	ticketIDStr := chi.URLParam(r, "ticketID")
	ticketID, err := strconv.ParseInt(ticketIDStr, 10, 64)
	if err != nil || ticketID <= 0 {
		v := validation.NewValidator()
		v.Custom("ticketID", false, "Invalid ticket ID")
		return 0, v.Errors()
	}
	return ticketID, nil
}
