package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/RichardoC/companion-chat/internal/db"
	"github.com/RichardoC/companion-chat/internal/llm"
	"github.com/RichardoC/companion-chat/internal/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Store is the persistence the handlers read and write.
type Store interface {
	CreateUser(ctx context.Context, username string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetConversation(ctx context.Context, userID, chatbotID int64) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)
	Ping(ctx context.Context) error
}

// Assembler turns an incoming message into a stored exchange and a reply.
type Assembler interface {
	ProcessMessage(ctx context.Context, userID, chatbotID int64, content string) (*models.Message, error)
}

// Handler carries everything a request needs; one is built at startup and
// shared by all routes.
type Handler struct {
	db       Store
	llm      Assembler
	logger   *zap.Logger
	validate *validator.Validate
}

func NewHandler(store Store, assembler Assembler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		db:       store,
		llm:      assembler,
		logger:   logger,
		validate: newValidator(),
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, nil, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	logger := loggerFrom(r.Context(), h.logger)

	req, err := h.parseRegister(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest, err.Error())
		return
	}

	_, err = h.db.GetUserByUsername(r.Context(), req.Username)
	switch {
	case err == nil:
		writeError(w, &ConflictError{Message: msgUsernameTaken}, 0, "")
		return
	case !errors.Is(err, db.ErrNotFound):
		logger.Error("Failed to look up username", zap.Error(err))
		writeError(w, err, http.StatusInternalServerError, "Internal server error")
		return
	}

	user, err := h.db.CreateUser(r.Context(), req.Username)
	if errors.Is(err, db.ErrUsernameTaken) {
		writeError(w, &ConflictError{Message: msgUsernameTaken}, 0, "")
		return
	}
	if err != nil {
		logger.Error("Failed to create user", zap.Error(err))
		writeError(w, err, http.StatusInternalServerError, "Internal server error")
		return
	}

	logger.Info("Registered user", zap.Int64("userID", user.ID))
	writeJSON(w, http.StatusOK, RegisterResponse{Success: true, UserID: user.ID})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, nil, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	logger := loggerFrom(r.Context(), h.logger)

	req, err := h.parseSendMessage(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest, err.Error())
		return
	}

	if !h.userExists(w, r, logger, req.UserID) {
		return
	}

	reply, err := h.llm.ProcessMessage(r.Context(), req.UserID, req.ChatbotID, req.Content)
	if err != nil {
		logger.Error("Failed to process message",
			zap.Error(err),
			zap.Int64("userID", req.UserID),
			zap.Int64("chatbotID", req.ChatbotID))
		if errors.Is(err, llm.ErrCompletionFailed) {
			writeError(w, err, http.StatusBadGateway, "Failed to generate a response")
			return
		}
		writeError(w, err, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, SendMessageResponse{ResponseText: reply.Content})
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, nil, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	logger := loggerFrom(r.Context(), h.logger)

	req, err := h.parseGetMessages(r.URL.Query())
	if err != nil {
		writeError(w, err, http.StatusBadRequest, err.Error())
		return
	}

	if !h.userExists(w, r, logger, req.UserID) {
		return
	}

	conv, err := h.db.GetConversation(r.Context(), req.UserID, req.ChatbotID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, &NotFoundError{Message: msgConvNotFound}, 0, "")
		return
	}
	if err != nil {
		logger.Error("Failed to get conversation", zap.Error(err))
		writeError(w, err, http.StatusInternalServerError, "Internal server error")
		return
	}

	messages, err := h.db.ListMessages(r.Context(), conv.ID)
	if err != nil {
		logger.Error("Failed to get messages", zap.Error(err))
		writeError(w, err, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := GetMessagesResponse{Messages: make([]MessageView, 0, len(messages))}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, MessageView{Content: msg.Content, Response: msg.Response})
	}

	logger.Debug("Retrieved messages",
		zap.Int64("conversationID", conv.ID),
		zap.Int("count", len(messages)))

	writeJSON(w, http.StatusOK, resp)
}

// Health reports whether the store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		loggerFrom(r.Context(), h.logger).Error("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userExists writes the 404 or 500 itself and reports false when the request
// must stop.
func (h *Handler) userExists(w http.ResponseWriter, r *http.Request, logger *zap.Logger, userID int64) bool {
	_, err := h.db.GetUser(r.Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, &NotFoundError{Message: msgUserNotFound}, 0, "")
		return false
	}
	if err != nil {
		logger.Error("Failed to get user", zap.Error(err), zap.Int64("userID", userID))
		writeError(w, err, http.StatusInternalServerError, "Internal server error")
		return false
	}
	return true
}
