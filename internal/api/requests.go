package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const (
	msgUsernameRequired = "Username is required"
	msgUsernameTaken    = "Username already exists"
	msgUsernameTooLong  = "Username must be at most 80 characters"
	msgSendRequired     = "User ID, content, and chatbot_id are required"
	msgContentTooLong   = "Content must be at most 500 characters"
	msgChatbotInvalid   = "Chatbot ID is required and should be either 1 (Adam) or 2 (Eve)"
	msgUserIDRequired   = "User ID is required"
	msgUserNotFound     = "User not found"
	msgConvNotFound     = "Conversation not found"
	msgInvalidBody      = "Invalid request body"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=80"`
}

type RegisterResponse struct {
	Success bool  `json:"success"`
	UserID  int64 `json:"user_id"`
}

type SendMessageRequest struct {
	UserID    int64  `json:"user_id" validate:"required"`
	Content   string `json:"content" validate:"required,max=500"`
	ChatbotID int64  `json:"chatbot_id" validate:"required"`
}

type SendMessageResponse struct {
	ResponseText string `json:"response_text"`
}

// GetMessagesRequest is read from the query string. Only chatbots 1 and 2
// expose their history.
type GetMessagesRequest struct {
	UserID    int64 `validate:"required"`
	ChatbotID int64 `validate:"required,oneof=1 2"`
}

type MessageView struct {
	Content  string  `json:"content"`
	Response *string `json:"response"`
}

type GetMessagesResponse struct {
	Messages []MessageView `json:"messages"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// decodeBody reads a single JSON object into dst. An empty body decodes as
// an empty object so that missing fields are reported by validation.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{Message: msgInvalidBody}
	}
	return nil
}

// failedFields lists the JSON-facing names of the fields that failed validation.
func failedFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
	}
	return fields
}

func hasFailure(err error, field string) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Field() == field {
			return true
		}
	}
	return false
}

func (h *Handler) parseRegister(r *http.Request) (RegisterRequest, error) {
	var req RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		return req, err
	}
	if err := h.validate.Struct(req); err != nil {
		msg := msgUsernameRequired
		if req.Username != "" {
			msg = msgUsernameTooLong
		}
		return req, &ValidationError{Message: msg, Fields: failedFields(err)}
	}
	return req, nil
}

func (h *Handler) parseSendMessage(r *http.Request) (SendMessageRequest, error) {
	var req SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		return req, err
	}
	if err := h.validate.Struct(req); err != nil {
		msg := msgSendRequired
		if req.UserID != 0 && req.ChatbotID != 0 && req.Content != "" {
			msg = msgContentTooLong
		}
		return req, &ValidationError{Message: msg, Fields: failedFields(err)}
	}
	return req, nil
}

// parseGetMessages checks chatbot_id before user_id. Values that are not
// integers are treated as missing.
func (h *Handler) parseGetMessages(query url.Values) (GetMessagesRequest, error) {
	req := GetMessagesRequest{
		UserID:    queryInt(query, "user_id"),
		ChatbotID: queryInt(query, "chatbot_id"),
	}
	if err := h.validate.Struct(req); err != nil {
		msg := msgUserIDRequired
		if hasFailure(err, "ChatbotID") {
			msg = msgChatbotInvalid
		}
		return req, &ValidationError{Message: msg, Fields: failedFields(err)}
	}
	return req, nil
}

func queryInt(query url.Values, key string) int64 {
	v, err := strconv.ParseInt(query.Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
