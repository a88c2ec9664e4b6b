package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/RichardoC/companion-chat/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

var (
	// ErrCompletionFailed wraps every failure of the completion service so
	// callers can tell it apart from store failures.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrEmptyCompletion is returned when the completion service answers with no choices.
	ErrEmptyCompletion = errors.New("completion returned no choices")
)

// Store is the persistence the service needs to assemble a conversation.
type Store interface {
	FindOrCreateConversation(ctx context.Context, userID, chatbotID int64) (*models.Conversation, error)
	CreateMessage(ctx context.Context, conversationID int64, content string, response *string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)
}

// Config tunes the completion call.
type Config struct {
	MaxTokens    int
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 50
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	return c
}

type Service struct {
	llm      llms.Model
	store    Store
	personas *Personas
	logger   *zap.Logger
	cfg      Config
}

// NewClient builds an OpenAI-compatible completion client. baseURL may be
// empty to use the public OpenAI endpoint.
func NewClient(baseURL, token, model string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func New(model llms.Model, store Store, personas *Personas, logger *zap.Logger, cfg Config) *Service {
	if personas == nil {
		personas = DefaultPersonas()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		llm:      model,
		store:    store,
		personas: personas,
		logger:   logger,
		cfg:      cfg.withDefaults(),
	}
}

// BuildMessages lays out the prompt: the system prompt, then the stored
// history with roles alternating user/assistant by position, then content as
// the final user turn.
func BuildMessages(systemPrompt string, history []models.Message, content string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	for i, msg := range history {
		role := llms.ChatMessageTypeHuman
		if i%2 == 1 {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, msg.Content))
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, content))
}

// ProcessMessage records content in the user's conversation with chatbotID,
// asks the completion service for a reply and records that too. The stored
// reply is returned.
func (s *Service) ProcessMessage(ctx context.Context, userID, chatbotID int64, content string) (*models.Message, error) {
	conv, err := s.store.FindOrCreateConversation(ctx, userID, chatbotID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}

	if _, err := s.store.CreateMessage(ctx, conv.ID, content, nil); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	history, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}

	messages := BuildMessages(s.personas.SystemPrompt(chatbotID), history, content)

	completion, err := s.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	reply, err := s.store.CreateMessage(ctx, conv.ID, truncate(strings.TrimSpace(completion), models.MaxContentLength), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to save reply: %w", err)
	}

	s.logger.Debug("conversation updated",
		zap.Int64("conversationID", conv.ID),
		zap.Int64("chatbotID", chatbotID),
		zap.Int("historyLength", len(history)))

	return reply, nil
}

func (s *Service) complete(ctx context.Context, messages []llms.MessageContent) (string, error) {
	attempt := func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		resp, err := s.llm.GenerateContent(callCtx, messages, llms.WithMaxTokens(s.cfg.MaxTokens))
		if err != nil {
			if ctx.Err() != nil {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", backoff.Permanent(ErrEmptyCompletion)
		}
		return resp.Choices[0].Content, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryBackoff
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("completion failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	}

	completion, err := backoff.RetryNotifyWithData(attempt,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.cfg.MaxRetries)), ctx),
		notify)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	return completion, nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
