package llm

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RichardoC/companion-chat/internal/db"
	"github.com/RichardoC/companion-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// stubModel answers with canned replies and records every request it receives.
type stubModel struct {
	mu       sync.Mutex
	replies  []string
	failures int
	err      error
	calls    [][]llms.MessageContent
	options  []llms.CallOptions
}

func (m *stubModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}
	m.calls = append(m.calls, messages)
	m.options = append(m.options, opts)

	if m.failures > 0 {
		m.failures--
		return nil, errors.New("503 service unavailable")
	}
	if m.err != nil {
		return nil, m.err
	}
	reply := "ok"
	if len(m.replies) > 0 {
		reply, m.replies = m.replies[0], m.replies[1:]
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: reply}}}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func testStore(t *testing.T) *db.Database {
	t.Helper()
	database, err := db.Open(context.Background(), "", filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func textOf(t *testing.T, msg llms.MessageContent) string {
	t.Helper()
	require.Len(t, msg.Parts, 1)
	part, ok := msg.Parts[0].(llms.TextContent)
	require.True(t, ok, "expected text part, got %T", msg.Parts[0])
	return part.Text
}

func TestBuildMessages_AlternatesRolesByPosition(t *testing.T) {
	history := []models.Message{
		{Content: "hi"},
		{Content: "hello!"},
		{Content: "how are you?"},
	}

	messages := BuildMessages("system", history, "how are you?")
	require.Len(t, messages, 5)

	wantRoles := []llms.ChatMessageType{
		llms.ChatMessageTypeSystem,
		llms.ChatMessageTypeHuman,
		llms.ChatMessageTypeAI,
		llms.ChatMessageTypeHuman,
		llms.ChatMessageTypeHuman,
	}
	wantText := []string{"system", "hi", "hello!", "how are you?", "how are you?"}
	for i := range messages {
		assert.Equal(t, wantRoles[i], messages[i].Role, "role at %d", i)
		assert.Equal(t, wantText[i], textOf(t, messages[i]), "text at %d", i)
	}
}

func TestBuildMessages_EmptyHistory(t *testing.T) {
	messages := BuildMessages("system", nil, "first")
	require.Len(t, messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
	assert.Equal(t, "first", textOf(t, messages[1]))
}

func TestProcessMessage_PersistsExchange(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	user, err := store.CreateUser(ctx, "alice")
	require.NoError(t, err)

	model := &stubModel{replies: []string{"  Hey there!  \n", "Doing great."}}
	svc := New(model, store, nil, nil, Config{})

	reply, err := svc.ProcessMessage(ctx, user.ID, 1, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hey there!", reply.Content)
	assert.Nil(t, reply.Response)

	reply, err = svc.ProcessMessage(ctx, user.ID, 1, "how are you?")
	require.NoError(t, err)
	assert.Equal(t, "Doing great.", reply.Content)

	n, err := store.CountConversations(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	conv, err := store.GetConversation(ctx, user.ID, 1)
	require.NoError(t, err)
	messages, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, []string{"hello", "Hey there!", "how are you?", "Doing great."},
		[]string{messages[0].Content, messages[1].Content, messages[2].Content, messages[3].Content})

	// Second call sees system + 3 stored turns + final user turn.
	require.Len(t, model.calls, 2)
	second := model.calls[1]
	require.Len(t, second, 5)
	assert.Equal(t, DefaultPersonas().SystemPrompt(1), textOf(t, second[0]))
	assert.Equal(t, llms.ChatMessageTypeAI, second[2].Role)
	assert.Equal(t, "how are you?", textOf(t, second[4]))
}

func TestProcessMessage_MaxTokensAndPersona(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	user, err := store.CreateUser(ctx, "bob")
	require.NoError(t, err)

	model := &stubModel{}
	svc := New(model, store, nil, nil, Config{})

	_, err = svc.ProcessMessage(ctx, user.ID, 42, "hello")
	require.NoError(t, err)

	require.Len(t, model.options, 1)
	assert.Equal(t, 50, model.options[0].MaxTokens)
	assert.Equal(t, DefaultSystemPrompt, textOf(t, model.calls[0][0]))
}

func TestProcessMessage_TruncatesLongReply(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	user, err := store.CreateUser(ctx, "carol")
	require.NoError(t, err)

	model := &stubModel{replies: []string{strings.Repeat("é", models.MaxContentLength+20)}}
	svc := New(model, store, nil, nil, Config{})

	reply, err := svc.ProcessMessage(ctx, user.ID, 2, "talk a lot")
	require.NoError(t, err)
	assert.Equal(t, models.MaxContentLength, len([]rune(reply.Content)))
}

func TestProcessMessage_RetriesTransientFailures(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	user, err := store.CreateUser(ctx, "dave")
	require.NoError(t, err)

	model := &stubModel{failures: 2, replies: []string{"finally"}}
	svc := New(model, store, nil, nil, Config{MaxRetries: 2, RetryBackoff: time.Millisecond})

	reply, err := svc.ProcessMessage(ctx, user.ID, 1, "hello")
	require.NoError(t, err)
	assert.Equal(t, "finally", reply.Content)
	assert.Len(t, model.calls, 3)
}

func TestProcessMessage_CompletionFailure(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	user, err := store.CreateUser(ctx, "erin")
	require.NoError(t, err)

	model := &stubModel{err: errors.New("boom")}
	svc := New(model, store, nil, nil, Config{MaxRetries: 1, RetryBackoff: time.Millisecond})

	_, err = svc.ProcessMessage(ctx, user.ID, 1, "hello")
	require.ErrorIs(t, err, ErrCompletionFailed)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, model.calls, 2)

	conv, err := store.GetConversation(ctx, user.ID, 1)
	require.NoError(t, err)
	messages, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 1, "user turn is kept even when no reply is produced")
}
