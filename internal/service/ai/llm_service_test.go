package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/persona"
)

type fakeModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	inputs  [][]*schema.Message
	options []*model.Options
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	f.options = append(f.options, model.GetCommonOptions(nil, opts...))
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeModel) lastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[len(f.inputs)-1]
}

type staticInfo []string

func (s staticInfo) Contents(context.Context) ([]string, error) { return s, nil }

type brokenInfo struct{}

func (brokenInfo) Contents(context.Context) ([]string, error) { return nil, errors.New("disk on fire") }

func newTestService(t *testing.T, fm *fakeModel, info InfoSource, limit int) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), fm, info, limit, zap.NewNop())
	require.NoError(t, err)
	return svc
}

var ivan = persona.Persona{ID: "p1", Name: "Ivan", Prompt: "You love {hiking} and coffee."}

func TestAskBuildsPromptFromPersonaInfoAndHistory(t *testing.T) {
	fm := &fakeModel{reply: "  Hey, good to see you!  "}
	svc := newTestService(t, fm, staticInfo{"I live in Sofia."}, 10)

	prior := []chat.Message{
		chat.NewMessage(chat.RoleUser, "hi"),
		chat.NewMessage(chat.RoleModel, "hello"),
	}
	answer, err := svc.Ask(context.Background(), ivan, "how are you?", prior)
	require.NoError(t, err)
	assert.Equal(t, "Hey, good to see you!", answer)

	input := fm.lastInput()
	require.Len(t, input, 4)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Contains(t, input[0].Content, "Your name is Ivan.")
	assert.Contains(t, input[0].Content, "You love {hiking} and coffee.")
	assert.Contains(t, input[0].Content, "I live in Sofia.")
	assert.Equal(t, schema.User, input[1].Role)
	assert.Equal(t, "hi", input[1].Content)
	assert.Equal(t, schema.Assistant, input[2].Role)
	assert.Equal(t, schema.User, input[3].Role)
	assert.Equal(t, "how are you?", input[3].Content)
}

func TestAskTrimsHistoryToLimit(t *testing.T) {
	fm := &fakeModel{reply: "ok"}
	svc := newTestService(t, fm, nil, 2)

	prior := []chat.Message{
		chat.NewMessage(chat.RoleUser, "one"),
		chat.NewMessage(chat.RoleModel, "two"),
		chat.NewMessage(chat.RoleUser, "three"),
		chat.NewMessage(chat.RoleModel, "four"),
	}
	_, err := svc.Ask(context.Background(), ivan, "five", prior)
	require.NoError(t, err)

	input := fm.lastInput()
	require.Len(t, input, 4)
	assert.Equal(t, "three", input[1].Content)
	assert.Equal(t, "four", input[2].Content)
	assert.Contains(t, input[0].Content, noPersonalInfo)
}

func TestAskToleratesBrokenInfoSource(t *testing.T) {
	fm := &fakeModel{reply: "fine"}
	svc := newTestService(t, fm, brokenInfo{}, 5)

	answer, err := svc.Ask(context.Background(), ivan, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "fine", answer)
}

func TestAskPropagatesModelError(t *testing.T) {
	fm := &fakeModel{err: errors.New("model crashed")}
	svc := newTestService(t, fm, nil, 5)

	_, err := svc.Ask(context.Background(), ivan, "hi", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model crashed")
}

func TestSummarizeEmptyReturnsFixedSentence(t *testing.T) {
	fm := &fakeModel{reply: "unused"}
	svc := newTestService(t, fm, nil, 5)

	summary, err := svc.Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, NothingToSummarize, summary)
	assert.Empty(t, fm.inputs)
}

func TestSummarizeStripsQuotesAndUsesLowTemperature(t *testing.T) {
	fm := &fakeModel{reply: ` "We planned a hike in Rila." `}
	svc := newTestService(t, fm, nil, 5)

	msgs := []chat.Message{chat.NewMessage(chat.RoleUser, "let's hike"), chat.NewMessage(chat.RoleModel, "Rila?")}
	summary, err := svc.Summarize(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "We planned a hike in Rila.", summary)

	input := fm.lastInput()
	require.Len(t, input, 2)
	assert.True(t, strings.Contains(input[1].Content, "user: let's hike\nmodel: Rila?"))

	opts := fm.options[len(fm.options)-1]
	require.NotNil(t, opts.Temperature)
	assert.InDelta(t, 0.3, *opts.Temperature, 1e-6)
	require.NotNil(t, opts.MaxTokens)
	assert.Equal(t, 500, *opts.MaxTokens)
}

func TestSummarizeTitle(t *testing.T) {
	msgs := []chat.Message{chat.NewMessage(chat.RoleUser, "hello")}

	t.Run("empty conversation", func(t *testing.T) {
		svc := newTestService(t, &fakeModel{}, nil, 5)
		title, err := svc.SummarizeTitle(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultTitle, title)
	})

	t.Run("model title", func(t *testing.T) {
		svc := newTestService(t, &fakeModel{reply: `"Morning greetings"`}, nil, 5)
		title, err := svc.SummarizeTitle(context.Background(), msgs)
		require.NoError(t, err)
		assert.Equal(t, "Morning greetings", title)
	})

	t.Run("blank model output", func(t *testing.T) {
		svc := newTestService(t, &fakeModel{reply: `  ""  `}, nil, 5)
		title, err := svc.SummarizeTitle(context.Background(), msgs)
		require.NoError(t, err)
		assert.Equal(t, FallbackTitle, title)
	})

	t.Run("model failure", func(t *testing.T) {
		svc := newTestService(t, &fakeModel{err: errors.New("offline")}, nil, 5)
		_, err := svc.SummarizeTitle(context.Background(), msgs)
		assert.Error(t, err)
	})
}

func TestNewServiceRequiresModel(t *testing.T) {
	_, err := NewService(context.Background(), nil, nil, 5, zap.NewNop())
	assert.Error(t, err)
}
