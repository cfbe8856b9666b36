// Package chat drives the active conversation with a persona.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/memory"
	"github.com/zhouzirui/z-tavern/local/internal/model/persona"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrBusy            = errors.New("a reply is already being generated")
	ErrNoPersona       = errors.New("no persona selected")
	ErrNotUserMessage  = errors.New("only user messages can be edited")
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyLog        = errors.New("conversation is empty")
	ErrGateway         = errors.New("language model unavailable")
	ErrSessionReset    = errors.New("session was reset before the call completed")
	ErrPersonaMismatch = errors.New("saved chat belongs to another persona")
)

// UntitledChat is the title used when the model cannot produce one.
const UntitledChat = "Untitled chat"

// Gateway is the language model binding.
type Gateway interface {
	Ask(ctx context.Context, p persona.Persona, userText string, prior []chat.Message) (string, error)
	Summarize(ctx context.Context, messages []chat.Message) (string, error)
	SummarizeTitle(ctx context.Context, messages []chat.Message) (string, error)
}

// ChatRecorder persists saved chats.
type ChatRecorder interface {
	SaveChat(ctx context.Context, personaID, title string, messages []chat.Message) (chat.SavedChat, error)
	UpdateChat(ctx context.Context, chatID string, messages []chat.Message) error
}

// MemoryRecorder persists memories.
type MemoryRecorder interface {
	SaveMemory(ctx context.Context, personaID string, chatID *string, summary string) (memory.Memory, error)
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	Persona  *persona.Persona `json:"persona,omitempty"`
	ChatID   string           `json:"chatId,omitempty"`
	Title    string           `json:"title,omitempty"`
	Busy     bool             `json:"busy"`
	Messages []chat.Message   `json:"messages"`
}

// Session is the in-memory conversation with one persona.
//
// A session is fresh until its first successful Save or a Load binds it to a saved
// chat; from then on every completed turn and every delete is written through to
// the chat history. Only Start returns a session to fresh. At most one gateway call
// is in flight per session; concurrent requests are rejected with ErrBusy.
type Session struct {
	gateway  Gateway
	chats    ChatRecorder
	memories MemoryRecorder
	dispatch Dispatcher
	log      *zap.Logger

	// persistMu orders write-through so the newest log always lands last.
	persistMu sync.Mutex

	mu         sync.Mutex
	persona    *persona.Persona
	chatID     string
	title      string
	messages   []chat.Message
	busy       bool
	generation uint64
	listeners  map[int]Listener
	nextID     int
}

// NewSession wires a session. Completions and events are delivered through dispatch.
func NewSession(gateway Gateway, chats ChatRecorder, memories MemoryRecorder, dispatch Dispatcher, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		gateway:   gateway,
		chats:     chats,
		memories:  memories,
		dispatch:  dispatch,
		log:       logger.With(zap.String("component", "session")),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn for session events and returns a function that removes it.
func (s *Session) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Start resets the session to a new conversation with p.
func (s *Session) Start(p persona.Persona) error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrNoPersona
	}

	s.mu.Lock()
	s.resetLocked(p)
	s.mu.Unlock()

	s.log.Info("session started", zap.String("persona_id", p.ID))
	s.emit(Event{Kind: EventReset, Persona: &p})
	return nil
}

// Load replaces the session with a saved chat of p, replaying its messages verbatim.
func (s *Session) Load(p persona.Persona, saved chat.SavedChat) error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrNoPersona
	}
	if saved.PersonaID != p.ID {
		return ErrPersonaMismatch
	}

	s.mu.Lock()
	s.resetLocked(p)
	s.chatID = saved.ChatID
	s.title = saved.Title
	s.messages = chat.CloneMessages(saved.Messages)
	messages := chat.CloneMessages(s.messages)
	s.mu.Unlock()

	s.log.Info("chat loaded", zap.String("chat_id", saved.ChatID), zap.Int("messages", len(messages)))
	s.emit(Event{Kind: EventLoaded, Persona: &p, ChatID: saved.ChatID, Title: saved.Title, Messages: messages})
	return nil
}

func (s *Session) resetLocked(p persona.Persona) {
	s.persona = &p
	s.chatID = ""
	s.title = ""
	s.messages = nil
	s.busy = false
	s.generation++
}

// Submit appends a user message and asks the persona for a reply.
func (s *Session) Submit(ctx context.Context, text string) (*Task[chat.Message], error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.persona == nil {
		s.mu.Unlock()
		return nil, ErrNoPersona
	}

	msg := chat.NewMessage(chat.RoleUser, text)
	prior := chat.CloneMessages(s.messages)
	s.messages = append(s.messages, msg)
	task, run := s.beginTurnLocked(ctx, msg, prior)
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessage, Message: &msg})
	run()
	return task, nil
}

// Edit rewrites a user message, drops everything after it and asks for a new reply.
func (s *Session) Edit(ctx context.Context, messageID, text string) (*Task[chat.Message], error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	idx := s.indexLocked(messageID)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrMessageNotFound
	}
	if !s.messages[idx].IsUser() {
		s.mu.Unlock()
		return nil, ErrNotUserMessage
	}
	if text == "" {
		s.mu.Unlock()
		return nil, ErrEmptyMessage
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	edited := s.messages[idx]
	edited.Content = text
	prior := chat.CloneMessages(s.messages[:idx])
	s.messages = append(chat.CloneMessages(prior), edited)
	messages := chat.CloneMessages(s.messages)
	task, run := s.beginTurnLocked(ctx, edited, prior)
	s.mu.Unlock()

	s.emit(Event{Kind: EventEdited, Message: &edited, Messages: messages})
	run()
	return task, nil
}

// beginTurnLocked marks the session busy and returns the task plus the function
// that launches the gateway call. The caller runs it after releasing the lock.
func (s *Session) beginTurnLocked(ctx context.Context, msg chat.Message, prior []chat.Message) (*Task[chat.Message], func()) {
	s.busy = true
	gen := s.generation
	p := *s.persona
	task := newTask[chat.Message]()
	callCtx := context.WithoutCancel(ctx)

	return task, func() {
		go func() {
			reply, err := s.gateway.Ask(callCtx, p, msg.Content, prior)
			s.dispatch.Post(func() {
				s.completeTurn(callCtx, gen, task, reply, err)
			})
		}()
	}
}

func (s *Session) completeTurn(ctx context.Context, gen uint64, task *Task[chat.Message], reply string, callErr error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		task.resolve(chat.Message{}, ErrSessionReset)
		return
	}
	s.busy = false

	if callErr != nil {
		s.mu.Unlock()
		err := fmt.Errorf("%w: %w", ErrGateway, callErr)
		s.log.Warn("reply failed", zap.Error(callErr))
		if perr := s.persist(ctx); perr != nil {
			s.log.Error("write-through failed", zap.Error(perr))
		}
		s.notify(Event{Kind: EventReplyFailed, Error: err.Error()})
		task.resolve(chat.Message{}, err)
		return
	}

	answer := chat.NewMessage(chat.RoleModel, reply)
	s.messages = append(s.messages, answer)
	s.mu.Unlock()

	err := s.persist(ctx)
	if err != nil {
		s.log.Error("write-through failed", zap.Error(err))
	}
	s.notify(Event{Kind: EventMessage, Message: &answer})
	task.resolve(answer, err)
}

// Delete removes a message. A user message takes its immediately following reply with it.
func (s *Session) Delete(ctx context.Context, messageID string) error {
	s.mu.Lock()
	idx := s.indexLocked(messageID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}

	end := idx + 1
	if s.messages[idx].IsUser() && end < len(s.messages) && s.messages[end].IsModel() {
		end++
	}

	kept := make([]chat.Message, 0, len(s.messages)-(end-idx))
	kept = append(kept, s.messages[:idx]...)
	kept = append(kept, s.messages[end:]...)
	s.messages = kept
	messages := chat.CloneMessages(kept)
	s.mu.Unlock()

	s.log.Info("messages deleted", zap.String("message_id", messageID), zap.Int("removed", end-idx))
	err := s.persist(ctx)
	s.emit(Event{Kind: EventDeleted, Messages: messages})
	return err
}

// Save stores the conversation as a new saved chat with a model-generated title.
// A session that is already bound resolves immediately with its chat id.
func (s *Session) Save(ctx context.Context) (*Task[string], error) {
	s.mu.Lock()
	if len(s.messages) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyLog
	}
	if s.chatID != "" {
		chatID := s.chatID
		s.mu.Unlock()
		return Resolved(chatID, nil), nil
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	s.busy = true
	gen := s.generation
	p := *s.persona
	messages := chat.CloneMessages(s.messages)
	s.mu.Unlock()

	task := newTask[string]()
	callCtx := context.WithoutCancel(ctx)
	go func() {
		title, err := s.gateway.SummarizeTitle(callCtx, messages)
		if err != nil {
			s.log.Warn("title generation failed", zap.Error(err))
			title = UntitledChat
		}
		s.dispatch.Post(func() {
			s.completeSave(callCtx, gen, task, p, title, messages)
		})
	}()
	return task, nil
}

func (s *Session) completeSave(ctx context.Context, gen uint64, task *Task[string], p persona.Persona, title string, messages []chat.Message) {
	if !s.currentGeneration(gen) {
		task.resolve("", ErrSessionReset)
		return
	}

	saved, err := s.chats.SaveChat(ctx, p.ID, title, messages)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		task.resolve(saved.ChatID, ErrSessionReset)
		return
	}
	s.busy = false
	if err == nil {
		s.chatID = saved.ChatID
		s.title = saved.Title
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("save chat failed", zap.Error(err))
		s.notify(Event{Kind: EventSaveFailed, Error: err.Error()})
		task.resolve("", err)
		return
	}

	s.notify(Event{Kind: EventSaved, ChatID: saved.ChatID, Title: saved.Title})
	task.resolve(saved.ChatID, nil)
}

// SaveMemory summarizes the conversation and stores the summary as a memory of the persona.
func (s *Session) SaveMemory(ctx context.Context) (*Task[memory.Memory], error) {
	s.mu.Lock()
	if len(s.messages) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyLog
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	s.busy = true
	gen := s.generation
	p := *s.persona
	var chatID *string
	if s.chatID != "" {
		id := s.chatID
		chatID = &id
	}
	messages := chat.CloneMessages(s.messages)
	s.mu.Unlock()

	task := newTask[memory.Memory]()
	callCtx := context.WithoutCancel(ctx)
	go func() {
		summary, err := s.gateway.Summarize(callCtx, messages)
		s.dispatch.Post(func() {
			s.completeMemory(callCtx, gen, task, p, chatID, summary, err)
		})
	}()
	return task, nil
}

func (s *Session) completeMemory(ctx context.Context, gen uint64, task *Task[memory.Memory], p persona.Persona, chatID *string, summary string, callErr error) {
	if !s.currentGeneration(gen) {
		task.resolve(memory.Memory{}, ErrSessionReset)
		return
	}

	var (
		saved memory.Memory
		err   error
	)
	if callErr != nil {
		err = fmt.Errorf("%w: %w", ErrGateway, callErr)
	} else {
		saved, err = s.memories.SaveMemory(ctx, p.ID, chatID, summary)
	}

	s.mu.Lock()
	if gen == s.generation {
		s.busy = false
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("memory not saved", zap.Error(err))
		s.notify(Event{Kind: EventMemoryFailed, Error: err.Error()})
		task.resolve(memory.Memory{}, err)
		return
	}

	s.notify(Event{Kind: EventMemorySaved, Summary: saved.Summary})
	task.resolve(saved, nil)
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ChatID:   s.chatID,
		Title:    s.title,
		Busy:     s.busy,
		Messages: chat.CloneMessages(s.messages),
	}
	if snap.Messages == nil {
		snap.Messages = []chat.Message{}
	}
	if s.persona != nil {
		p := *s.persona
		snap.Persona = &p
	}
	return snap
}

// Messages returns a copy of the message log.
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.CloneMessages(s.messages)
}

// ChatID returns the bound saved chat id, or "" for a fresh session.
func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Busy reports whether a gateway call is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) currentGeneration(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

func (s *Session) indexLocked(messageID string) int {
	for i, msg := range s.messages {
		if msg.ID == messageID {
			return i
		}
	}
	return -1
}

// persist writes the current log through to the bound saved chat.
func (s *Session) persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	chatID := s.chatID
	messages := chat.CloneMessages(s.messages)
	s.mu.Unlock()

	if chatID == "" || s.chats == nil {
		return nil
	}
	if err := s.chats.UpdateChat(ctx, chatID, messages); err != nil {
		return fmt.Errorf("update chat %s: %w", chatID, err)
	}
	return nil
}

// emit queues ev for listeners. Completions already run on the queue and call notify directly.
func (s *Session) emit(ev Event) {
	s.dispatch.Post(func() { s.notify(ev) })
}

func (s *Session) notify(ev Event) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
