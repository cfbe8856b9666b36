// Package tui is the terminal front end for chatting with personas.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	chatModel "github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/persona"
	"github.com/zhouzirui/z-tavern/local/internal/service/chat"
)

// ChatLister lists saved chats for /chats.
type ChatLister interface {
	ListChats(ctx context.Context) ([]chatModel.SavedChat, error)
}

// Deps are the services the terminal client drives.
type Deps struct {
	Session  *chat.Session
	Personas persona.Store
	Chats    ChatLister
	Logger   *zap.Logger
}

type mode int

const (
	modePersonas mode = iota
	modeChat
	modeChats
)

type personasLoadedMsg struct {
	personas []persona.Persona
	err      error
}

type chatsLoadedMsg struct {
	chats []chatModel.SavedChat
	err   error
}

// inbox collects session events between Update calls.
type inbox struct {
	mu     sync.Mutex
	events []chat.Event
}

func (b *inbox) push(ev chat.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *inbox) drain() []chat.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.events
	b.events = nil
	return events
}

// Model is the bubbletea model of the client.
type Model struct {
	deps  Deps
	log   *zap.Logger
	inbox *inbox

	mode     mode
	personas []persona.Persona
	chats    []chatModel.SavedChat
	cursor   int

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	snapshot chat.Snapshot
	width    int
	height   int
	status   string
	err      error
}

// New builds the model and subscribes it to session events.
func New(deps Deps) Model {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ti := textinput.New()
	ti.Placeholder = "Say something, or /help"
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	box := &inbox{}
	deps.Session.Subscribe(box.push)

	m := Model{
		deps:     deps,
		log:      log.With(zap.String("component", "tui")),
		inbox:    box,
		mode:     modePersonas,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		width:    80,
		height:   24,
	}
	m.renderer = newRenderer(m.width)
	m.snapshot = deps.Session.Snapshot()
	return m
}

func newRenderer(width int) *glamour.TermRenderer {
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

// Init loads the persona list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadPersonas(), textinput.Blink, m.spinner.Tick)
}

func (m Model) loadPersonas() tea.Cmd {
	store := m.deps.Personas
	return func() tea.Msg {
		personas, err := store.List()
		return personasLoadedMsg{personas: personas, err: err}
	}
}

func (m Model) loadChats() tea.Cmd {
	lister := m.deps.Chats
	return func() tea.Msg {
		chats, err := lister.ListChats(context.Background())
		return chatsLoadedMsg{chats: chats, err: err}
	}
}

// Update handles input, window changes and session completions.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case runMsg:
		msg()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-6, 3)
		m.input.Width = max(msg.Width-8, 10)
		m.renderer = newRenderer(msg.Width)

	case personasLoadedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("load personas: %w", msg.err))
			break
		}
		m.personas = msg.personas
		m.cursor = 0

	case chatsLoadedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("load chats: %w", msg.err))
			break
		}
		m.chats = msg.chats
		m.cursor = 0
		m.mode = modeChats
		if len(m.chats) == 0 {
			m.mode = modeChat
			m.setStatus("No saved chats yet.")
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		switch m.mode {
		case modePersonas, modeChats:
			cmd = m.updatePicker(msg)
		default:
			cmd = m.updateChat(msg)
		}
		cmds = append(cmds, cmd)
	}

	m.sync()
	return m, tea.Batch(cmds...)
}

func (m *Model) updatePicker(msg tea.KeyMsg) tea.Cmd {
	count := len(m.personas)
	if m.mode == modeChats {
		count = len(m.chats)
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < count-1 {
			m.cursor++
		}
	case "esc":
		if m.snapshot.Persona != nil {
			m.mode = modeChat
		}
	case "q":
		if m.mode == modePersonas && m.snapshot.Persona == nil {
			return tea.Quit
		}
		m.mode = modeChat
	case "enter":
		if count == 0 {
			return nil
		}
		if m.mode == modePersonas {
			m.startWith(m.personas[m.cursor])
		} else {
			m.loadChat(m.chats[m.cursor])
		}
	}
	return nil
}

func (m *Model) updateChat(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		text := m.input.Value()
		m.input.Reset()
		return m.handleInput(text)
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) handleInput(text string) tea.Cmd {
	cmd, err := parseCommand(text)
	if errors.Is(err, errNotCommand) {
		if _, err := m.deps.Session.Submit(context.Background(), text); err != nil {
			m.setError(err)
		}
		return nil
	}
	if err != nil {
		m.setError(err)
		return nil
	}
	return m.runCommand(cmd)
}

func (m *Model) runCommand(c command) tea.Cmd {
	session := m.deps.Session
	ctx := context.Background()

	switch c.kind {
	case cmdQuit:
		return tea.Quit
	case cmdHelp:
		m.setStatus(helpText)
	case cmdNew:
		m.mode = modePersonas
		m.cursor = 0
		return m.loadPersonas()
	case cmdChats:
		return m.loadChats()
	case cmdSave:
		task, err := session.Save(ctx)
		if err != nil {
			m.setError(err)
			break
		}
		if id, err := task.Result(); err == nil {
			m.setStatus(fmt.Sprintf("Already saved (%s); new turns are written automatically.", id))
		} else {
			m.setStatus("Saving chat...")
		}
	case cmdMemory:
		if _, err := session.SaveMemory(ctx); err != nil {
			m.setError(err)
			break
		}
		m.setStatus("Summarizing conversation...")
	case cmdEdit:
		msg, ok := m.messageAt(c.index)
		if !ok {
			break
		}
		if _, err := session.Edit(ctx, msg.ID, c.text); err != nil {
			m.setError(err)
		}
	case cmdDelete:
		msg, ok := m.messageAt(c.index)
		if !ok {
			break
		}
		if err := session.Delete(ctx, msg.ID); err != nil {
			m.setError(err)
		}
	case cmdLoad:
		if len(m.chats) == 0 {
			m.setError(errors.New("run /chats first"))
			break
		}
		if c.index > len(m.chats) {
			m.setError(fmt.Errorf("no saved chat #%d", c.index))
			break
		}
		m.loadChat(m.chats[c.index-1])
	}
	return nil
}

func (m *Model) messageAt(index int) (chatModel.Message, bool) {
	msgs := m.deps.Session.Messages()
	if index < 1 || index > len(msgs) {
		m.setError(fmt.Errorf("no message #%d", index))
		return chatModel.Message{}, false
	}
	return msgs[index-1], true
}

func (m *Model) startWith(p persona.Persona) {
	if err := m.deps.Session.Start(p); err != nil {
		m.setError(err)
		return
	}
	m.mode = modeChat
	m.setStatus(fmt.Sprintf("Chatting with %s.", p.Name))
}

func (m *Model) loadChat(saved chatModel.SavedChat) {
	p, ok, err := m.deps.Personas.FindByID(saved.PersonaID)
	if err != nil {
		m.setError(err)
		return
	}
	if !ok {
		m.setError(errors.New("the persona of this chat no longer exists"))
		return
	}
	if err := m.deps.Session.Load(p, saved); err != nil {
		m.setError(err)
		return
	}
	m.mode = modeChat
	m.setStatus(fmt.Sprintf("Loaded %q.", saved.Title))
}

// sync refreshes the snapshot, applies pending events and re-renders the log.
func (m *Model) sync() {
	for _, ev := range m.inbox.drain() {
		switch ev.Kind {
		case chat.EventReplyFailed, chat.EventSaveFailed, chat.EventMemoryFailed:
			m.err = errors.New(ev.Error)
			m.status = ""
		case chat.EventSaved:
			m.setStatus(fmt.Sprintf("Saved as %q.", ev.Title))
		case chat.EventMemorySaved:
			m.setStatus("Memory saved: " + ev.Summary)
		case chat.EventMessage:
			if ev.Message != nil && ev.Message.IsModel() {
				m.err = nil
			}
		}
	}

	m.snapshot = m.deps.Session.Snapshot()
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) setStatus(text string) {
	m.status = text
	m.err = nil
}

func (m *Model) setError(err error) {
	m.log.Debug("command failed", zap.Error(err))
	m.err = err
	m.status = ""
}
