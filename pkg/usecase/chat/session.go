package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/agriai/pkg/i18n"
	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
)

// EventType is the kind of change reported to a session observer
type EventType string

const (
	// EventReset means turns were replaced, e.g. by a language switch
	EventReset EventType = "reset"
	// EventTurnAdded means Turn was appended
	EventTurnAdded EventType = "turn_added"
	// EventChunk means Turn received streamed text. Turn.Text is the whole text so far.
	EventChunk EventType = "chunk"
	// EventTurnRemoved means Turn was removed
	EventTurnRemoved EventType = "turn_removed"
)

// Event is a change of the session turns
type Event struct {
	Type EventType
	Turn model.Turn
}

// Session is a conversation with AgriBot bound to one language. Switching the
// language starts over and drops every response still in flight.
type Session struct {
	advisor  interfaces.Advisor
	gate     interfaces.FeatureGate
	catalog  *i18n.Catalog
	observer func(Event)

	mutex      sync.Mutex
	lang       model.Language
	generation uint64
	conv       interfaces.Conversation
	turns      []model.Turn
	inflight   int
}

// Option is a functional option for Session
type Option func(*Session)

// WithObserver registers fn to receive every change of the turns
func WithObserver(fn func(Event)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

func New(advisor interfaces.Advisor, gate interfaces.FeatureGate, catalog *i18n.Catalog, opts ...Option) *Session {
	s := &Session{
		advisor:  advisor,
		gate:     gate,
		catalog:  catalog,
		observer: func(Event) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init starts the session in lang with a single greeting turn. Unsupported
// languages fall back to the default language.
func (x *Session) Init(lang model.Language) {
	x.mutex.Lock()
	events := x.reset(lang)
	x.mutex.Unlock()
	x.emit(events)
}

// SetLanguage starts over in lang if it differs from the current language
func (x *Session) SetLanguage(lang model.Language) {
	lang = model.ParseLanguage(string(lang))
	x.mutex.Lock()
	if x.lang == lang && x.turns != nil {
		x.mutex.Unlock()
		return
	}
	events := x.reset(lang)
	x.mutex.Unlock()
	x.emit(events)
}

// reset must be called with mutex held
func (x *Session) reset(lang model.Language) []Event {
	lang = model.ParseLanguage(string(lang))
	x.lang = lang
	x.generation++
	x.conv = nil
	x.inflight = 0
	greeting := model.Turn{
		ID:   model.NewMessageID(),
		Role: model.RoleModel,
		Text: x.catalog.For(lang).Greeting(),
	}
	x.turns = []model.Turn{greeting}
	return []Event{{Type: EventReset, Turn: greeting}}
}

// Close drops the conversation and every response still in flight
func (x *Session) Close() {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.generation++
	x.conv = nil
	x.turns = nil
	x.inflight = 0
}

func (x *Session) emit(events []Event) {
	for _, ev := range events {
		x.observer(ev)
	}
}

// Send posts text and streams the reply into a new turn. On failure the reply
// turn is replaced with an error turn and the error is returned. Several sends
// may run at once; each reply goes to its own turn.
func (x *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Validation(model.CodeEmptyMessage, "message is empty")
	}

	var events []Event
	x.mutex.Lock()
	if x.turns == nil {
		events = x.reset(x.lang)
	}
	gen := x.generation
	lang := x.lang
	conv := x.conv
	user := model.Turn{ID: model.NewMessageID(), Role: model.RoleUser, Text: text}
	reply := model.Turn{ID: model.NewMessageID(), Role: model.RoleModel}
	x.turns = append(x.turns, user, reply)
	x.inflight++
	x.mutex.Unlock()
	x.emit(append(events, Event{Type: EventTurnAdded, Turn: user}, Event{Type: EventTurnAdded, Turn: reply}))
	events = nil

	logger := logging.From(ctx).With("message_id", reply.ID)

	var err error
	if conv == nil {
		conv, err = x.conversation(ctx, gen, lang)
	}
	if err == nil {
		err = conv.Stream(ctx, text, func(chunk string) {
			x.appendChunk(gen, reply.ID, chunk)
		})
	}

	x.mutex.Lock()
	if x.generation != gen {
		x.mutex.Unlock()
		logger.Debug("discard reply of previous conversation")
		return err
	}
	x.inflight--

	if err != nil {
		logger.Warn("chat failed", logging.ErrAttr(err))
		if removed, ok := x.remove(reply.ID); ok {
			events = append(events, Event{Type: EventTurnRemoved, Turn: removed})
		}
		errTurn := model.Turn{
			ID:      model.NewMessageID(),
			Role:    model.RoleModel,
			Text:    x.catalog.For(lang).TurnError(err),
			IsError: true,
		}
		x.turns = append(x.turns, errTurn)
		events = append(events, Event{Type: EventTurnAdded, Turn: errTurn})
	}
	x.mutex.Unlock()
	x.emit(events)

	return err
}

// conversation returns the conversation of generation gen, opening it if needed
func (x *Session) conversation(ctx context.Context, gen uint64, lang model.Language) (interfaces.Conversation, error) {
	conv, err := x.advisor.NewConversation(ctx, lang)
	if err != nil {
		return nil, err
	}

	x.mutex.Lock()
	defer x.mutex.Unlock()
	if x.generation == gen {
		if x.conv != nil {
			return x.conv, nil
		}
		x.conv = conv
	}
	return conv, nil
}

func (x *Session) appendChunk(gen uint64, id model.MessageID, chunk string) {
	x.mutex.Lock()
	if x.generation != gen {
		x.mutex.Unlock()
		return
	}
	var updated *model.Turn
	for i := range x.turns {
		if x.turns[i].ID == id {
			x.turns[i].Text += chunk
			updated = &x.turns[i]
			break
		}
	}
	if updated == nil {
		x.mutex.Unlock()
		return
	}
	ev := Event{Type: EventChunk, Turn: *updated}
	x.mutex.Unlock()
	x.observer(ev)
}

// remove must be called with mutex held
func (x *Session) remove(id model.MessageID) (model.Turn, bool) {
	for i, turn := range x.turns {
		if turn.ID == id {
			x.turns = append(x.turns[:i], x.turns[i+1:]...)
			return turn, true
		}
	}
	return model.Turn{}, false
}

// Turns returns a copy of the conversation turns in order
func (x *Session) Turns() []model.Turn {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return append([]model.Turn(nil), x.turns...)
}

// Language returns the current language
func (x *Session) Language() model.Language {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.lang
}

// Active reports whether a reply is still being received
func (x *Session) Active() bool {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.inflight > 0
}

// SendVoice transcribes recorded speech and sends the transcript. Voice input
// is a premium capability; on a tier without it no call is made.
func (x *Session) SendVoice(ctx context.Context, tier model.Tier, audio []byte, mimeType string) (string, error) {
	if err := x.gate.Check(tier, model.CapabilityVoiceInput); err != nil {
		return "", err
	}

	text, err := x.advisor.Transcribe(ctx, audio, mimeType, x.Language())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", model.Validation(model.CodeEmptyMessage, "no speech recognized")
	}

	return text, x.Send(ctx, text)
}

// AskAbout asks about growing crop in region, as handed off from a prediction
func (x *Session) AskAbout(ctx context.Context, crop, region string) error {
	return x.Send(ctx, x.catalog.For(x.Language()).AskBotPrompt(crop, region))
}
