package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m-mizutani/agriai/pkg/gate"
	"github.com/m-mizutani/agriai/pkg/i18n"
	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/chat"
	"github.com/m-mizutani/agriai/pkg/usecase/testtools"
	"github.com/m-mizutani/gt"
)

func newSession(t *testing.T, advisor *testtools.Advisor, opts ...chat.Option) *chat.Session {
	t.Helper()
	g, err := gate.New(context.Background())
	gt.NoError(t, err)
	return chat.New(advisor, g, i18n.MustLoad(), opts...)
}

func withConversation(advisor *testtools.Advisor, conv *testtools.Conversation) {
	advisor.NewConversationFunc = func(ctx context.Context, lang model.Language) (interfaces.Conversation, error) {
		return conv, nil
	}
}

func TestInitGreeting(t *testing.T) {
	catalog := i18n.MustLoad()
	session := newSession(t, &testtools.Advisor{})

	for _, lang := range model.Languages {
		session.Init(lang)
		turns := session.Turns()
		gt.A(t, turns).Length(1)
		gt.Equal(t, turns[0].Role, model.RoleModel)
		gt.Equal(t, turns[0].Text, catalog.For(lang).Greeting())
	}
}

func TestSendStreamsChunksInOrder(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	conv := &testtools.Conversation{Chunks: []string{"Teff ", "grows ", "well ", "here."}}
	withConversation(advisor, conv)

	var chunks []string
	session := newSession(t, advisor, chat.WithObserver(func(ev chat.Event) {
		if ev.Type == chat.EventChunk {
			chunks = append(chunks, ev.Turn.Text)
		}
	}))
	session.Init(model.LanguageEnglish)

	gt.NoError(t, session.Send(ctx, "  What grows in Oromia?  "))

	turns := session.Turns()
	gt.A(t, turns).Length(3)
	gt.Equal(t, turns[1].Role, model.RoleUser)
	gt.Equal(t, turns[1].Text, "What grows in Oromia?")
	gt.Equal(t, turns[2].Role, model.RoleModel)
	gt.Equal(t, turns[2].Text, "Teff grows well here.")
	gt.False(t, turns[2].IsError)
	gt.Equal(t, chunks, []string{"Teff ", "Teff grows ", "Teff grows well ", "Teff grows well here."})
	gt.False(t, session.Active())

	// the conversation is reused for later messages
	gt.NoError(t, session.Send(ctx, "And maize?"))
	gt.Equal(t, advisor.CallCount("NewConversation"), 1)
	gt.Equal(t, conv.Messages(), []string{"What grows in Oromia?", "And maize?"})
}

func TestSendEmptyMessage(t *testing.T) {
	advisor := &testtools.Advisor{}
	session := newSession(t, advisor)
	session.Init(model.LanguageEnglish)

	err := session.Send(context.Background(), "   ")
	gt.Equal(t, model.CodeOf(err), model.CodeEmptyMessage)
	gt.A(t, session.Turns()).Length(1)
	gt.Equal(t, advisor.TotalCalls(), 0)
}

func TestSendFailureAddsErrorTurn(t *testing.T) {
	ctx := context.Background()
	catalog := i18n.MustLoad()
	advisor := &testtools.Advisor{}
	cause := model.Service(model.CodeAgriBotFailed, errors.New("unavailable"), "chat failed")
	withConversation(advisor, &testtools.Conversation{
		StreamFunc: func(ctx context.Context, message string, onChunk func(string)) error {
			onChunk("partial")
			return cause
		},
	})
	session := newSession(t, advisor)
	session.Init(model.LanguageAmharic)

	err := session.Send(ctx, "hello")
	gt.Error(t, err)

	turns := session.Turns()
	gt.A(t, turns).Length(3)
	gt.Equal(t, turns[1].Text, "hello")
	gt.True(t, turns[2].IsError)
	gt.Equal(t, turns[2].Text, catalog.For(model.LanguageAmharic).TurnError(cause))
	gt.S(t, turns[2].Text).NotContains("partial")
}

func TestLanguageSwitchDropsInflightReply(t *testing.T) {
	ctx := context.Background()
	catalog := i18n.MustLoad()
	advisor := &testtools.Advisor{}

	firstChunk := make(chan struct{})
	release := make(chan struct{})
	withConversation(advisor, &testtools.Conversation{
		StreamFunc: func(ctx context.Context, message string, onChunk func(string)) error {
			onChunk("Hello ")
			close(firstChunk)
			<-release
			onChunk("farmer")
			return nil
		},
	})
	session := newSession(t, advisor)
	session.Init(model.LanguageEnglish)

	done := make(chan error, 1)
	go func() {
		done <- session.Send(ctx, "hi")
	}()

	<-firstChunk
	gt.True(t, session.Active())
	session.SetLanguage(model.LanguageOromo)
	close(release)
	gt.NoError(t, <-done)

	turns := session.Turns()
	gt.A(t, turns).Length(1)
	gt.Equal(t, turns[0].Text, catalog.For(model.LanguageOromo).Greeting())
	gt.Equal(t, session.Language(), model.LanguageOromo)
	gt.False(t, session.Active())
}

func TestSetLanguageSameKeepsTurns(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	session := newSession(t, advisor)
	session.Init(model.LanguageEnglish)
	gt.NoError(t, session.Send(ctx, "hi"))

	session.SetLanguage(model.LanguageEnglish)
	gt.A(t, session.Turns()).Length(3)
}

func TestSendBeforeInitUsesDefaultLanguage(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	var langs []model.Language
	advisor.NewConversationFunc = func(ctx context.Context, lang model.Language) (interfaces.Conversation, error) {
		langs = append(langs, lang)
		return &testtools.Conversation{Chunks: []string{"ok"}}, nil
	}
	session := newSession(t, advisor)

	gt.NoError(t, session.Send(ctx, "hello"))
	gt.Equal(t, session.Language(), model.DefaultLanguage)
	gt.Equal(t, langs, []model.Language{model.DefaultLanguage})
	turns := session.Turns()
	gt.A(t, turns).Length(3)
	gt.Equal(t, turns[0].Text, i18n.MustLoad().For(model.DefaultLanguage).Greeting())

	// already in the default language, so nothing starts over
	session.SetLanguage(model.LanguageEnglish)
	gt.A(t, session.Turns()).Length(3)
}

func TestUnsupportedLanguageIsNotStored(t *testing.T) {
	session := newSession(t, &testtools.Advisor{})

	session.Init(model.Language("fr"))
	gt.Equal(t, session.Language(), model.DefaultLanguage)

	session.SetLanguage(model.LanguageAmharic)
	gt.Equal(t, session.Language(), model.LanguageAmharic)
	session.SetLanguage(model.Language("fr"))
	gt.Equal(t, session.Language(), model.DefaultLanguage)
	gt.A(t, session.Turns()).Length(1)
}

func TestConcurrentSends(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	withConversation(advisor, &testtools.Conversation{
		StreamFunc: func(ctx context.Context, message string, onChunk func(string)) error {
			onChunk("re: ")
			onChunk(message)
			return nil
		},
	})
	session := newSession(t, advisor)
	session.Init(model.LanguageEnglish)

	messages := []string{"one", "two", "three", "four"}
	var wg sync.WaitGroup
	for _, msg := range messages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gt.NoError(t, session.Send(ctx, msg))
		}()
	}
	wg.Wait()

	turns := session.Turns()
	gt.A(t, turns).Length(1 + 2*len(messages))
	for i := 1; i < len(turns); i += 2 {
		gt.Equal(t, turns[i].Role, model.RoleUser)
		gt.Equal(t, turns[i+1].Text, "re: "+turns[i].Text)
	}
}

func TestSendVoice(t *testing.T) {
	ctx := context.Background()

	t.Run("free tier makes no call", func(t *testing.T) {
		advisor := &testtools.Advisor{}
		session := newSession(t, advisor)
		session.Init(model.LanguageEnglish)

		_, err := session.SendVoice(ctx, model.TierFree, []byte("audio"), "audio/wav")
		gt.True(t, model.IsUpgradeRequired(err))
		gt.Equal(t, advisor.TotalCalls(), 0)
		gt.A(t, session.Turns()).Length(1)
	})

	t.Run("pro tier sends transcript", func(t *testing.T) {
		advisor := &testtools.Advisor{}
		var gotLang model.Language
		advisor.TranscribeFunc = func(ctx context.Context, audio []byte, mimeType string, lang model.Language) (string, error) {
			gotLang = lang
			return "When to plant teff?", nil
		}
		session := newSession(t, advisor)
		session.Init(model.LanguageAmharic)

		text, err := session.SendVoice(ctx, model.TierPro, []byte("audio"), "audio/wav")
		gt.NoError(t, err)
		gt.Equal(t, text, "When to plant teff?")
		gt.Equal(t, gotLang, model.LanguageAmharic)
		gt.Equal(t, session.Turns()[1].Text, "When to plant teff?")
	})

	t.Run("empty transcript", func(t *testing.T) {
		advisor := &testtools.Advisor{}
		advisor.TranscribeFunc = func(ctx context.Context, audio []byte, mimeType string, lang model.Language) (string, error) {
			return " ", nil
		}
		session := newSession(t, advisor)
		session.Init(model.LanguageEnglish)

		_, err := session.SendVoice(ctx, model.TierPro, []byte("audio"), "audio/wav")
		gt.Equal(t, model.CodeOf(err), model.CodeEmptyMessage)
		gt.A(t, session.Turns()).Length(1)
	})
}

func TestAskAbout(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	conv := &testtools.Conversation{Chunks: []string{"Prepare the field."}}
	withConversation(advisor, conv)
	session := newSession(t, advisor)
	session.Init(model.LanguageEnglish)

	gt.NoError(t, session.AskAbout(ctx, "Teff", "Amhara"))
	msgs := conv.Messages()
	gt.A(t, msgs).Length(1)
	gt.S(t, msgs[0]).Contains("Teff")
	gt.S(t, msgs[0]).Contains("Amhara")
}
