package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/chat"
	"github.com/mattn/go-isatty"
)

// withSpinner runs fn while a loading indicator is shown on w
func withSpinner[T any](w io.Writer, label string, fn func() (T, error)) (T, error) {
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + label
	s.Start()
	defer s.Stop()
	return fn()
}

// section prints a heading followed by body
func section(w io.Writer, heading, body string) {
	fmt.Fprintf(w, "\n## %s\n\n%s\n", heading, strings.TrimSpace(body))
}

// field prints a labeled value on one line
func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s: %v\n", label, value)
}

// streamPrinter prints streamed reply text as it arrives. Error turns are
// printed whole.
func streamPrinter(w io.Writer) func(chat.Event) {
	printed := map[model.MessageID]int{}
	return func(ev chat.Event) {
		switch ev.Type {
		case chat.EventChunk:
			n := printed[ev.Turn.ID]
			if len(ev.Turn.Text) > n {
				fmt.Fprint(w, ev.Turn.Text[n:])
				printed[ev.Turn.ID] = len(ev.Turn.Text)
			}
		case chat.EventTurnAdded:
			if ev.Turn.IsError {
				fmt.Fprintf(w, "\n%s\n", ev.Turn.Text)
			}
		case chat.EventReset:
			clear(printed)
			fmt.Fprintf(w, "%s\n", ev.Turn.Text)
		}
	}
}
