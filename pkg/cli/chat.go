package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/agriai/pkg/device"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/audio"
	"github.com/m-mizutani/agriai/pkg/usecase/chat"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const chatHelp = `/lang <en|am|om>  switch language and start over
/voice <file>     send a recorded question (Pro)
/say [n]          read turn n aloud, or the last reply. Again to stop
/exit             quit`

func chatCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, audioFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Talk with AgriBot",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)
			w := c.Root().Writer

			e, err := cfg.open(ctx, w)
			if err != nil {
				return err
			}
			defer e.close()

			adv, err := cfg.newAdvisor(ctx, e.catalog)
			if err != nil {
				return e.fail(ctx, err)
			}
			g, err := cfg.newGate(ctx)
			if err != nil {
				return e.fail(ctx, err)
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "> ",
				HistoryFile: filepath.Join(cfg.dataDir, "chat_history"),
				Stdout:      w,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start prompt")
			}
			defer rl.Close()
			out := rl.Stdout()

			session := chat.New(adv, g, e.catalog, chat.WithObserver(streamPrinter(out)))
			defer session.Close()
			session.Init(e.lang)
			fmt.Fprintln(out, chatHelp)

			repl := &chatREPL{cfg: &cfg, env: e, session: session, out: out}
			defer repl.close()

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if line == "/exit" {
					break
				}
				repl.handle(ctx, line)
			}

			_ = e.profile.SetLastTool(ctx, model.ToolChatbot)
			return nil
		},
	}
}

type chatREPL struct {
	cfg     *config
	env     *env
	session *chat.Session
	out     io.Writer
	speaker *audio.Coordinator
}

func (r *chatREPL) close() {
	if r.speaker != nil {
		r.speaker.Close()
	}
}

func (r *chatREPL) handle(ctx context.Context, line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/lang":
		lang := model.Language(arg)
		if err := lang.Validate(); err != nil {
			r.printErr(ctx, err)
			return
		}
		r.session.SetLanguage(lang)
		r.env.locale = r.env.catalog.For(lang)
		if err := r.env.profile.SetLanguage(ctx, lang); err != nil {
			r.printErr(ctx, err)
		}

	case "/voice":
		mic := device.NewFileMicrophone(arg)
		data, mimeType, err := mic.Record(ctx)
		if err != nil {
			r.printErr(ctx, err)
			return
		}
		text, err := r.session.SendVoice(ctx, r.env.tier(ctx), data, mimeType)
		if model.IsUpgradeRequired(err) || (err != nil && text == "") {
			r.printErr(ctx, err)
			return
		}
		fmt.Fprintln(r.out)

	case "/say":
		r.say(ctx, arg)

	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Fprintln(r.out, chatHelp)
			return
		}
		// a failure is already shown as an error turn
		_ = r.session.Send(ctx, line)
		fmt.Fprintln(r.out)
	}
}

func (r *chatREPL) say(ctx context.Context, arg string) {
	if r.speaker == nil {
		adv, err := r.cfg.newAdvisor(ctx, r.env.catalog)
		if err != nil {
			r.printErr(ctx, err)
			return
		}
		player, err := r.cfg.newPlayer()
		if err != nil {
			r.printErr(ctx, err)
			return
		}
		r.speaker = audio.New(adv, player)
	}

	turns := r.session.Turns()
	idx := len(turns) - 1
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(turns) {
			r.printErr(ctx, model.Validation(model.CodeInvalidInput, "no such turn", goerr.V("turn", arg)))
			return
		}
		idx = n - 1
	}
	for idx >= 0 && turns[idx].Role != model.RoleModel {
		idx--
	}
	if idx < 0 {
		return
	}

	if !r.speaker.Play(ctx, turns[idx].Text) {
		return
	}
	// report synthesis failures once loading settles, without blocking the prompt
	go func() {
		if err := r.speaker.Wait(ctx); err == nil && r.speaker.Err() != nil {
			r.printErr(ctx, r.speaker.Err())
		}
	}()
}

func (r *chatREPL) printErr(ctx context.Context, err error) {
	fmt.Fprintln(os.Stderr, r.env.fail(ctx, err))
}
