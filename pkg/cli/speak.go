package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/audio"
	"github.com/urfave/cli/v3"
)

func speakCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, audioFlags(&cfg)...)

	return &cli.Command{
		Name:      "speak",
		Usage:     "Read text aloud",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)

			e, err := cfg.open(ctx, c.Root().Writer)
			if err != nil {
				return err
			}
			defer e.close()

			text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if text == "" {
				return e.fail(ctx, model.Validation(model.CodeEmptyMessage, "text is required"))
			}

			adv, err := cfg.newAdvisor(ctx, e.catalog)
			if err != nil {
				return e.fail(ctx, err)
			}
			player, err := cfg.newPlayer()
			if err != nil {
				return e.fail(ctx, err)
			}

			speaker := audio.New(adv, player)
			defer speaker.Close()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			speaker.Play(ctx, text)
			if err := speaker.Wait(ctx); err != nil {
				// interrupted; Close releases the playback
				return nil
			}
			return e.fail(ctx, speaker.Err())
		},
	}
}
