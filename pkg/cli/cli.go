package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "agriai",
		Usage: "Agronomic advice from soil data and leaf photographs",
		Commands: []*cli.Command{
			predictCommand(),
			chatCommand(),
			scanCommand(),
			treatmentCommand(),
			historyCommand(),
			speakCommand(),
			profileCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
