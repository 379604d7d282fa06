package cli

import (
	"context"

	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/urfave/cli/v3"
)

func treatmentCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, historyFlags(&cfg)...)

	return &cli.Command{
		Name:      "treatment",
		Usage:     "Create a treatment plan for a saved leaf scan (Pro)",
		ArgsUsage: "<entry-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)
			w := c.Root().Writer

			e, err := cfg.open(ctx, w)
			if err != nil {
				return err
			}
			defer e.close()

			if c.Args().Len() == 0 {
				return e.fail(ctx, model.Validation(model.CodeInvalidInput, "entry id is required"))
			}
			id := model.EntryID(c.Args().Get(0))

			// the gate is checked before anything else is dispatched
			tier := e.tier(ctx)
			g, err := cfg.newGate(ctx)
			if err != nil {
				return e.fail(ctx, err)
			}
			if err := g.Check(tier, model.CapabilityTreatmentPlan); err != nil {
				return e.fail(ctx, err)
			}

			scanner, err := cfg.newScanner(ctx, e)
			if err != nil {
				return e.fail(ctx, err)
			}

			plan, err := withSpinner(w, e.locale.Labels.WritingTreatmentPlan, func() (string, error) {
				return scanner.TreatmentPlan(ctx, tier, e.lang, id)
			})
			if err != nil {
				return e.fail(ctx, err)
			}
			section(w, e.locale.Labels.TreatmentPlan, plan)
			return nil
		},
	}
}
