package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/history"
	"github.com/urfave/cli/v3"
)

const (
	kindPrediction = "prediction"
	kindScan       = "scan"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show or clear saved results",
		Commands: []*cli.Command{
			historyListCommand(),
			historyClearCommand(),
		},
	}
}

func kindFlag(kind *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "kind",
		Aliases:     []string{"k"},
		Usage:       "History kind (prediction, scan)",
		Value:       kindPrediction,
		Destination: kind,
	}
}

func validateKind(kind string) error {
	switch kind {
	case kindPrediction, kindScan:
		return nil
	default:
		return model.Validation(model.CodeInvalidInput, "unknown history kind")
	}
}

func historyListCommand() *cli.Command {
	var (
		cfg  config
		kind string
	)

	flags := []cli.Flag{kindFlag(&kind)}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, historyFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List saved results, most recent first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)
			w := c.Root().Writer

			e, err := cfg.open(ctx, w)
			if err != nil {
				return err
			}
			defer e.close()

			if err := validateKind(kind); err != nil {
				return e.fail(ctx, err)
			}

			labels := e.locale.Labels
			if kind == kindScan {
				log := history.NewScanLog(e.store, int(cfg.scanCap))
				log.Load(ctx)
				printScanHistory(w, labels.ScanHistory, labels.NoScanHistory, log.Entries())
				return nil
			}

			log := history.NewPredictionLog(e.store, int(cfg.predictionCap))
			log.Load(ctx)
			printPredictionHistory(w, labels.PredictionHistory, labels.NoPredictionHistory, log.Entries())
			return nil
		},
	}
}

func printPredictionHistory(w io.Writer, title, empty string, entries []model.PredictionEntry) {
	fmt.Fprintf(w, "# %s\n\n", title)
	if len(entries) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s (%.0f%%)\t%s/%s\n",
			entry.ID,
			entry.CreatedAt.Format("2006-01-02 15:04"),
			entry.Result.Crop,
			entry.Result.Confidence,
			entry.Input.Region,
			entry.Input.SoilType,
		)
	}
}

func printScanHistory(w io.Writer, title, empty string, entries []model.ScanEntry) {
	fmt.Fprintf(w, "# %s\n\n", title)
	if len(entries) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	for _, entry := range entries {
		summary, _, _ := strings.Cut(strings.TrimSpace(entry.Result.Analysis), "\n")
		var marks []string
		if entry.Artifacts.DiseaseName != "" {
			marks = append(marks, entry.Artifacts.DiseaseName)
		}
		if entry.Artifacts.TreatmentPlan != "" {
			marks = append(marks, "treatment")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t[%s]\n",
			entry.ID,
			entry.CreatedAt.Format("2006-01-02 15:04"),
			entry.Input.PlantName,
			summary,
			strings.Join(marks, ", "),
		)
	}
}

func historyClearCommand() *cli.Command {
	var (
		cfg  config
		kind string
	)

	flags := []cli.Flag{kindFlag(&kind)}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete saved results",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)
			w := c.Root().Writer

			e, err := cfg.open(ctx, w)
			if err != nil {
				return err
			}
			defer e.close()

			if err := validateKind(kind); err != nil {
				return e.fail(ctx, err)
			}

			if kind == kindScan {
				history.NewScanLog(e.store, history.DefaultScanCapacity).Clear(ctx)
			} else {
				history.NewPredictionLog(e.store, history.DefaultPredictionCapacity).Clear(ctx)
			}
			fmt.Fprintf(w, "%s history cleared\n", kind)
			return nil
		},
	}
}
