package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/m-mizutani/agriai/pkg/device"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/history"
	"github.com/m-mizutani/agriai/pkg/usecase/scan"
	"github.com/urfave/cli/v3"
)

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Analyze leaf and soil photographs",
		Commands: []*cli.Command{
			scanLeafCommand(),
			scanSoilCommand(),
		},
	}
}

// newScanner builds a scanner with its history loaded
func (cfg *config) newScanner(ctx context.Context, e *env) (*scan.Scanner, error) {
	adv, err := cfg.newAdvisor(ctx, e.catalog)
	if err != nil {
		return nil, err
	}
	g, err := cfg.newGate(ctx)
	if err != nil {
		return nil, err
	}
	storage, err := cfg.newArtifactStorage(ctx)
	if err != nil {
		return nil, err
	}

	log := history.NewScanLog(e.store, int(cfg.scanCap))
	log.Load(ctx)
	return scan.New(adv, g, log, storage), nil
}

func scanLeafCommand() *cli.Command {
	var (
		cfg       config
		imagePath string
		input     model.ScanInput
		treatment bool
		watchDir  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "Leaf photograph", Destination: &imagePath},
		&cli.StringFlag{Name: "plant", Usage: "Plant name, enables growth stages and visual reference", Destination: &input.PlantName},
		&cli.StringFlag{Name: "prompt", Usage: "Question about the leaf", Destination: &input.Prompt},
		&cli.BoolFlag{Name: "treatment", Usage: "Also create a treatment plan (Pro)", Destination: &treatment},
		&cli.StringFlag{Name: "watch", Usage: "Analyze every photograph saved into this directory", Destination: &watchDir},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, historyFlags(&cfg)...)

	return &cli.Command{
		Name:  "leaf",
		Usage: "Diagnose a leaf photograph",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)
			w := c.Root().Writer

			e, err := cfg.open(ctx, w)
			if err != nil {
				return err
			}
			defer e.close()

			scanner, err := cfg.newScanner(ctx, e)
			if err != nil {
				return e.fail(ctx, err)
			}
			tier := e.tier(ctx)
			_ = e.profile.SetLastTool(ctx, model.ToolScanner)

			if watchDir != "" {
				return e.fail(ctx, watchLeaves(ctx, w, e, scanner, tier, watchDir, input))
			}

			frame, err := device.ReadFrame(imagePath)
			if err != nil {
				return e.fail(ctx, err)
			}
			input.MIMEType = frame.MIMEType

			entry, err := withSpinner(w, e.locale.Labels.Analyzing, func() (model.ScanEntry, error) {
				return scanner.Analyze(ctx, tier, e.lang, input, frame.Data)
			})
			if err != nil {
				return e.fail(ctx, err)
			}
			_, _ = withSpinner(w, e.locale.Labels.PreparingDetails, func() (struct{}, error) {
				scanner.Wait()
				return struct{}{}, nil
			})
			printScan(ctx, w, e, scanner, entry.ID)

			if treatment {
				plan, err := withSpinner(w, e.locale.Labels.WritingTreatmentPlan, func() (string, error) {
					return scanner.TreatmentPlan(ctx, tier, e.lang, entry.ID)
				})
				if err != nil {
					return e.fail(ctx, err)
				}
				section(w, e.locale.Labels.TreatmentPlan, plan)
			}
			return nil
		},
	}
}

func watchLeaves(ctx context.Context, w io.Writer, e *env, scanner *scan.Scanner, tier model.Tier, dir string, input model.ScanInput) error {
	camera, err := device.NewCamera(dir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprintf(w, "watching %s (Ctrl+C to stop)\n", dir)
	return scanner.Watch(ctx, camera, tier, e.lang, input, func(entry model.ScanEntry, err error) {
		if err != nil {
			fmt.Fprintln(os.Stderr, e.fail(ctx, err))
			return
		}
		scanner.Wait()
		printScan(ctx, w, e, scanner, entry.ID)
	})
}

func printScan(ctx context.Context, w io.Writer, e *env, scanner *scan.Scanner, id model.EntryID) {
	entry, ok := scanner.History().Get(id)
	if !ok {
		return
	}
	labels := e.locale.Labels

	section(w, labels.AnalysisResult, entry.Result.Analysis)
	field(w, labels.Confidence, fmt.Sprintf("%.0f%%", entry.Result.Confidence))

	a := entry.Artifacts
	if a.IllustrationRef != "" {
		section(w, labels.VisualReference, a.DiseaseName+"\n"+a.IllustrationRef+"\n"+labels.VisualReferenceDisclaimer)
	}
	if a.GrowthStages != "" {
		section(w, labels.GrowthStages, a.GrowthStages)
	}

	if run := scanner.Current(); run != nil {
		for _, name := range run.Branches() {
			if status, _ := run.Status(name); status.Err != nil {
				fmt.Fprintln(os.Stderr, e.fail(ctx, status.Err))
			}
		}
	}
	fmt.Fprintf(w, "\n(id: %s)\n", entry.ID)
}

func scanSoilCommand() *cli.Command {
	var (
		cfg       config
		imagePath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "Soil photograph", Destination: &imagePath},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, historyFlags(&cfg)...)

	return &cli.Command{
		Name:  "soil",
		Usage: "Classify a soil photograph",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)
			w := c.Root().Writer

			e, err := cfg.open(ctx, w)
			if err != nil {
				return err
			}
			defer e.close()

			scanner, err := cfg.newScanner(ctx, e)
			if err != nil {
				return e.fail(ctx, err)
			}
			_ = e.profile.SetLastTool(ctx, model.ToolSoilScanner)

			frame, err := device.ReadFrame(imagePath)
			if err != nil {
				return e.fail(ctx, err)
			}

			text, err := withSpinner(w, e.locale.Labels.Analyzing, func() (string, error) {
				return scanner.AnalyzeSoil(ctx, e.lang, frame.Data, frame.MIMEType)
			})
			if err != nil {
				return e.fail(ctx, err)
			}
			section(w, e.locale.Labels.SoilAnalysisResult, text)
			return nil
		},
	}
}
