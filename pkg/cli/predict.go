package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/m-mizutani/agriai/pkg/device"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/chat"
	"github.com/m-mizutani/agriai/pkg/usecase/history"
	"github.com/m-mizutani/agriai/pkg/usecase/predict"
	"github.com/urfave/cli/v3"
)

func predictCommand() *cli.Command {
	var (
		cfg      config
		params   = model.DefaultPredictionParams()
		lat, lon float64
		guide    bool
		ask      bool
	)

	flags := []cli.Flag{
		&cli.FloatFlag{Name: "rainfall", Usage: "Annual rainfall in mm (0-500)", Value: params.Rainfall, Destination: &params.Rainfall},
		&cli.FloatFlag{Name: "temperature", Usage: "Average temperature in Celsius (-10-50)", Value: params.Temperature, Destination: &params.Temperature},
		&cli.FloatFlag{Name: "humidity", Usage: "Relative humidity in % (0-100)", Value: params.Humidity, Destination: &params.Humidity},
		&cli.FloatFlag{Name: "nitrogen", Aliases: []string{"n"}, Usage: "Nitrogen (0-200)", Value: params.Nitrogen, Destination: &params.Nitrogen},
		&cli.FloatFlag{Name: "phosphorus", Usage: "Phosphorus (0-200)", Value: params.Phosphorus, Destination: &params.Phosphorus},
		&cli.FloatFlag{Name: "potassium", Aliases: []string{"k"}, Usage: "Potassium (0-200)", Value: params.Potassium, Destination: &params.Potassium},
		&cli.FloatFlag{Name: "ph", Usage: "Soil pH (0-14)", Value: params.PH, Destination: &params.PH},
		&cli.StringFlag{Name: "soil", Usage: "Soil type", Destination: &params.SoilType},
		&cli.StringFlag{Name: "region", Usage: "Region", Destination: &params.Region},
		&cli.StringFlag{Name: "prompt", Usage: "Additional request to the advisor", Destination: &params.CustomPrompt},
		&cli.FloatFlag{Name: "lat", Usage: "Latitude used to fill region and temperature", Destination: &lat},
		&cli.FloatFlag{Name: "lon", Usage: "Longitude used to fill region and temperature", Destination: &lon},
		&cli.BoolFlag{Name: "guide", Usage: "Also create a farming guide for the recommended crop", Destination: &guide},
		&cli.BoolFlag{Name: "ask", Usage: "Ask AgriBot about the recommended crop", Destination: &ask},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, historyFlags(&cfg)...)

	return &cli.Command{
		Name:  "predict",
		Usage: "Recommend a crop from soil and climate data",
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

			log := history.NewPredictionLog(e.store, int(cfg.predictionCap))
			log.Load(ctx)
			predictor := predict.New(adv, e.catalog, log)

			if c.IsSet("lat") || c.IsSet("lon") {
				geo := device.NewStaticGeolocator(&model.Coordinates{Latitude: lat, Longitude: lon})
				loc, err := withSpinner(w, e.locale.Labels.Locating, func() (*model.LocationContext, error) {
					return predictor.UseLocation(ctx, geo, e.lang, &params)
				})
				if err != nil {
					fmt.Fprintln(c.Root().ErrWriter, e.fail(ctx, err))
				} else {
					field(w, e.locale.Labels.Location, fmt.Sprintf("%s, %.0f°C", loc.Region, params.Temperature))
				}
			}

			entry, err := withSpinner(w, e.locale.Labels.Predicting, func() (model.PredictionEntry, error) {
				return predictor.Predict(ctx, e.lang, params)
			})
			if err != nil {
				return e.fail(ctx, err)
			}
			printPrediction(w, e, entry)

			if guide {
				text, err := withSpinner(w, e.locale.Labels.WritingGuide, func() (string, error) {
					return predictor.FarmingGuide(ctx, e.lang, entry.ID)
				})
				if err != nil {
					return e.fail(ctx, err)
				}
				section(w, e.locale.Labels.FarmingGuide, text)
			}

			if ask {
				g, err := cfg.newGate(ctx)
				if err != nil {
					return e.fail(ctx, err)
				}
				session := chat.New(adv, g, e.catalog, chat.WithObserver(streamPrinter(w)))
				session.Init(e.lang)
				fmt.Fprintln(w)
				if err := session.AskAbout(ctx, entry.Result.Crop, entry.Input.Region); err != nil {
					return e.fail(ctx, err)
				}
				fmt.Fprintln(w)
			}

			_ = e.profile.SetLastTool(ctx, model.ToolPredictor)
			return nil
		},
	}
}

func printPrediction(w io.Writer, e *env, entry model.PredictionEntry) {
	labels := e.locale.Labels
	fmt.Fprintf(w, "\n# %s: %s\n\n", labels.RecommendedCrop, entry.Result.Crop)
	field(w, labels.Confidence, fmt.Sprintf("%.0f%%", entry.Result.Confidence))
	if entry.Result.ExpectedYield != "" {
		field(w, labels.ExpectedYield, entry.Result.ExpectedYield)
	}
	section(w, labels.Justification, entry.Result.Reason)
	fmt.Fprintf(w, "\n(id: %s)\n", entry.ID)
}
