package predict

import (
	"context"
	"math"

	"github.com/m-mizutani/agriai/pkg/i18n"
	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/history"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Predictor recommends crops from farm data and records every recommendation
type Predictor struct {
	advisor interfaces.Advisor
	catalog *i18n.Catalog
	log     *history.PredictionLog
}

func New(advisor interfaces.Advisor, catalog *i18n.Catalog, log *history.PredictionLog) *Predictor {
	return &Predictor{
		advisor: advisor,
		catalog: catalog,
		log:     log,
	}
}

// History returns the prediction history log
func (x *Predictor) History() *history.PredictionLog {
	return x.log
}

// Predict validates params, asks for a recommendation and records it
func (x *Predictor) Predict(ctx context.Context, lang model.Language, params model.PredictionParams) (model.PredictionEntry, error) {
	if err := params.Validate(); err != nil {
		return model.PredictionEntry{}, err
	}

	result, err := x.advisor.Predict(ctx, params, lang)
	if err != nil {
		return model.PredictionEntry{}, err
	}

	entry := x.log.Append(ctx, params, *result)
	logging.From(ctx).Debug("prediction recorded", "id", entry.ID, "crop", result.Crop)
	return entry, nil
}

// FarmingGuide creates a growing guide for the crop of a recorded prediction and attaches it
func (x *Predictor) FarmingGuide(ctx context.Context, lang model.Language, id model.EntryID) (string, error) {
	entry, ok := x.log.Get(id)
	if !ok {
		return "", model.Validation(model.CodeEntryNotFound, "prediction entry not found", goerr.V("id", id))
	}

	guide, err := x.advisor.FarmingGuide(ctx, entry.Result.Crop, entry.Input.Region, lang)
	if err != nil {
		return "", err
	}

	x.log.Attach(ctx, id, func(a *model.Artifacts) { a.FarmingGuide = guide })
	return guide, nil
}

// UseLocation resolves the current position and applies its region and
// temperature to params. The region is applied only if the catalog knows it.
func (x *Predictor) UseLocation(ctx context.Context, geo interfaces.Geolocator, lang model.Language, params *model.PredictionParams) (*model.LocationContext, error) {
	coord, err := geo.Locate(ctx)
	if err != nil {
		return nil, err
	}

	loc, err := x.advisor.ResolveLocationContext(ctx, coord)
	if err != nil {
		return nil, err
	}

	if region, ok := x.catalog.LocalizeRegion(loc.Region, lang); ok {
		params.Region = region
	} else {
		logging.From(ctx).Info("resolved region is not in the list", "region", loc.Region)
	}
	params.Temperature = math.Round(loc.Temperature)
	return loc, nil
}
