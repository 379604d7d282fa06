package predict_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/agriai/pkg/adapter"
	"github.com/m-mizutani/agriai/pkg/device"
	"github.com/m-mizutani/agriai/pkg/i18n"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/history"
	"github.com/m-mizutani/agriai/pkg/usecase/predict"
	"github.com/m-mizutani/agriai/pkg/usecase/testtools"
	"github.com/m-mizutani/gt"
)

func newPredictor(advisor *testtools.Advisor) *predict.Predictor {
	log := history.NewPredictionLog(adapter.NewMemory(), history.DefaultPredictionCapacity)
	return predict.New(advisor, i18n.MustLoad(), log)
}

func validParams() model.PredictionParams {
	p := model.DefaultPredictionParams()
	p.SoilType = "Loam"
	p.Region = "Oromia"
	return p
}

func TestPredict(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	var gotLang model.Language
	advisor.PredictFunc = func(ctx context.Context, params model.PredictionParams, lang model.Language) (*model.PredictionResult, error) {
		gotLang = lang
		return &model.PredictionResult{Crop: "Maize", Reason: "warm", Confidence: 91}, nil
	}
	predictor := newPredictor(advisor)

	entry, err := predictor.Predict(ctx, model.LanguageOromo, validParams())
	gt.NoError(t, err)
	gt.Equal(t, entry.Result.Crop, "Maize")
	gt.Equal(t, gotLang, model.LanguageOromo)

	entries := predictor.History().Entries()
	gt.A(t, entries).Length(1)
	gt.Equal(t, entries[0].ID, entry.ID)
}

func TestPredictValidation(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	predictor := newPredictor(advisor)

	params := validParams()
	params.PH = 15
	_, err := predictor.Predict(ctx, model.LanguageEnglish, params)
	gt.True(t, model.IsValidation(err))
	gt.Equal(t, model.CodeOf(err), model.CodeInvalidInput)
	gt.Equal(t, advisor.TotalCalls(), 0)
	gt.Equal(t, predictor.History().Len(), 0)
}

func TestPredictFailureIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	advisor.PredictFunc = func(ctx context.Context, params model.PredictionParams, lang model.Language) (*model.PredictionResult, error) {
		return nil, model.Service(model.CodePredictionFailed, context.DeadlineExceeded, "prediction failed")
	}
	predictor := newPredictor(advisor)

	_, err := predictor.Predict(ctx, model.LanguageEnglish, validParams())
	gt.Equal(t, model.CodeOf(err), model.CodePredictionFailed)
	gt.Equal(t, predictor.History().Len(), 0)
}

func TestFarmingGuide(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	var crop, region string
	advisor.FarmingGuideFunc = func(ctx context.Context, c, r string, lang model.Language) (string, error) {
		crop, region = c, r
		return "Sow in June", nil
	}
	predictor := newPredictor(advisor)

	entry, err := predictor.Predict(ctx, model.LanguageEnglish, validParams())
	gt.NoError(t, err)

	guide, err := predictor.FarmingGuide(ctx, model.LanguageEnglish, entry.ID)
	gt.NoError(t, err)
	gt.Equal(t, guide, "Sow in June")
	gt.Equal(t, crop, "Teff")
	gt.Equal(t, region, "Oromia")

	stored, _ := predictor.History().Get(entry.ID)
	gt.Equal(t, stored.Artifacts.FarmingGuide, "Sow in June")

	_, err = predictor.FarmingGuide(ctx, model.LanguageEnglish, model.NewEntryID())
	gt.Equal(t, model.CodeOf(err), model.CodeEntryNotFound)
}

func TestUseLocation(t *testing.T) {
	ctx := context.Background()

	t.Run("known region is localized", func(t *testing.T) {
		advisor := &testtools.Advisor{}
		predictor := newPredictor(advisor)
		params := validParams()
		params.Region = ""

		geo := device.NewStaticGeolocator(&model.Coordinates{Latitude: 8.5, Longitude: 39.2})
		loc, err := predictor.UseLocation(ctx, geo, model.LanguageAmharic, &params)
		gt.NoError(t, err)
		gt.Equal(t, loc.Region, "Oromia")
		gt.Equal(t, params.Region, "ኦሮሚያ")
		gt.Equal(t, params.Temperature, 22.0)
	})

	t.Run("unknown region keeps selection", func(t *testing.T) {
		advisor := &testtools.Advisor{}
		advisor.ResolveLocationContextFunc = func(ctx context.Context, coord model.Coordinates) (*model.LocationContext, error) {
			return &model.LocationContext{Region: "Nairobi", Temperature: 18.4}, nil
		}
		predictor := newPredictor(advisor)
		params := validParams()

		_, err := predictor.UseLocation(ctx, device.NewStaticGeolocator(&model.Coordinates{}), model.LanguageEnglish, &params)
		gt.NoError(t, err)
		gt.Equal(t, params.Region, "Oromia")
		gt.Equal(t, params.Temperature, 18.0)
	})

	t.Run("no position", func(t *testing.T) {
		advisor := &testtools.Advisor{}
		predictor := newPredictor(advisor)
		params := validParams()

		_, err := predictor.UseLocation(ctx, device.NewStaticGeolocator(nil), model.LanguageEnglish, &params)
		gt.Equal(t, model.CodeOf(err), model.CodeGeolocationUnsupported)
		gt.Equal(t, advisor.TotalCalls(), 0)
	})
}
