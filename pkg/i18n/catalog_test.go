package i18n_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/m-mizutani/agriai/pkg/i18n"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestLoadEmbedded(t *testing.T) {
	catalog, err := i18n.Load()
	gt.NoError(t, err)

	for _, lang := range model.Languages {
		loc := catalog.For(lang)
		gt.Equal(t, loc.Language, lang)
		gt.True(t, loc.Greeting() != "")
		for _, code := range model.AllErrorCodes {
			gt.True(t, loc.Errors[code] != "")
		}
	}
}

func TestGreeting(t *testing.T) {
	catalog := i18n.MustLoad()
	gt.Equal(t, catalog.For(model.LanguageEnglish).Greeting(),
		"Hello! I am AgriBot. How can I help you with your agricultural questions today?")
	gt.S(t, catalog.For(model.LanguageOromo).Greeting()).Contains("Akkam!")
	gt.Equal(t, catalog.For(model.Language("fr")).Greeting(), catalog.For(model.LanguageEnglish).Greeting())
}

func TestErrorMessage(t *testing.T) {
	loc := i18n.MustLoad().For(model.LanguageEnglish)

	t.Run("coded error", func(t *testing.T) {
		err := model.Service(model.CodePredictionFailed, goerr.New("quota exceeded"), "predict failed")
		gt.S(t, loc.ErrorMessage(err)).Contains("Failed to get a prediction")
		gt.S(t, loc.ErrorMessage(err)).NotContains("quota")
	})

	t.Run("wrapped coded error keeps its code", func(t *testing.T) {
		err := goerr.Wrap(model.ErrAPIKeyMissing, "cannot start")
		gt.Equal(t, loc.ErrorMessage(err), "API key is not configured. Please contact support.")
	})

	t.Run("uncoded error", func(t *testing.T) {
		gt.Equal(t, loc.ErrorMessage(goerr.New("boom")), "An unknown error occurred. Please try again.")
	})

	t.Run("turn error carries prefix", func(t *testing.T) {
		err := model.Service(model.CodeAgriBotFailed, goerr.New("EOF"), "stream failed")
		gt.Equal(t, loc.TurnError(err),
			"Sorry, I encountered an error: Failed to get a response from AgriBot. Please check your connection and try again.")
	})
}

func TestAskBotPrompt(t *testing.T) {
	loc := i18n.MustLoad().For(model.LanguageEnglish)
	prompt := loc.AskBotPrompt("Teff", "Oromia")
	gt.S(t, prompt).Contains("Teff")
	gt.S(t, prompt).Contains("Oromia")
	gt.S(t, prompt).NotContains("{crop}")
}

func TestLocalizeRegion(t *testing.T) {
	catalog := i18n.MustLoad()

	name, ok := catalog.LocalizeRegion("oromia", model.LanguageAmharic)
	gt.True(t, ok)
	gt.Equal(t, name, "ኦሮሚያ")

	name, ok = catalog.LocalizeRegion("Amaara", model.LanguageEnglish)
	gt.True(t, ok)
	gt.Equal(t, name, "Amhara")

	_, ok = catalog.LocalizeRegion("Kanagawa", model.LanguageEnglish)
	gt.False(t, ok)

	soil, ok := catalog.LocalizeSoilType("Loam", model.LanguageOromo)
	gt.True(t, ok)
	gt.Equal(t, soil, "Loamii")
}

func TestOverride(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"), []byte(`greeting: "Howdy from the farm"`), 0o644))

	catalog, err := i18n.Load(i18n.WithOverrideDir(dir))
	gt.NoError(t, err)

	en := catalog.For(model.LanguageEnglish)
	gt.Equal(t, en.Greeting(), "Howdy from the farm")
	// keys not overridden stay as embedded
	gt.Equal(t, en.ErrorPrefix, "Sorry, I encountered an error:")
}

func TestOverrideWithMissingKeyFails(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "am.yaml"), []byte(`error_prefix: ""`), 0o644))

	_, err := i18n.Load(i18n.WithOverrideDir(dir))
	gt.Error(t, err)
	gt.True(t, model.IsConfiguration(err))
}

func TestBlankLabelIsMissing(t *testing.T) {
	dir := t.TempDir()
	override := "labels:\n  locating: \"   \"\nupgrade:\n  title: \"\"\n"
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "om.yaml"), []byte(override), 0o644))

	_, err := i18n.Load(i18n.WithOverrideDir(dir))
	gt.True(t, model.IsConfiguration(err))

	var ge *goerr.Error
	gt.True(t, errors.As(err, &ge))
	missing, ok := ge.Values()["missing"].([]string)
	gt.True(t, ok)
	gt.True(t, slices.Contains(missing, "om.labels.locating"))
	gt.True(t, slices.Contains(missing, "om.upgrade.title"))
	gt.False(t, slices.Contains(missing, "en.labels.locating"))
}

func TestProgressLabelsTranslated(t *testing.T) {
	catalog := i18n.MustLoad()
	en := catalog.For(model.LanguageEnglish).Labels
	gt.Equal(t, en.Location, "Location")
	gt.Equal(t, en.Analyzing, "analyzing")

	for _, lang := range []model.Language{model.LanguageAmharic, model.LanguageOromo} {
		labels := catalog.For(lang).Labels
		gt.True(t, labels.Location != en.Location)
		gt.True(t, labels.Locating != en.Locating)
		gt.True(t, labels.Predicting != en.Predicting)
		gt.True(t, labels.WritingGuide != en.WritingGuide)
		gt.True(t, labels.Analyzing != en.Analyzing)
		gt.True(t, labels.PreparingDetails != en.PreparingDetails)
		gt.True(t, labels.WritingTreatmentPlan != en.WritingTreatmentPlan)
		gt.True(t, labels.Name != en.Name)
	}
}
