package model_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestCodeOf(t *testing.T) {
	gt.Equal(t, model.CodeOf(nil), model.CodeUnknown)
	gt.Equal(t, model.CodeOf(errors.New("plain")), model.CodeUnknown)

	err := model.Validation(model.CodeNoImage, "no image")
	gt.Equal(t, model.CodeOf(err), model.CodeNoImage)

	// the outermost code wins
	wrapped := model.Service(model.CodeAnalysisFailed, err, "analysis failed")
	gt.Equal(t, model.CodeOf(wrapped), model.CodeAnalysisFailed)

	// wrapping without a code keeps the inner one
	gt.Equal(t, model.CodeOf(goerr.Wrap(err, "context")), model.CodeNoImage)
}

func TestServicePassesConfigurationThrough(t *testing.T) {
	err := model.Service(model.CodePredictionFailed, model.ErrAPIKeyMissing, "prediction failed")
	gt.True(t, model.IsConfiguration(err))
	gt.False(t, model.IsService(err))
	gt.Equal(t, model.CodeOf(err), model.CodeAPIKeyMissing)
}

func TestKinds(t *testing.T) {
	gt.True(t, model.IsValidation(model.Validation(model.CodeEmptyMessage, "empty")))
	gt.True(t, model.IsDevice(model.Device(model.CodeCameraUnsupported, nil, "no camera")))

	cause := errors.New("permission denied")
	err := model.Device(model.CodeLocationPermissionDenied, cause, "location denied")
	gt.True(t, errors.Is(err, cause))
	gt.True(t, model.IsService(model.Service(model.CodeSpeechFailed, cause, "speech")))
}

func TestValidateParams(t *testing.T) {
	p := model.DefaultPredictionParams()
	gt.Equal(t, model.CodeOf(p.Validate()), model.CodeInvalidInput)

	p.SoilType = "Loam"
	p.Region = "Tigray"
	gt.NoError(t, p.Validate())

	p.Humidity = 101
	gt.True(t, model.IsValidation(p.Validate()))
}

func TestValidateParamsNamesField(t *testing.T) {
	p := model.DefaultPredictionParams()
	p.SoilType = "Loam"
	p.Region = "Tigray"
	p.PH = 14.5

	err := p.Validate()
	gt.Equal(t, model.CodeOf(err), model.CodeInvalidInput)
	var ge *goerr.Error
	gt.True(t, errors.As(err, &ge))
	gt.Equal(t, ge.Values()["name"], any("ph"))
	gt.Equal(t, ge.Values()["rule"], any("lte"))
	gt.Equal(t, ge.Values()["param"], any("14"))

	p.PH = 6.5
	p.Temperature = -10
	gt.NoError(t, p.Validate())
	p.Temperature = -10.5
	gt.Equal(t, model.CodeOf(p.Validate()), model.CodeInvalidInput)
}

func TestValidateUser(t *testing.T) {
	u := model.User{Name: "Abebe", Email: "abebe@example.com", Tier: model.TierFree}
	gt.NoError(t, u.Validate())

	u.Email = "not-an-address"
	gt.True(t, model.IsValidation(u.Validate()))

	u.Email = "abebe@example.com"
	u.Tier = "gold"
	gt.Equal(t, model.CodeOf(u.Validate()), model.CodeInvalidInput)

	u.Tier = model.TierPro
	u.Name = ""
	gt.True(t, model.IsValidation(u.Validate()))
}

func TestParseLanguage(t *testing.T) {
	gt.Equal(t, model.ParseLanguage("am"), model.LanguageAmharic)
	gt.Equal(t, model.ParseLanguage("fr"), model.LanguageEnglish)
	gt.Equal(t, model.ParseLanguage(""), model.DefaultLanguage)
}
