package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// Error kinds. Every failure surfaced to the user carries exactly one of these tags.
var (
	TagConfiguration   = goerr.NewTag("configuration")
	TagService         = goerr.NewTag("service")
	TagValidation      = goerr.NewTag("validation")
	TagDevice          = goerr.NewTag("device")
	TagDecode          = goerr.NewTag("decode")
	TagUpgradeRequired = goerr.NewTag("upgrade_required")
)

// ErrorCode is the user-facing error key. It is translated by the i18n catalog.
type ErrorCode string

const (
	CodeAPIKeyMissing            ErrorCode = "API_KEY_MISSING"
	CodePredictionFailed         ErrorCode = "PREDICTION_FAILED"
	CodeAgriBotFailed            ErrorCode = "AGRIBOT_FAILED"
	CodeAnalysisFailed           ErrorCode = "ANALYSIS_FAILED"
	CodeSoilAnalysisFailed       ErrorCode = "SOIL_ANALYSIS_FAILED"
	CodeTreatmentPlanFailed      ErrorCode = "TREATMENT_PLAN_FAILED"
	CodeSpeechFailed             ErrorCode = "SPEECH_FAILED"
	CodeGuideFailed              ErrorCode = "GUIDE_FAILED"
	CodeGrowthStagesFailed       ErrorCode = "GROWTH_STAGES_FAILED"
	CodeDiseaseExtractionFailed  ErrorCode = "DISEASE_EXTRACTION_FAILED"
	CodeImageGenerationFailed    ErrorCode = "IMAGE_GENERATION_FAILED"
	CodeTranscriptionFailed      ErrorCode = "TRANSCRIPTION_FAILED"
	CodeInvalidFileType          ErrorCode = "INVALID_FILE_TYPE"
	CodeCameraError              ErrorCode = "CAMERA_ERROR"
	CodeCameraUnsupported        ErrorCode = "CAMERA_UNSUPPORTED"
	CodeNoImage                  ErrorCode = "NO_IMAGE"
	CodeEmptyMessage             ErrorCode = "EMPTY_MESSAGE"
	CodeLocationPermissionDenied ErrorCode = "LOCATION_PERMISSION_DENIED"
	CodeLocationFetchFailed      ErrorCode = "LOCATION_FETCH_FAILED"
	CodeGeolocationUnsupported   ErrorCode = "GEOLOCATION_UNSUPPORTED"
	CodeMicrophoneUnsupported    ErrorCode = "MICROPHONE_UNSUPPORTED"
	CodeUpgradeRequired          ErrorCode = "UPGRADE_REQUIRED"
	CodeInvalidCredentials       ErrorCode = "INVALID_CREDENTIALS"
	CodeUserExists               ErrorCode = "USER_EXISTS"
	CodeUserNotFound             ErrorCode = "USER_NOT_FOUND"
	CodeInvalidTransaction       ErrorCode = "INVALID_TRANSACTION"
	CodeInvalidInput             ErrorCode = "INVALID_INPUT"
	CodeEntryNotFound            ErrorCode = "ENTRY_NOT_FOUND"
	CodeUnknown                  ErrorCode = "UNKNOWN_ERROR"
)

// AllErrorCodes lists every code the catalog must translate.
var AllErrorCodes = []ErrorCode{
	CodeAPIKeyMissing,
	CodePredictionFailed,
	CodeAgriBotFailed,
	CodeAnalysisFailed,
	CodeSoilAnalysisFailed,
	CodeTreatmentPlanFailed,
	CodeSpeechFailed,
	CodeGuideFailed,
	CodeGrowthStagesFailed,
	CodeDiseaseExtractionFailed,
	CodeImageGenerationFailed,
	CodeTranscriptionFailed,
	CodeInvalidFileType,
	CodeCameraError,
	CodeCameraUnsupported,
	CodeNoImage,
	CodeEmptyMessage,
	CodeLocationPermissionDenied,
	CodeLocationFetchFailed,
	CodeGeolocationUnsupported,
	CodeMicrophoneUnsupported,
	CodeUpgradeRequired,
	CodeInvalidCredentials,
	CodeUserExists,
	CodeUserNotFound,
	CodeInvalidTransaction,
	CodeInvalidInput,
	CodeEntryNotFound,
	CodeUnknown,
}

const codeKey = "code"

// WithCode attaches a user-facing error code to a goerr error
func WithCode(code ErrorCode) goerr.Option {
	return goerr.V(codeKey, code)
}

// CodeOf returns the outermost error code found in the error chain, or CodeUnknown.
func CodeOf(err error) ErrorCode {
	var ge *goerr.Error
	for e := err; e != nil && errors.As(e, &ge); e = ge.Unwrap() {
		if code, ok := ge.Values()[codeKey].(ErrorCode); ok {
			return code
		}
	}
	return CodeUnknown
}

// Kind helpers

func IsConfiguration(err error) bool   { return goerr.HasTag(err, TagConfiguration) }
func IsService(err error) bool         { return goerr.HasTag(err, TagService) }
func IsValidation(err error) bool      { return goerr.HasTag(err, TagValidation) }
func IsDevice(err error) bool          { return goerr.HasTag(err, TagDevice) }
func IsDecode(err error) bool          { return goerr.HasTag(err, TagDecode) }
func IsUpgradeRequired(err error) bool { return goerr.HasTag(err, TagUpgradeRequired) }

// ErrAPIKeyMissing is returned when no credential for the AI service is configured.
var ErrAPIKeyMissing = goerr.New("AI service credential is not configured",
	goerr.T(TagConfiguration), WithCode(CodeAPIKeyMissing))

// Validation builds a validation error with the given code
func Validation(code ErrorCode, msg string, opts ...goerr.Option) error {
	opts = append(opts, goerr.T(TagValidation), WithCode(code))
	return goerr.New(msg, opts...)
}

// Device builds a device capability error with the given code
func Device(code ErrorCode, cause error, msg string, opts ...goerr.Option) error {
	opts = append(opts, goerr.T(TagDevice), WithCode(code))
	if cause == nil {
		return goerr.New(msg, opts...)
	}
	return goerr.Wrap(cause, msg, opts...)
}

// Service wraps a failed external call. A configuration error passes through untouched.
func Service(code ErrorCode, cause error, msg string, opts ...goerr.Option) error {
	if IsConfiguration(cause) {
		return cause
	}
	opts = append(opts, goerr.T(TagService), WithCode(code))
	return goerr.Wrap(cause, msg, opts...)
}
