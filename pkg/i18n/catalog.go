package i18n

import (
	"embed"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// Upgrade is the text of the upgrade prompt shown instead of a gated action
type Upgrade struct {
	Title string `yaml:"title" validate:"notblank"`
	Body  string `yaml:"body" validate:"notblank"`
}

// Labels are headings and short messages printed around results
type Labels struct {
	RecommendedCrop           string `yaml:"recommended_crop" validate:"notblank"`
	Confidence                string `yaml:"confidence" validate:"notblank"`
	ExpectedYield             string `yaml:"expected_yield" validate:"notblank"`
	Justification             string `yaml:"justification" validate:"notblank"`
	FarmingGuide              string `yaml:"farming_guide" validate:"notblank"`
	AnalysisResult            string `yaml:"analysis_result" validate:"notblank"`
	TreatmentPlan             string `yaml:"treatment_plan" validate:"notblank"`
	VisualReference           string `yaml:"visual_reference" validate:"notblank"`
	VisualReferenceDisclaimer string `yaml:"visual_reference_disclaimer" validate:"notblank"`
	GrowthStages              string `yaml:"growth_stages" validate:"notblank"`
	SoilAnalysisResult        string `yaml:"soil_analysis_result" validate:"notblank"`
	PredictionHistory         string `yaml:"prediction_history" validate:"notblank"`
	ScanHistory               string `yaml:"scan_history" validate:"notblank"`
	NoPredictionHistory       string `yaml:"no_prediction_history" validate:"notblank"`
	NoScanHistory             string `yaml:"no_scan_history" validate:"notblank"`
	CurrentPlan               string `yaml:"current_plan" validate:"notblank"`
	FreeTier                  string `yaml:"free_tier" validate:"notblank"`
	ProTier                   string `yaml:"pro_tier" validate:"notblank"`
	UpgradeSuccess            string `yaml:"upgrade_success" validate:"notblank"`
	ProfileUpdated            string `yaml:"profile_updated" validate:"notblank"`
	Location                  string `yaml:"location" validate:"notblank"`
	Locating                  string `yaml:"locating" validate:"notblank"`
	Predicting                string `yaml:"predicting" validate:"notblank"`
	WritingGuide              string `yaml:"writing_guide" validate:"notblank"`
	Analyzing                 string `yaml:"analyzing" validate:"notblank"`
	PreparingDetails          string `yaml:"preparing_details" validate:"notblank"`
	WritingTreatmentPlan      string `yaml:"writing_treatment_plan" validate:"notblank"`
	Name                      string `yaml:"name" validate:"notblank"`
	Email                     string `yaml:"email" validate:"notblank"`
	Phone                     string `yaml:"phone" validate:"notblank"`
	Role                      string `yaml:"role" validate:"notblank"`
}

// Locale holds every user-facing string of one language
type Locale struct {
	Language model.Language `yaml:"-"`

	GreetingText   string                     `yaml:"greeting" validate:"notblank"`
	ErrorPrefix    string                     `yaml:"error_prefix" validate:"notblank"`
	AskBotTemplate string                     `yaml:"ask_bot_prompt" validate:"notblank"`
	Upgrade        Upgrade                    `yaml:"upgrade"`
	Regions        []string                   `yaml:"regions" validate:"min=1,dive,notblank"`
	SoilTypes      []string                   `yaml:"soil_types" validate:"min=1,dive,notblank"`
	Labels         Labels                     `yaml:"labels"`
	Errors         map[model.ErrorCode]string `yaml:"errors"`
}

// Greeting returns the greeting turn of a new conversation
func (x *Locale) Greeting() string {
	return x.GreetingText
}

// ErrorMessage translates err into a human-readable message. Errors without a
// known code are reported as UNKNOWN_ERROR.
func (x *Locale) ErrorMessage(err error) string {
	if msg, ok := x.Errors[model.CodeOf(err)]; ok {
		return msg
	}
	return x.Errors[model.CodeUnknown]
}

// TurnError formats an error turn of a conversation
func (x *Locale) TurnError(err error) string {
	return x.ErrorPrefix + " " + x.ErrorMessage(err)
}

// AskBotPrompt builds the question handed to the chat from a prediction
func (x *Locale) AskBotPrompt(crop, region string) string {
	return strings.NewReplacer("{crop}", crop, "{region}", region).Replace(x.AskBotTemplate)
}

// Catalog is a validated set of locales for every supported language
type Catalog struct {
	locales map[model.Language]*Locale
}

// Option is a functional option for Load
type Option func(*loadConfig)

type loadConfig struct {
	overrideDir string
}

// WithOverrideDir reads <dir>/<lang>.yaml on top of the embedded catalogs.
// Missing override files are ignored.
func WithOverrideDir(dir string) Option {
	return func(c *loadConfig) {
		c.overrideDir = dir
	}
}

// Load reads and validates the catalogs of every language
func Load(opts ...Option) (*Catalog, error) {
	cfg := &loadConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	catalog := &Catalog{locales: make(map[model.Language]*Locale)}
	for _, lang := range model.Languages {
		fname := string(lang) + ".yaml"
		data, err := embeddedLocales.ReadFile("locales/" + fname)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read embedded locale",
				goerr.V("language", lang), goerr.T(model.TagConfiguration))
		}

		loc := &Locale{Language: lang}
		if err := yaml.Unmarshal(data, loc); err != nil {
			return nil, goerr.Wrap(err, "failed to parse embedded locale",
				goerr.V("language", lang), goerr.T(model.TagConfiguration))
		}

		if cfg.overrideDir != "" {
			path := filepath.Join(cfg.overrideDir, fname)
			data, err := os.ReadFile(path)
			switch {
			case errors.Is(err, os.ErrNotExist):
			case err != nil:
				return nil, goerr.Wrap(err, "failed to read locale override",
					goerr.V("path", path), goerr.T(model.TagConfiguration))
			default:
				if err := yaml.Unmarshal(data, loc); err != nil {
					return nil, goerr.Wrap(err, "failed to parse locale override",
						goerr.V("path", path), goerr.T(model.TagConfiguration))
				}
			}
		}

		catalog.locales[lang] = loc
	}

	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// MustLoad loads embedded catalogs and panics on failure. It is intended for tests.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// For returns the locale of lang, falling back to the default language
func (x *Catalog) For(lang model.Language) *Locale {
	if loc, ok := x.locales[lang]; ok {
		return loc
	}
	return x.locales[model.DefaultLanguage]
}

// Validate fails on any missing key of any language
func (x *Catalog) Validate() error {
	base, ok := x.locales[model.DefaultLanguage]
	if !ok {
		return goerr.New("default locale is missing", goerr.T(model.TagConfiguration))
	}

	var missing []string
	for _, lang := range model.Languages {
		loc, ok := x.locales[lang]
		if !ok {
			missing = append(missing, string(lang))
			continue
		}
		prefix := string(lang) + "."

		missing = append(missing, missingFields(prefix, loc)...)

		for _, code := range model.AllErrorCodes {
			if strings.TrimSpace(loc.Errors[code]) == "" {
				missing = append(missing, prefix+"errors."+string(code))
			}
		}

		if len(loc.Regions) != len(base.Regions) {
			missing = append(missing, prefix+"regions")
		}
		if len(loc.SoilTypes) != len(base.SoilTypes) {
			missing = append(missing, prefix+"soil_types")
		}
	}

	if len(missing) > 0 {
		return goerr.New("locale catalog is incomplete",
			goerr.V("missing", missing), goerr.T(model.TagConfiguration))
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// missingFields returns the yaml keys of loc failing their validate tags,
// such as "am.labels.confidence"
func missingFields(prefix string, loc *Locale) []string {
	err := validate.Struct(loc)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{strings.TrimSuffix(prefix, ".")}
	}

	missing := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		// Namespace is "Locale.labels.confidence"
		_, key, _ := strings.Cut(fe.Namespace(), ".")
		missing = append(missing, prefix+key)
	}
	return missing
}

// LocalizeRegion maps a region name given in any language to its name in lang.
// The second return value is false if the region is not known.
func (x *Catalog) LocalizeRegion(name string, lang model.Language) (string, bool) {
	return x.localize(name, lang, func(l *Locale) []string { return l.Regions })
}

// LocalizeSoilType maps a soil type given in any language to its name in lang
func (x *Catalog) LocalizeSoilType(name string, lang model.Language) (string, bool) {
	return x.localize(name, lang, func(l *Locale) []string { return l.SoilTypes })
}

func (x *Catalog) localize(name string, lang model.Language, list func(*Locale) []string) (string, bool) {
	name = strings.TrimSpace(name)
	target := list(x.For(lang))
	for _, l := range model.Languages {
		for i, candidate := range list(x.For(l)) {
			if strings.EqualFold(candidate, name) && i < len(target) {
				return target[i], true
			}
		}
	}
	return "", false
}
