package advisor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/m-mizutani/agriai/pkg/adapter"
	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Models are the model names used for each kind of call
type Models struct {
	Fast   string // prediction, guides, location and label extraction
	Chat   string
	Vision string // leaf, soil and treatment analysis
	Speech string
	Image  string
}

// DefaultModels returns the models used when none are configured
func DefaultModels() Models {
	return Models{
		Fast:   "gemini-2.5-flash",
		Chat:   "gemini-2.5-flash-lite",
		Vision: "gemini-2.5-pro",
		Speech: "gemini-2.5-flash-preview-tts",
		Image:  "imagen-4.0-generate-001",
	}
}

const (
	defaultTimeout = 60 * time.Second
	defaultVoice   = "Kore"
)

var defaultRegions = []string{"Oromia", "Amhara", "SNNPR", "Tigray", "Somali", "Afar"}

// Advisor implements interfaces.Advisor on the Gemini API
type Advisor struct {
	gemini  adapter.Gemini
	models  Models
	timeout time.Duration
	voice   string
	regions []string
}

var _ interfaces.Advisor = (*Advisor)(nil)

// Option is a functional option for Advisor
type Option func(*Advisor)

// WithModels overrides the model names
func WithModels(models Models) Option {
	return func(a *Advisor) {
		a.models = models
	}
}

// WithTimeout bounds every external call
func WithTimeout(d time.Duration) Option {
	return func(a *Advisor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithVoice sets the prebuilt voice of speech synthesis
func WithVoice(name string) Option {
	return func(a *Advisor) {
		a.voice = name
	}
}

// WithRegions sets the region names location resolution may answer with
func WithRegions(regions []string) Option {
	return func(a *Advisor) {
		if len(regions) > 0 {
			a.regions = regions
		}
	}
}

// New creates an Advisor
func New(gemini adapter.Gemini, opts ...Option) *Advisor {
	a := &Advisor{
		gemini:  gemini,
		models:  DefaultModels(),
		timeout: defaultTimeout,
		voice:   defaultVoice,
		regions: defaultRegions,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func noThinking() *genai.ThinkingConfig {
	thinkingBudget := int32(0)
	return &genai.ThinkingConfig{
		IncludeThoughts: false,
		ThinkingBudget:  &thinkingBudget,
	}
}

// responseText concatenates text parts of the first candidate, skipping thoughts
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// generateText sends parts as one user message and returns the text reply
func (a *Advisor) generateText(ctx context.Context, modelName string, parts []*genai.Part, config *genai.GenerateContentConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := a.gemini.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content", goerr.V("model", modelName))
	}

	text := responseText(resp)
	logging.From(ctx).Debug("generated content", "model", modelName, "length", len(text))
	return text, nil
}

// generateJSON requests a structured reply and decodes it into T
func generateJSON[T any](ctx context.Context, a *Advisor, modelName string, parts []*genai.Part) (*T, error) {
	schema, err := schemaFor[T]()
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		ThinkingConfig:   noThinking(),
	}

	text, err := a.generateText(ctx, modelName, parts, config)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, goerr.New("empty structured reply", goerr.V("model", modelName))
	}

	var result T
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode structured reply",
			goerr.V("model", modelName), goerr.V("text", text))
	}
	return &result, nil
}

func textPart(name string, data any) ([]*genai.Part, error) {
	prompt, err := renderPrompt(name, data)
	if err != nil {
		return nil, err
	}
	return []*genai.Part{genai.NewPartFromText(prompt)}, nil
}

func (a *Advisor) Predict(ctx context.Context, params model.PredictionParams, lang model.Language) (*model.PredictionResult, error) {
	parts, err := textPart("predict", map[string]any{
		"Params":   params,
		"Language": lang.Name(),
	})
	if err != nil {
		return nil, err
	}

	result, err := generateJSON[model.PredictionResult](ctx, a, a.models.Fast, parts)
	if err != nil {
		return nil, model.Service(model.CodePredictionFailed, err, "crop prediction failed")
	}
	return result, nil
}

func (a *Advisor) AnalyzeLeaf(ctx context.Context, image []byte, mimeType, prompt string, lang model.Language) (*model.LeafAnalysis, error) {
	parts, err := textPart("leaf", map[string]any{
		"Prompt":   prompt,
		"Language": lang.Name(),
	})
	if err != nil {
		return nil, err
	}
	parts = append([]*genai.Part{genai.NewPartFromBytes(image, mimeType)}, parts...)

	result, err := generateJSON[model.LeafAnalysis](ctx, a, a.models.Vision, parts)
	if err != nil {
		return nil, model.Service(model.CodeAnalysisFailed, err, "leaf analysis failed")
	}
	return result, nil
}

func (a *Advisor) AnalyzeSoil(ctx context.Context, image []byte, mimeType string, lang model.Language) (string, error) {
	parts, err := textPart("soil", map[string]any{"Language": lang.Name()})
	if err != nil {
		return "", err
	}
	parts = append([]*genai.Part{genai.NewPartFromBytes(image, mimeType)}, parts...)

	text, err := a.generateText(ctx, a.models.Vision, parts, nil)
	if err != nil {
		return "", model.Service(model.CodeSoilAnalysisFailed, err, "soil analysis failed")
	}
	return text, nil
}

func (a *Advisor) ExtractShortLabel(ctx context.Context, text string, lang model.Language) (string, error) {
	parts, err := textPart("extract", map[string]any{
		"Text":     text,
		"Language": lang.Name(),
	})
	if err != nil {
		return "", err
	}

	reply, err := a.generateText(ctx, a.models.Fast, parts, &genai.GenerateContentConfig{ThinkingConfig: noThinking()})
	if err != nil {
		return "", model.Service(model.CodeDiseaseExtractionFailed, err, "label extraction failed")
	}
	return cleanLabel(reply), nil
}

func cleanLabel(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(s), "*", ""))
}

func (a *Advisor) GenerateIllustrativeImage(ctx context.Context, label, subject string) (*interfaces.Image, error) {
	prompt, err := renderPrompt("image", map[string]any{
		"Label":   label,
		"Subject": subject,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	const mimeType = "image/jpeg"
	resp, err := a.gemini.GenerateImages(ctx, a.models.Image, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: mimeType,
		AspectRatio:    "1:1",
	})
	if err != nil {
		return nil, model.Service(model.CodeImageGenerationFailed, err, "image generation failed")
	}
	if resp == nil || len(resp.GeneratedImages) == 0 ||
		resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, model.Service(model.CodeImageGenerationFailed,
			goerr.New("no image data", goerr.V("label", label)), "image generation failed")
	}

	img := resp.GeneratedImages[0].Image
	out := &interfaces.Image{Data: img.ImageBytes, MIMEType: img.MIMEType}
	if out.MIMEType == "" {
		out.MIMEType = mimeType
	}
	return out, nil
}

func (a *Advisor) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.Validation(model.CodeSpeechFailed, "nothing to synthesize")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: a.voice},
			},
		},
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := a.gemini.GenerateContent(ctx, a.models.Speech, contents, config)
	if err != nil {
		return nil, model.Service(model.CodeSpeechFailed, err, "speech synthesis failed")
	}

	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, model.Service(model.CodeSpeechFailed, goerr.New("no audio data"), "speech synthesis failed")
}

func (a *Advisor) ResolveLocationContext(ctx context.Context, coord model.Coordinates) (*model.LocationContext, error) {
	parts, err := textPart("location", map[string]any{
		"Latitude":  coord.Latitude,
		"Longitude": coord.Longitude,
		"Regions":   a.regions,
	})
	if err != nil {
		return nil, err
	}

	result, err := generateJSON[model.LocationContext](ctx, a, a.models.Fast, parts)
	if err != nil {
		return nil, model.Service(model.CodeLocationFetchFailed, err, "location resolution failed",
			goerr.V("coordinates", coord))
	}
	return result, nil
}

func (a *Advisor) TreatmentPlan(ctx context.Context, analysis string, lang model.Language) (string, error) {
	parts, err := textPart("treatment", map[string]any{
		"Analysis": analysis,
		"Language": lang.Name(),
	})
	if err != nil {
		return "", err
	}

	text, err := a.generateText(ctx, a.models.Vision, parts, nil)
	if err != nil {
		return "", model.Service(model.CodeTreatmentPlanFailed, err, "treatment plan failed")
	}
	return text, nil
}

func (a *Advisor) FarmingGuide(ctx context.Context, crop, region string, lang model.Language) (string, error) {
	parts, err := textPart("guide", map[string]any{
		"Crop":     crop,
		"Region":   region,
		"Language": lang.Name(),
	})
	if err != nil {
		return "", err
	}

	text, err := a.generateText(ctx, a.models.Fast, parts, nil)
	if err != nil {
		return "", model.Service(model.CodeGuideFailed, err, "farming guide failed")
	}
	return text, nil
}

func (a *Advisor) GrowthStages(ctx context.Context, subject string, lang model.Language) (string, error) {
	parts, err := textPart("growth", map[string]any{
		"Subject":  subject,
		"Language": lang.Name(),
	})
	if err != nil {
		return "", err
	}

	text, err := a.generateText(ctx, a.models.Fast, parts, nil)
	if err != nil {
		return "", model.Service(model.CodeGrowthStagesFailed, err, "growth stages failed")
	}
	return text, nil
}

func (a *Advisor) Transcribe(ctx context.Context, audio []byte, mimeType string, lang model.Language) (string, error) {
	parts, err := textPart("transcribe", map[string]any{"Language": lang.Name()})
	if err != nil {
		return "", err
	}
	parts = append([]*genai.Part{genai.NewPartFromBytes(audio, mimeType)}, parts...)

	text, err := a.generateText(ctx, a.models.Fast, parts, &genai.GenerateContentConfig{ThinkingConfig: noThinking()})
	if err != nil {
		return "", model.Service(model.CodeTranscriptionFailed, err, "transcription failed",
			goerr.V("locale", lang.SpeechLocale()))
	}
	return strings.TrimSpace(text), nil
}
