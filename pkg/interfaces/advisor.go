package interfaces

import (
	"context"

	"github.com/m-mizutani/agriai/pkg/model"
)

// Advisor is the capability set of the external generative-AI service.
// Every method may fail; failures are classified errors (see model.ErrorCode).
type Advisor interface {
	// Predict recommends a crop for the given farm data
	Predict(ctx context.Context, params model.PredictionParams, lang model.Language) (*model.PredictionResult, error)

	// NewConversation opens a new multi-turn conversational context bound to lang
	NewConversation(ctx context.Context, lang model.Language) (Conversation, error)

	// AnalyzeLeaf analyzes a leaf photograph
	AnalyzeLeaf(ctx context.Context, image []byte, mimeType, prompt string, lang model.Language) (*model.LeafAnalysis, error)

	// AnalyzeSoil classifies a soil photograph and returns markdown text
	AnalyzeSoil(ctx context.Context, image []byte, mimeType string, lang model.Language) (string, error)

	// ExtractShortLabel extracts a short label (e.g. a disease name) from text. It may return "".
	ExtractShortLabel(ctx context.Context, text string, lang model.Language) (string, error)

	// GenerateIllustrativeImage generates a reference image of subject showing label
	GenerateIllustrativeImage(ctx context.Context, label, subject string) (*Image, error)

	// SynthesizeSpeech converts text to raw 16-bit PCM audio
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)

	// ResolveLocationContext resolves region and approximate temperature for coordinates
	ResolveLocationContext(ctx context.Context, coord model.Coordinates) (*model.LocationContext, error)

	// TreatmentPlan creates a treatment plan from a leaf analysis
	TreatmentPlan(ctx context.Context, analysis string, lang model.Language) (string, error)

	// FarmingGuide creates a practical guide for growing crop in region
	FarmingGuide(ctx context.Context, crop, region string, lang model.Language) (string, error)

	// GrowthStages describes the growth stages of a plant
	GrowthStages(ctx context.Context, subject string, lang model.Language) (string, error)

	// Transcribe converts recorded speech into text
	Transcribe(ctx context.Context, audio []byte, mimeType string, lang model.Language) (string, error)
}

// Conversation is an opaque handle to a remote multi-turn context
type Conversation interface {
	// Stream sends message and calls onChunk for every text fragment in arrival order.
	// It returns after the response is complete.
	Stream(ctx context.Context, message string, onChunk func(text string)) error
}

// Image is a generated image
type Image struct {
	Data     []byte
	MIMEType string
}
