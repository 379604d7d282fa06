// Package testtools provides hand-written fakes of the service interfaces for usecase tests.
package testtools

import (
	"context"
	"sync"

	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
)

// Advisor is a fake interfaces.Advisor. Each method calls its func field if
// set and otherwise returns a fixed answer. Every call is counted by method name.
type Advisor struct {
	PredictFunc                   func(ctx context.Context, params model.PredictionParams, lang model.Language) (*model.PredictionResult, error)
	NewConversationFunc           func(ctx context.Context, lang model.Language) (interfaces.Conversation, error)
	AnalyzeLeafFunc               func(ctx context.Context, image []byte, mimeType, prompt string, lang model.Language) (*model.LeafAnalysis, error)
	AnalyzeSoilFunc               func(ctx context.Context, image []byte, mimeType string, lang model.Language) (string, error)
	ExtractShortLabelFunc         func(ctx context.Context, text string, lang model.Language) (string, error)
	GenerateIllustrativeImageFunc func(ctx context.Context, label, subject string) (*interfaces.Image, error)
	SynthesizeSpeechFunc          func(ctx context.Context, text string) ([]byte, error)
	ResolveLocationContextFunc    func(ctx context.Context, coord model.Coordinates) (*model.LocationContext, error)
	TreatmentPlanFunc             func(ctx context.Context, analysis string, lang model.Language) (string, error)
	FarmingGuideFunc              func(ctx context.Context, crop, region string, lang model.Language) (string, error)
	GrowthStagesFunc              func(ctx context.Context, subject string, lang model.Language) (string, error)
	TranscribeFunc                func(ctx context.Context, audio []byte, mimeType string, lang model.Language) (string, error)

	mutex sync.Mutex
	calls map[string]int
}

var _ interfaces.Advisor = &Advisor{}

func (x *Advisor) count(name string) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	if x.calls == nil {
		x.calls = make(map[string]int)
	}
	x.calls[name]++
}

// CallCount returns the number of calls of method name
func (x *Advisor) CallCount(name string) int {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.calls[name]
}

// TotalCalls returns the number of calls of every method
func (x *Advisor) TotalCalls() int {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	total := 0
	for _, n := range x.calls {
		total += n
	}
	return total
}

func (x *Advisor) Predict(ctx context.Context, params model.PredictionParams, lang model.Language) (*model.PredictionResult, error) {
	x.count("Predict")
	if x.PredictFunc != nil {
		return x.PredictFunc(ctx, params, lang)
	}
	return &model.PredictionResult{Crop: "Teff", Reason: "suits the climate", Confidence: 80}, nil
}

func (x *Advisor) NewConversation(ctx context.Context, lang model.Language) (interfaces.Conversation, error) {
	x.count("NewConversation")
	if x.NewConversationFunc != nil {
		return x.NewConversationFunc(ctx, lang)
	}
	return &Conversation{Chunks: []string{"ok"}}, nil
}

func (x *Advisor) AnalyzeLeaf(ctx context.Context, image []byte, mimeType, prompt string, lang model.Language) (*model.LeafAnalysis, error) {
	x.count("AnalyzeLeaf")
	if x.AnalyzeLeafFunc != nil {
		return x.AnalyzeLeafFunc(ctx, image, mimeType, prompt, lang)
	}
	return &model.LeafAnalysis{Analysis: "Early blight", Confidence: 70}, nil
}

func (x *Advisor) AnalyzeSoil(ctx context.Context, image []byte, mimeType string, lang model.Language) (string, error) {
	x.count("AnalyzeSoil")
	if x.AnalyzeSoilFunc != nil {
		return x.AnalyzeSoilFunc(ctx, image, mimeType, lang)
	}
	return "Loam", nil
}

func (x *Advisor) ExtractShortLabel(ctx context.Context, text string, lang model.Language) (string, error) {
	x.count("ExtractShortLabel")
	if x.ExtractShortLabelFunc != nil {
		return x.ExtractShortLabelFunc(ctx, text, lang)
	}
	return "Early blight", nil
}

func (x *Advisor) GenerateIllustrativeImage(ctx context.Context, label, subject string) (*interfaces.Image, error) {
	x.count("GenerateIllustrativeImage")
	if x.GenerateIllustrativeImageFunc != nil {
		return x.GenerateIllustrativeImageFunc(ctx, label, subject)
	}
	return &interfaces.Image{Data: []byte("png"), MIMEType: "image/png"}, nil
}

func (x *Advisor) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	x.count("SynthesizeSpeech")
	if x.SynthesizeSpeechFunc != nil {
		return x.SynthesizeSpeechFunc(ctx, text)
	}
	return make([]byte, 480), nil
}

func (x *Advisor) ResolveLocationContext(ctx context.Context, coord model.Coordinates) (*model.LocationContext, error) {
	x.count("ResolveLocationContext")
	if x.ResolveLocationContextFunc != nil {
		return x.ResolveLocationContextFunc(ctx, coord)
	}
	return &model.LocationContext{Region: "Oromia", Temperature: 21.6}, nil
}

func (x *Advisor) TreatmentPlan(ctx context.Context, analysis string, lang model.Language) (string, error) {
	x.count("TreatmentPlan")
	if x.TreatmentPlanFunc != nil {
		return x.TreatmentPlanFunc(ctx, analysis, lang)
	}
	return "Remove infected leaves", nil
}

func (x *Advisor) FarmingGuide(ctx context.Context, crop, region string, lang model.Language) (string, error) {
	x.count("FarmingGuide")
	if x.FarmingGuideFunc != nil {
		return x.FarmingGuideFunc(ctx, crop, region, lang)
	}
	return "Plant after the first rains", nil
}

func (x *Advisor) GrowthStages(ctx context.Context, subject string, lang model.Language) (string, error) {
	x.count("GrowthStages")
	if x.GrowthStagesFunc != nil {
		return x.GrowthStagesFunc(ctx, subject, lang)
	}
	return "Seedling, vegetative, flowering", nil
}

func (x *Advisor) Transcribe(ctx context.Context, audio []byte, mimeType string, lang model.Language) (string, error) {
	x.count("Transcribe")
	if x.TranscribeFunc != nil {
		return x.TranscribeFunc(ctx, audio, mimeType, lang)
	}
	return "hello", nil
}

// Conversation is a fake interfaces.Conversation
type Conversation struct {
	Chunks     []string
	Err        error
	StreamFunc func(ctx context.Context, message string, onChunk func(string)) error

	mutex    sync.Mutex
	messages []string
}

func (x *Conversation) Stream(ctx context.Context, message string, onChunk func(text string)) error {
	x.mutex.Lock()
	x.messages = append(x.messages, message)
	x.mutex.Unlock()

	if x.StreamFunc != nil {
		return x.StreamFunc(ctx, message, onChunk)
	}
	if x.Err != nil {
		return x.Err
	}
	for _, chunk := range x.Chunks {
		onChunk(chunk)
	}
	return nil
}

// Messages returns every message sent to the conversation
func (x *Conversation) Messages() []string {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return append([]string(nil), x.messages...)
}
