package scan

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/m-mizutani/agriai/pkg/adapter"
	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/chain"
	"github.com/m-mizutani/agriai/pkg/usecase/history"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Branch names of the follow-up calls started after a leaf analysis
const (
	BranchIllustration = "illustration"
	BranchGrowthStages = "growth_stages"
)

// Scanner analyzes leaf photographs and derives follow-up artifacts for each analysis
type Scanner struct {
	advisor interfaces.Advisor
	gate    interfaces.FeatureGate
	log     *history.ScanLog
	storage interfaces.ArtifactStorage

	tracker chain.Tracker
	mutex   sync.Mutex
	run     *chain.Run
}

// New creates a scanner. Images and illustrations are saved to storage.
func New(advisor interfaces.Advisor, gate interfaces.FeatureGate, log *history.ScanLog, storage interfaces.ArtifactStorage) *Scanner {
	return &Scanner{
		advisor: advisor,
		gate:    gate,
		log:     log,
		storage: storage,
	}
}

// History returns the scan history log
func (x *Scanner) History() *history.ScanLog {
	return x.log
}

func validateImage(image []byte, mimeType string) error {
	if len(image) == 0 {
		return model.Validation(model.CodeNoImage, "no image")
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return model.Validation(model.CodeInvalidFileType, "not an image", goerr.V("mime_type", mimeType))
	}
	return nil
}

func leafPrompt(input model.ScanInput) string {
	var prompt []string
	if input.PlantName != "" {
		prompt = append(prompt, "The leaf is from a "+input.PlantName+" plant.")
	}
	if input.Prompt != "" {
		prompt = append(prompt, input.Prompt)
	}
	return strings.Join(prompt, "\n")
}

// Analyze runs a leaf analysis, records it in the history and starts the
// follow-up branches. A newer Analyze or Reset supersedes this one; a
// superseded analysis returns chain.ErrStale and is not recorded.
func (x *Scanner) Analyze(ctx context.Context, tier model.Tier, lang model.Language, input model.ScanInput, image []byte) (model.ScanEntry, error) {
	if err := validateImage(image, input.MIMEType); err != nil {
		return model.ScanEntry{}, err
	}

	token := x.tracker.Begin()
	analysis, err := x.advisor.AnalyzeLeaf(ctx, image, input.MIMEType, leafPrompt(input), lang)
	if !x.tracker.IsCurrent(token) {
		return model.ScanEntry{}, chain.ErrStale
	}
	if err != nil {
		return model.ScanEntry{}, err
	}

	input.ImageRef = x.save(ctx, "scans", input.MIMEType, image)
	entry := x.log.Append(ctx, input, *analysis)

	run := chain.NewRun(ctx, &x.tracker, token)
	x.mutex.Lock()
	if run.IsCurrent() {
		x.run = run
	}
	x.mutex.Unlock()

	switch {
	case input.PlantName == "":
		run.Skip(BranchIllustration)
	case !x.gate.IsAllowed(tier, model.CapabilityIllustrativeImage):
		logging.From(ctx).Debug("illustration is not available for tier", "tier", tier)
		run.Skip(BranchIllustration)
	default:
		run.Go(BranchIllustration, func(ctx context.Context) error {
			return x.illustrate(ctx, run, entry.ID, analysis.Analysis, input.PlantName, lang)
		})
	}

	if input.PlantName == "" {
		run.Skip(BranchGrowthStages)
	} else {
		run.Go(BranchGrowthStages, func(ctx context.Context) error {
			stages, err := x.advisor.GrowthStages(ctx, input.PlantName, lang)
			if err != nil {
				return err
			}
			return x.attach(ctx, run, entry.ID, func(a *model.Artifacts) {
				a.GrowthStages = stages
			})
		})
	}

	return entry, nil
}

func (x *Scanner) illustrate(ctx context.Context, run *chain.Run, id model.EntryID, analysis, plant string, lang model.Language) error {
	label, err := x.advisor.ExtractShortLabel(ctx, analysis, lang)
	if err != nil {
		return err
	}
	if label == "" {
		logging.From(ctx).Info("no disease found in analysis, skip illustration", "id", id)
		return chain.ErrSkip
	}
	if err := x.attach(ctx, run, id, func(a *model.Artifacts) { a.DiseaseName = label }); err != nil {
		return err
	}

	image, err := x.advisor.GenerateIllustrativeImage(ctx, label, plant)
	if err != nil {
		return err
	}
	if !run.IsCurrent() {
		return chain.ErrStale
	}

	ref := x.save(ctx, "illustrations", image.MIMEType, image.Data)
	if ref == "" {
		return goerr.New("failed to save illustration", goerr.V("id", id))
	}
	return x.attach(ctx, run, id, func(a *model.Artifacts) { a.IllustrationRef = ref })
}

// attach applies update only if run is still current and the entry still exists
func (x *Scanner) attach(ctx context.Context, run *chain.Run, id model.EntryID, update func(*model.Artifacts)) error {
	if !run.IsCurrent() {
		return chain.ErrStale
	}
	if !x.log.Attach(ctx, id, update) {
		return chain.ErrStale
	}
	return nil
}

// save stores data and returns its reference. A failure is logged and yields "".
func (x *Scanner) save(ctx context.Context, dir, mimeType string, data []byte) string {
	ext := ".bin"
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		ext = m.Extension()
	}
	key := dir + "/" + uuid.NewString() + ext

	ref, err := adapter.SaveArtifact(ctx, x.storage, key, data)
	if err != nil {
		logging.From(ctx).Warn("failed to save artifact", "key", key, logging.ErrAttr(err))
		return ""
	}
	return ref
}

// TreatmentPlan creates a treatment plan for a recorded analysis and attaches it.
// It can be requested for any entry still in the history.
func (x *Scanner) TreatmentPlan(ctx context.Context, tier model.Tier, lang model.Language, id model.EntryID) (string, error) {
	if err := x.gate.Check(tier, model.CapabilityTreatmentPlan); err != nil {
		return "", err
	}

	entry, ok := x.log.Get(id)
	if !ok {
		return "", model.Validation(model.CodeEntryNotFound, "scan entry not found", goerr.V("id", id))
	}

	plan, err := x.advisor.TreatmentPlan(ctx, entry.Result.Analysis, lang)
	if err != nil {
		return "", err
	}

	x.log.Attach(ctx, id, func(a *model.Artifacts) { a.TreatmentPlan = plan })
	return plan, nil
}

// AnalyzeSoil classifies a soil photograph. The result is not recorded.
func (x *Scanner) AnalyzeSoil(ctx context.Context, lang model.Language, image []byte, mimeType string) (string, error) {
	if err := validateImage(image, mimeType); err != nil {
		return "", err
	}
	return x.advisor.AnalyzeSoil(ctx, image, mimeType, lang)
}

// Reset supersedes the current analysis. Results that arrive later are discarded.
func (x *Scanner) Reset() {
	x.tracker.Invalidate()
	x.mutex.Lock()
	x.run = nil
	x.mutex.Unlock()
}

// Current returns the branches of the latest analysis, or nil
func (x *Scanner) Current() *chain.Run {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.run
}

// Wait blocks until the branches of the latest analysis have settled
func (x *Scanner) Wait() {
	if run := x.Current(); run != nil {
		run.Wait()
	}
}

// Watch analyzes every new frame from camera until ctx is canceled. Each frame
// supersedes the analysis of the previous one. onResult receives every outcome
// except superseded ones.
func (x *Scanner) Watch(ctx context.Context, camera interfaces.Camera, tier model.Tier, lang model.Language, input model.ScanInput, onResult func(model.ScanEntry, error)) error {
	return camera.Watch(ctx, func(frame model.Frame) {
		in := input
		in.MIMEType = frame.MIMEType
		entry, err := x.Analyze(ctx, tier, lang, in, frame.Data)
		if errors.Is(err, chain.ErrStale) {
			logging.From(ctx).Debug("frame superseded", "source", frame.Source)
			return
		}
		onResult(entry, err)
	})
}
