package scan_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/agriai/pkg/adapter"
	"github.com/m-mizutani/agriai/pkg/gate"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/chain"
	"github.com/m-mizutani/agriai/pkg/usecase/history"
	"github.com/m-mizutani/agriai/pkg/usecase/scan"
	"github.com/m-mizutani/agriai/pkg/usecase/testtools"
	"github.com/m-mizutani/gt"
)

var leafImage = []byte("\x89PNG\r\n\x1a\nleaf")

func newScanner(t *testing.T, advisor *testtools.Advisor) *scan.Scanner {
	t.Helper()
	g, err := gate.New(context.Background())
	gt.NoError(t, err)
	storage, err := adapter.NewFileStorage(t.TempDir())
	gt.NoError(t, err)
	log := history.NewScanLog(adapter.NewMemory(), history.DefaultScanCapacity)
	return scan.New(advisor, g, log, storage)
}

func tomato() model.ScanInput {
	return model.ScanInput{MIMEType: "image/png", PlantName: "tomato", Prompt: "spots on leaves"}
}

func TestAnalyzePro(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	var prompt string
	advisor.AnalyzeLeafFunc = func(ctx context.Context, image []byte, mimeType, p string, lang model.Language) (*model.LeafAnalysis, error) {
		prompt = p
		return &model.LeafAnalysis{Analysis: "Early blight detected", Confidence: 88}, nil
	}
	scanner := newScanner(t, advisor)

	entry, err := scanner.Analyze(ctx, model.TierPro, model.LanguageEnglish, tomato(), leafImage)
	gt.NoError(t, err)
	gt.S(t, prompt).Contains("tomato")
	gt.S(t, prompt).Contains("spots on leaves")
	gt.S(t, entry.Input.ImageRef).Contains("scans")
	gt.True(t, strings.HasSuffix(entry.Input.ImageRef, ".png"))
	scanner.Wait()

	stored, ok := scanner.History().Get(entry.ID)
	gt.True(t, ok)
	gt.Equal(t, stored.Artifacts.DiseaseName, "Early blight")
	gt.True(t, strings.HasSuffix(stored.Artifacts.IllustrationRef, ".png"))
	gt.Equal(t, stored.Artifacts.GrowthStages, "Seedling, vegetative, flowering")

	status, ok := scanner.Current().Status(scan.BranchIllustration)
	gt.True(t, ok)
	gt.NoError(t, status.Err)
	gt.False(t, status.Skipped)
}

func TestAnalyzeFreeSkipsIllustration(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	scanner := newScanner(t, advisor)

	entry, err := scanner.Analyze(ctx, model.TierFree, model.LanguageEnglish, tomato(), leafImage)
	gt.NoError(t, err)
	scanner.Wait()

	gt.Equal(t, advisor.CallCount("ExtractShortLabel"), 0)
	gt.Equal(t, advisor.CallCount("GenerateIllustrativeImage"), 0)
	gt.Equal(t, advisor.CallCount("GrowthStages"), 1)

	status, _ := scanner.Current().Status(scan.BranchIllustration)
	gt.True(t, status.Skipped)

	stored, _ := scanner.History().Get(entry.ID)
	gt.Equal(t, stored.Artifacts.DiseaseName, "")
	gt.Equal(t, stored.Artifacts.IllustrationRef, "")
}

func TestAnalyzeWithoutPlantName(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	scanner := newScanner(t, advisor)

	_, err := scanner.Analyze(ctx, model.TierPro, model.LanguageEnglish, model.ScanInput{MIMEType: "image/jpeg"}, leafImage)
	gt.NoError(t, err)
	scanner.Wait()

	gt.Equal(t, advisor.TotalCalls(), 1)
	for _, name := range []string{scan.BranchIllustration, scan.BranchGrowthStages} {
		status, _ := scanner.Current().Status(name)
		gt.True(t, status.Skipped)
	}
}

func TestAnalyzeHealthyLeaf(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	advisor.ExtractShortLabelFunc = func(ctx context.Context, text string, lang model.Language) (string, error) {
		return "", nil
	}
	scanner := newScanner(t, advisor)

	entry, err := scanner.Analyze(ctx, model.TierPro, model.LanguageEnglish, tomato(), leafImage)
	gt.NoError(t, err)
	scanner.Wait()

	gt.Equal(t, advisor.CallCount("GenerateIllustrativeImage"), 0)
	status, _ := scanner.Current().Status(scan.BranchIllustration)
	gt.True(t, status.Skipped)

	stored, _ := scanner.History().Get(entry.ID)
	gt.Equal(t, stored.Artifacts.DiseaseName, "")
}

func TestAnalyzeValidation(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	scanner := newScanner(t, advisor)

	_, err := scanner.Analyze(ctx, model.TierPro, model.LanguageEnglish, tomato(), nil)
	gt.Equal(t, model.CodeOf(err), model.CodeNoImage)

	input := tomato()
	input.MIMEType = "application/pdf"
	_, err = scanner.Analyze(ctx, model.TierPro, model.LanguageEnglish, input, leafImage)
	gt.Equal(t, model.CodeOf(err), model.CodeInvalidFileType)
	gt.True(t, model.IsValidation(err))

	_, err = scanner.AnalyzeSoil(ctx, model.LanguageEnglish, nil, "image/png")
	gt.Equal(t, model.CodeOf(err), model.CodeNoImage)

	gt.Equal(t, advisor.TotalCalls(), 0)
	gt.Equal(t, scanner.History().Len(), 0)
}

func TestAnalyzeFailure(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	advisor.AnalyzeLeafFunc = func(ctx context.Context, image []byte, mimeType, prompt string, lang model.Language) (*model.LeafAnalysis, error) {
		return nil, model.Service(model.CodeAnalysisFailed, context.DeadlineExceeded, "leaf analysis failed")
	}
	scanner := newScanner(t, advisor)

	_, err := scanner.Analyze(ctx, model.TierPro, model.LanguageEnglish, tomato(), leafImage)
	gt.Equal(t, model.CodeOf(err), model.CodeAnalysisFailed)
	gt.Equal(t, scanner.History().Len(), 0)
	gt.Nil(t, scanner.Current())
}

func TestStaleChainIsDiscarded(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	started := make(chan struct{})
	release := make(chan struct{})
	advisor.GrowthStagesFunc = func(ctx context.Context, subject string, lang model.Language) (string, error) {
		close(started)
		<-release
		return "late stages", nil
	}
	advisor.ExtractShortLabelFunc = func(ctx context.Context, text string, lang model.Language) (string, error) {
		<-release
		return "Early blight", nil
	}
	scanner := newScanner(t, advisor)

	entry, err := scanner.Analyze(ctx, model.TierPro, model.LanguageEnglish, tomato(), leafImage)
	gt.NoError(t, err)
	run := scanner.Current()

	<-started
	scanner.Reset()
	close(release)
	run.Wait()

	stored, ok := scanner.History().Get(entry.ID)
	gt.True(t, ok)
	gt.Equal(t, stored.Artifacts, model.Artifacts{})
	gt.Equal(t, advisor.CallCount("GenerateIllustrativeImage"), 0)

	for _, name := range []string{scan.BranchIllustration, scan.BranchGrowthStages} {
		status, _ := run.Status(name)
		gt.True(t, status.Skipped)
		gt.NoError(t, status.Err)
	}
}

func TestSupersededAnalysisIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	var scanner *scan.Scanner
	advisor.AnalyzeLeafFunc = func(ctx context.Context, image []byte, mimeType, prompt string, lang model.Language) (*model.LeafAnalysis, error) {
		scanner.Reset()
		return &model.LeafAnalysis{Analysis: "too late"}, nil
	}
	scanner = newScanner(t, advisor)

	_, err := scanner.Analyze(ctx, model.TierPro, model.LanguageEnglish, tomato(), leafImage)
	gt.True(t, errors.Is(err, chain.ErrStale))
	gt.Equal(t, scanner.History().Len(), 0)
}

func TestTreatmentPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("free tier makes no call", func(t *testing.T) {
		advisor := &testtools.Advisor{}
		scanner := newScanner(t, advisor)
		entry, err := scanner.Analyze(ctx, model.TierFree, model.LanguageEnglish, model.ScanInput{MIMEType: "image/png"}, leafImage)
		gt.NoError(t, err)
		before := advisor.TotalCalls()

		_, err = scanner.TreatmentPlan(ctx, model.TierFree, model.LanguageEnglish, entry.ID)
		gt.Error(t, err)
		gt.True(t, model.IsUpgradeRequired(err))
		gt.Equal(t, model.CodeOf(err), model.CodeUpgradeRequired)
		gt.Equal(t, advisor.TotalCalls(), before)
	})

	t.Run("pro tier attaches plan", func(t *testing.T) {
		advisor := &testtools.Advisor{}
		var analysis string
		advisor.TreatmentPlanFunc = func(ctx context.Context, a string, lang model.Language) (string, error) {
			analysis = a
			return "Apply copper fungicide", nil
		}
		scanner := newScanner(t, advisor)
		entry, err := scanner.Analyze(ctx, model.TierPro, model.LanguageEnglish, model.ScanInput{MIMEType: "image/png"}, leafImage)
		gt.NoError(t, err)

		plan, err := scanner.TreatmentPlan(ctx, model.TierPro, model.LanguageEnglish, entry.ID)
		gt.NoError(t, err)
		gt.Equal(t, plan, "Apply copper fungicide")
		gt.Equal(t, analysis, "Early blight")

		stored, _ := scanner.History().Get(entry.ID)
		gt.Equal(t, stored.Artifacts.TreatmentPlan, "Apply copper fungicide")
	})

	t.Run("unknown entry", func(t *testing.T) {
		advisor := &testtools.Advisor{}
		scanner := newScanner(t, advisor)
		_, err := scanner.TreatmentPlan(ctx, model.TierPro, model.LanguageEnglish, model.NewEntryID())
		gt.Equal(t, model.CodeOf(err), model.CodeEntryNotFound)
		gt.Equal(t, advisor.TotalCalls(), 0)
	})
}

type fakeCamera struct {
	frames []model.Frame
}

func (c *fakeCamera) Watch(ctx context.Context, onFrame func(model.Frame)) error {
	for _, f := range c.frames {
		onFrame(f)
	}
	return nil
}

func TestWatch(t *testing.T) {
	ctx := context.Background()
	advisor := &testtools.Advisor{}
	scanner := newScanner(t, advisor)

	camera := &fakeCamera{frames: []model.Frame{
		{Data: leafImage, MIMEType: "image/png", Source: "a.png"},
		{Data: []byte("text"), MIMEType: "text/plain", Source: "b.txt"},
		{Data: leafImage, MIMEType: "image/jpeg", Source: "c.jpg"},
	}}

	var results []error
	err := scanner.Watch(ctx, camera, model.TierFree, model.LanguageEnglish, model.ScanInput{}, func(entry model.ScanEntry, err error) {
		results = append(results, err)
	})
	gt.NoError(t, err)
	gt.A(t, results).Length(3)
	gt.NoError(t, results[0])
	gt.Equal(t, model.CodeOf(results[1]), model.CodeInvalidFileType)
	gt.NoError(t, results[2])

	entries := scanner.History().Entries()
	gt.A(t, entries).Length(2)
	gt.Equal(t, entries[0].Input.MIMEType, "image/jpeg")
}
