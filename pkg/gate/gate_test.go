package gate_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/agriai/pkg/gate"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestIsAllowed(t *testing.T) {
	g, err := gate.New(context.Background())
	gt.NoError(t, err)

	testCases := []struct {
		tier       model.Tier
		capability model.Capability
		expected   bool
	}{
		{model.TierFree, model.CapabilityTreatmentPlan, false},
		{model.TierPro, model.CapabilityTreatmentPlan, true},
		{model.TierFree, model.CapabilityVoiceInput, false},
		{model.TierPro, model.CapabilityVoiceInput, true},
		{model.TierFree, model.CapabilityIllustrativeImage, false},
		{model.TierPro, model.CapabilityIllustrativeImage, true},
		{model.TierFree, model.CapabilityPrediction, true},
		{model.TierFree, model.CapabilityChat, true},
		{model.TierFree, model.CapabilityLeafScan, true},
		{model.TierFree, model.CapabilityGrowthStages, true},
		{model.TierPro, model.CapabilitySpeech, true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.tier)+"/"+string(tc.capability), func(t *testing.T) {
			gt.Equal(t, g.IsAllowed(tc.tier, tc.capability), tc.expected)
		})
	}
}

func TestCheck(t *testing.T) {
	g, err := gate.New(context.Background())
	gt.NoError(t, err)

	gt.NoError(t, g.Check(model.TierPro, model.CapabilityTreatmentPlan))

	err = g.Check(model.TierFree, model.CapabilityTreatmentPlan)
	gt.Error(t, err)
	gt.True(t, model.IsUpgradeRequired(err))
	gt.Equal(t, model.CodeOf(err), model.CodeUpgradeRequired)
}

func TestPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gate.rego")
	policy := `package gate

default allow := false

allow if input.capability == "chat"
`
	gt.NoError(t, os.WriteFile(path, []byte(policy), 0o644))

	g, err := gate.New(context.Background(), gate.WithPolicyFile(path))
	gt.NoError(t, err)

	gt.True(t, g.IsAllowed(model.TierFree, model.CapabilityChat))
	gt.False(t, g.IsAllowed(model.TierPro, model.CapabilityPrediction))
}

func TestInvalidPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.rego")
	gt.NoError(t, os.WriteFile(path, []byte("package gate\nallow if {"), 0o644))

	_, err := gate.New(context.Background(), gate.WithPolicyFile(path))
	gt.Error(t, err)
	gt.True(t, model.IsConfiguration(err))

	_, err = gate.New(context.Background(), gate.WithPolicyFile(filepath.Join(t.TempDir(), "missing.rego")))
	gt.Error(t, err)
}
