package model

import "github.com/m-mizutani/goerr/v2"

// Tier is the subscription tier of a user
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Validate checks if the tier is valid
func (t Tier) Validate() error {
	switch t {
	case TierFree, TierPro:
		return nil
	default:
		return goerr.New("invalid tier", goerr.V("tier", t), goerr.T(TagValidation), WithCode(CodeInvalidInput))
	}
}

// Capability is an action that may be restricted by subscription tier
type Capability string

const (
	CapabilityVoiceInput        Capability = "voice_input"
	CapabilityTreatmentPlan     Capability = "treatment_plan"
	CapabilityIllustrativeImage Capability = "illustrative_image"

	CapabilityPrediction   Capability = "prediction"
	CapabilityChat         Capability = "chat"
	CapabilityLeafScan     Capability = "leaf_scan"
	CapabilitySoilScan     Capability = "soil_scan"
	CapabilityFarmingGuide Capability = "farming_guide"
	CapabilityGrowthStages Capability = "growth_stages"
	CapabilitySpeech       Capability = "speech"
	CapabilityLocation     Capability = "location"
)

// Tool is a top-level feature of the application
type Tool string

const (
	ToolPredictor   Tool = "predictor"
	ToolChatbot     Tool = "chatbot"
	ToolScanner     Tool = "scanner"
	ToolSoilScanner Tool = "soil_scanner"
	ToolProfile     Tool = "profile"
)

// DefaultTool is selected when nothing valid was stored
const DefaultTool = ToolPredictor

// Validate checks if the tool is known
func (t Tool) Validate() error {
	switch t {
	case ToolPredictor, ToolChatbot, ToolScanner, ToolSoilScanner, ToolProfile:
		return nil
	default:
		return goerr.New("unknown tool", goerr.V("tool", t), goerr.T(TagValidation), WithCode(CodeInvalidInput))
	}
}
