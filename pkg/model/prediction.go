package model

// PredictionParams is the farm data submitted for a crop recommendation
type PredictionParams struct {
	Rainfall     float64 `json:"rainfall" validate:"gte=0,lte=500"`
	Temperature  float64 `json:"temperature" validate:"gte=-10,lte=50"`
	Humidity     float64 `json:"humidity" validate:"gte=0,lte=100"`
	Nitrogen     float64 `json:"nitrogen" validate:"gte=0,lte=200"`
	Phosphorus   float64 `json:"phosphorus" validate:"gte=0,lte=200"`
	Potassium    float64 `json:"potassium" validate:"gte=0,lte=200"`
	PH           float64 `json:"ph" validate:"gte=0,lte=14"`
	SoilType     string  `json:"soil_type" validate:"required"`
	Region       string  `json:"region" validate:"required"`
	CustomPrompt string  `json:"custom_prompt,omitempty"`
}

// DefaultPredictionParams returns the initial slider values of the predictor
func DefaultPredictionParams() PredictionParams {
	return PredictionParams{
		Rainfall:    120,
		Temperature: 25,
		Humidity:    60,
		Nitrogen:    50,
		Phosphorus:  50,
		Potassium:   50,
		PH:          6.5,
	}
}

// Validate checks that every measurement is inside its accepted range and
// that soil type and region are given
func (p *PredictionParams) Validate() error {
	return validateStruct(p, "invalid prediction parameters")
}

// PredictionResult is the structured crop recommendation returned by the AI service
type PredictionResult struct {
	Crop          string  `json:"crop" jsonschema:"recommended crop name"`
	Reason        string  `json:"reason" jsonschema:"short explanation of the recommendation"`
	Confidence    float64 `json:"confidence" jsonschema:"confidence score from 0 to 100"`
	ExpectedYield string  `json:"expectedYield,omitempty" jsonschema:"expected yield with unit, if it can be estimated"`
}

// LeafAnalysis is the structured result of a leaf image analysis
type LeafAnalysis struct {
	Analysis   string  `json:"analysis" jsonschema:"markdown formatted analysis of the leaf"`
	Confidence float64 `json:"confidence" jsonschema:"confidence score from 0 to 100"`
}

// ScanInput is the snapshot of what was submitted for a leaf scan
type ScanInput struct {
	ImageRef  string `json:"image_ref"`
	MIMEType  string `json:"mime_type"`
	PlantName string `json:"plant_name"`
	Prompt    string `json:"prompt"`
}

// Coordinates is a position reported by the geolocation device
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationContext is the region and approximate temperature resolved from coordinates
type LocationContext struct {
	Region      string  `json:"region" jsonschema:"administrative region name"`
	Temperature float64 `json:"temperature" jsonschema:"approximate current temperature in Celsius"`
}
