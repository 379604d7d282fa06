package advisor

import "github.com/m-mizutani/agriai/pkg/model"

var (
	PredictionSchema  = schemaFor[model.PredictionResult]
	IsTokenLimitError = isTokenLimitError
	RenderPrompt      = renderPrompt
)
