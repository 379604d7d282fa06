package model

import (
	"time"

	"github.com/google/uuid"
)

type EntryID string

// NewEntryID generates a new unique EntryID
func NewEntryID() EntryID {
	return EntryID(uuid.New().String())
}

// Artifacts are results derived from an entry after it was created. They are
// attached asynchronously and any of them may be empty.
type Artifacts struct {
	TreatmentPlan   string `json:"treatment_plan,omitempty"`
	DiseaseName     string `json:"disease_name,omitempty"`
	IllustrationRef string `json:"illustration_ref,omitempty"`
	GrowthStages    string `json:"growth_stages,omitempty"`
	FarmingGuide    string `json:"farming_guide,omitempty"`
}

// HistoryEntry is one persisted record of a completed analysis or prediction
type HistoryEntry[I, R any] struct {
	ID        EntryID   `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Input     I         `json:"input"`
	Result    R         `json:"result"`
	Artifacts Artifacts `json:"artifacts"`
}

type PredictionEntry = HistoryEntry[PredictionParams, PredictionResult]

type ScanEntry = HistoryEntry[ScanInput, LeafAnalysis]
