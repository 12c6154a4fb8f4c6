package application

import "github.com/bnema/numsel/internal/domain"

// Summary is the read model shared by the CLI and the HTTP API.
type Summary struct {
	Total        int           `json:"total"`
	Available    int           `json:"available"`
	Taken        int           `json:"taken"`
	Numbers      []domain.Slot `json:"numbers"`
	Participants []domain.Slot `json:"participants"`
}

func Summarize(snapshot domain.Snapshot) Summary {
	numbers := snapshot.Slots
	if numbers == nil {
		numbers = []domain.Slot{}
	}

	return Summary{
		Total:        snapshot.Total(),
		Available:    snapshot.AvailableCount(),
		Taken:        snapshot.TakenCount(),
		Numbers:      numbers,
		Participants: snapshot.Participants(),
	}
}
