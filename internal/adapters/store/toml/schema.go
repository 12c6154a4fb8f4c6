package toml

import (
	"fmt"

	"github.com/bnema/numsel/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version int            `toml:"version"`
	Numbers []numberSchema `toml:"numbers"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported numbers schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type numberSchema struct {
	ID      int    `toml:"id"`
	IsTaken bool   `toml:"isTaken"`
	TakenBy string `toml:"takenBy"`
}

func toSchema(slots []domain.Slot) []numberSchema {
	numbers := make([]numberSchema, 0, len(slots))
	for _, slot := range slots {
		numbers = append(numbers, numberSchema{
			ID:      int(slot.ID),
			IsTaken: slot.IsTaken,
			TakenBy: slot.TakenBy,
		})
	}
	return numbers
}

func fromSchema(numbers []numberSchema) (domain.Snapshot, error) {
	slots := make([]domain.Slot, 0, len(numbers))
	for _, entry := range numbers {
		slots = append(slots, domain.Slot{
			ID:      domain.SlotID(entry.ID),
			IsTaken: entry.IsTaken,
			TakenBy: entry.TakenBy,
		})
	}

	snapshot := domain.NewSnapshot(slots)
	if err := snapshot.Validate(); err != nil {
		return domain.Snapshot{}, err
	}

	return snapshot, nil
}
