package store

import (
	"encoding/json"
	"fmt"
	"os"
)

// SeedData is the mock-data file layout: top-level arrays of accounts,
// facilities, and notes. Account and facility entries share the JSON
// shape of the stored projections.
type SeedData struct {
	Accounts   []*Account  `json:"account_overview"`
	Facilities []*Facility `json:"facility_overview"`
	Notes      []SeedNote  `json:"notes"`
}

// SeedNote is a mock-data note entry.
type SeedNote struct {
	AccountID  string `json:"account_id,omitempty"`
	FacilityID string `json:"facility_id,omitempty"`
	UserID     string `json:"user_id"`
	Note       string `json:"note"`
}

// SeedStats reports how many rows a Seed call wrote.
type SeedStats struct {
	Accounts   int
	Facilities int
	Notes      int
}

// LoadSeedFile parses a mock-data JSON file.
func LoadSeedFile(path string) (*SeedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var sd SeedData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &sd, nil
}

// Seed upserts accounts and facilities and inserts notes. Accounts load
// before facilities so the facility foreign key resolves.
func (s *Store) Seed(data *SeedData) (SeedStats, error) {
	var stats SeedStats

	for _, a := range data.Accounts {
		if a.AccountID == "" {
			return stats, fmt.Errorf("seed account %q has no account_id", a.Name)
		}
		if err := s.UpsertAccount(a); err != nil {
			return stats, err
		}
		stats.Accounts++
	}

	for _, f := range data.Facilities {
		if f.ID == "" {
			return stats, fmt.Errorf("seed facility %q has no id", f.Name)
		}
		if err := s.UpsertFacility(f); err != nil {
			return stats, err
		}
		stats.Facilities++
	}

	for _, n := range data.Notes {
		if n.AccountID == "" && n.FacilityID == "" {
			return stats, fmt.Errorf("seed note for user %q has neither account_id nor facility_id", n.UserID)
		}
		userID := n.UserID
		if userID == "" {
			userID = "system"
		}
		if _, _, err := s.InsertNote(userID, n.Note, n.AccountID, n.FacilityID); err != nil {
			return stats, err
		}
		stats.Notes++
	}

	return stats, nil
}
