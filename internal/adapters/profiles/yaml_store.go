// Package profiles loads read-only contact profiles from a YAML file.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/switchboard/internal/ports/secondary"
)

// profileEntry is the on-disk shape of one profile.
type profileEntry struct {
	DisplayName  string `yaml:"display_name"`
	Relationship string `yaml:"relationship"`
	Style        string `yaml:"style"`
	Notes        string `yaml:"notes"`
}

// file is the profiles document: sender ID -> profile.
type file struct {
	Profiles map[string]profileEntry `yaml:"profiles"`
}

// YAMLStore implements secondary.ProfileRepository over an in-memory copy
// of a YAML profiles file.
type YAMLStore struct {
	profiles map[string]*secondary.ProfileRecord
}

// LoadYAML reads a profiles file. A missing file yields an empty store.
func LoadYAML(path string) (*YAMLStore, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewYAMLStore(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML builds a store from the YAML document in data.
func ParseYAML(data []byte) (*YAMLStore, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	records := make([]*secondary.ProfileRecord, 0, len(f.Profiles))
	for senderID, p := range f.Profiles {
		if strings.TrimSpace(senderID) == "" {
			return nil, fmt.Errorf("profile with empty sender id")
		}
		records = append(records, &secondary.ProfileRecord{
			SenderID:     senderID,
			DisplayName:  p.DisplayName,
			Relationship: p.Relationship,
			Style:        p.Style,
			Notes:        p.Notes,
		})
	}
	return NewYAMLStore(records), nil
}

// NewYAMLStore creates a store from already-loaded records.
func NewYAMLStore(records []*secondary.ProfileRecord) *YAMLStore {
	s := &YAMLStore{profiles: make(map[string]*secondary.ProfileRecord, len(records))}
	for _, r := range records {
		s.profiles[strings.ToLower(r.SenderID)] = r
	}
	return s
}

// Get returns the profile for a sender, or nil. Sender IDs match case-insensitively.
func (s *YAMLStore) Get(ctx context.Context, senderID string) (*secondary.ProfileRecord, error) {
	p, ok := s.profiles[strings.ToLower(senderID)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// Len returns the number of known profiles.
func (s *YAMLStore) Len() int {
	return len(s.profiles)
}

var _ secondary.ProfileRepository = (*YAMLStore)(nil)
