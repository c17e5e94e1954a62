package protocol

import (
	"encoding/json"
	"sort"
)

// Document is the persisted body of a configuration.
//
// INCLUDES is kept sorted ascending without duplicates on every write.
// Older rows may carry the list under the legacy OTHER_CONFIG name; it is
// merged into INCLUDES on read and never written back, so rows migrate the
// next time they are persisted.
type Document struct {
	Name     string         `json:"CONFIG_NAME"`
	Settings map[string]any `json:"SETTINGS"`
	Includes []uint64       `json:"INCLUDES"`
}

// NewDocument returns an empty document for a freshly created configuration.
func NewDocument(name string) *Document {
	return &Document{
		Name:     name,
		Settings: map[string]any{},
		Includes: []uint64{},
	}
}

// rawDocument carries the legacy field alongside the canonical ones.
type rawDocument struct {
	Name        string         `json:"CONFIG_NAME"`
	Settings    map[string]any `json:"SETTINGS"`
	Includes    []uint64       `json:"INCLUDES"`
	OtherConfig []uint64       `json:"OTHER_CONFIG,omitempty"`
}

// UnmarshalJSON decodes a stored document, folding the legacy OTHER_CONFIG
// list into INCLUDES.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Name = raw.Name
	d.Settings = raw.Settings
	if d.Settings == nil {
		d.Settings = map[string]any{}
	}
	d.Includes = NormalizeIncludes(append(raw.Includes, raw.OtherConfig...))
	return nil
}

// MarshalJSON encodes the canonical document shape.
func (d Document) MarshalJSON() ([]byte, error) {
	raw := rawDocument{
		Name:     d.Name,
		Settings: d.Settings,
		Includes: d.Includes,
	}
	if raw.Settings == nil {
		raw.Settings = map[string]any{}
	}
	if raw.Includes == nil {
		raw.Includes = []uint64{}
	}
	return json.Marshal(raw)
}

// AddInclude appends id and re-normalizes the list. It returns the
// resulting list length.
func (d *Document) AddInclude(id uint64) int {
	d.Includes = NormalizeIncludes(append(d.Includes, id))
	return len(d.Includes)
}

// SettingNames returns the sorted setting names of the document.
func (d *Document) SettingNames() []string {
	names := make([]string, 0, len(d.Settings))
	for name := range d.Settings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeIncludes sorts ids ascending and removes duplicates.
func NormalizeIncludes(ids []uint64) []uint64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	var last uint64
	for i, id := range ids {
		if i == 0 || id != last {
			out = append(out, id)
		}
		last = id
	}
	if out == nil {
		out = []uint64{}
	}
	return out
}
