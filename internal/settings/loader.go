package settings

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads settings.yaml and universe.yaml from dir.
// KnownFields(true) fails fast on typos and unused keys.
func Load(dir string) (*Settings, *Universe, error) {
	settings, err := LoadSettings(filepath.Join(dir, "settings.yaml"))
	if err != nil {
		return nil, nil, err
	}

	universe, err := LoadUniverse(filepath.Join(dir, "universe.yaml"))
	if err != nil {
		return nil, nil, err
	}

	return settings, universe, nil
}

// LoadSettings reads one settings file, applies defaults and validates
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("settings file: %w", err)
	}

	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("settings decode: %w", err)
	}

	applyDefaults(&s)

	if err := Validate(&s); err != nil {
		return nil, err
	}

	return &s, nil
}

// LoadUniverse reads the curated symbol universe
func LoadUniverse(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("universe file: %w", err)
	}

	var u Universe
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&u); err != nil {
		return nil, fmt.Errorf("universe decode: %w", err)
	}

	return &u, nil
}

// Hash generates a SHA256 hash of the settings (canonical JSON).
// Struct marshaling keeps field order deterministic, so equal settings
// always hash equal.
func Hash(s *Settings) (string, error) {
	jsonBytes, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
