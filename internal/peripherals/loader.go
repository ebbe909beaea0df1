package peripherals

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/timone-gs/timone-link/internal/protocol"
	"github.com/timone-gs/timone-link/internal/types"
)

// ProfileLoader lädt Peripheral-Profile aus den Suchpfaden und hält sie
// im Cache. Profile referenzieren die Wire-Konstanten über rohe Bytes,
// damit neue Peripherals ohne Code-Änderung pollbar sind.
type ProfileLoader struct {
	cache       sync.Map
	validator   *Validator
	searchPaths []string
}

func NewProfileLoader(searchPaths []string) (*ProfileLoader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &ProfileLoader{
		validator:   validator,
		searchPaths: searchPaths,
	}, nil
}

func (l *ProfileLoader) Load(name string) (*types.PeripheralProfile, error) {
	// Cache-Check
	if cached, ok := l.cache.Load(name); ok {
		return cached.(*types.PeripheralProfile), nil
	}

	var data []byte
	var err error
	var foundPath string

	for _, searchPath := range l.searchPaths {
		fullPath := filepath.Join(searchPath, name+".json")
		data, err = os.ReadFile(fullPath)
		if err == nil {
			foundPath = fullPath
			break
		}
	}

	if data == nil {
		return nil, fmt.Errorf("profile not found: %s (searched in: %v)", name, l.searchPaths)
	}

	if err := l.validator.ValidateProfile(data); err != nil {
		return nil, fmt.Errorf("validation failed for %s: %w", foundPath, err)
	}

	var profile types.PeripheralProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	l.cache.Store(name, &profile)

	return &profile, nil
}

// LoadAll lädt die benannten Profile in Listen-Reihenfolge
func (l *ProfileLoader) LoadAll(names []string) ([]*types.PeripheralProfile, error) {
	profiles := make([]*types.PeripheralProfile, 0, len(names))
	for _, name := range names {
		p, err := l.Load(name)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// PeripheralID übersetzt das rohe Byte des Profils in die Protokoll-ID
func PeripheralID(p *types.PeripheralProfile) protocol.PeripheralID {
	return protocol.PeripheralID(p.PeripheralID)
}

// PollCommand übersetzt das rohe Byte des Profils in den Command-Code
func PollCommand(p *types.PeripheralProfile) protocol.CommandCode {
	return protocol.CommandCode(p.PollCommand)
}

func (l *ProfileLoader) ClearCache() {
	l.cache.Range(func(key, value interface{}) bool {
		l.cache.Delete(key)
		return true
	})
}
