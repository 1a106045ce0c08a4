// Package manifest fetches GT New Horizons release manifests and compares them
// with the mod list of a crash report.
package manifest

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/ksysoev/crash-triage/pkg/core"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrUnsupported is returned for manifests in the V1 format.
	ErrUnsupported = errors.New("unsupported manifest format")
	// ErrNotFound is returned when no manifest exists for a version.
	ErrNotFound = errors.New("manifest not found")
)

// Entry is a mod listed in a manifest
type Entry struct {
	ModID   string
	Version string
	Side    core.Side
}

// Manifest is a V2 release manifest
type Manifest struct {
	Version string
	Mods    []Entry
}

type modVersion struct {
	Version string    `json:"version"`
	Side    core.Side `json:"side"`
}

// Parse decodes a V2 manifest. Documents without the V2 mod maps are V1 and
// yield ErrUnsupported.
func Parse(data []byte) (*Manifest, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, goerr.Wrap(err, "failed to decode manifest")
	}

	githubRaw, hasGithub := root["github_mods"]
	externalRaw, hasExternal := root["external_mods"]
	if !hasGithub && !hasExternal {
		return nil, ErrUnsupported
	}

	m := &Manifest{}
	if raw, ok := root["version"]; ok {
		if err := json.Unmarshal(raw, &m.Version); err != nil {
			return nil, goerr.Wrap(err, "failed to decode manifest version")
		}
	}

	for _, raw := range [][]byte{githubRaw, externalRaw} {
		if raw == nil {
			continue
		}

		var mods map[string]modVersion
		if err := json.Unmarshal(raw, &mods); err != nil {
			// V1 kept mods in lists of objects
			return nil, goerr.Wrap(ErrUnsupported, "mod section is not a V2 mapping", goerr.V("cause", err.Error()))
		}

		for id, mv := range mods {
			m.Mods = append(m.Mods, Entry{ModID: id, Version: mv.Version, Side: mv.Side})
		}
	}

	sort.Slice(m.Mods, func(i, j int) bool { return m.Mods[i].ModID < m.Mods[j].ModID })

	return m, nil
}

// ModsFor returns the mods installed on side.
func (m *Manifest) ModsFor(side core.Side) []Entry {
	var mods []Entry
	for _, e := range m.Mods {
		if e.Side != "" && e.Side.AppliesTo(side) {
			mods = append(mods, e)
		}
	}
	return mods
}
