package manifest

import (
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// AssetsFile is the name of the assets database next to the release manifests.
const AssetsFile = "gtnh-assets.json"

// Assets maps the mods of the pack to the jar files of their released versions.
// Manifests name mods by asset, crash reports name them by jar file.
type Assets struct {
	byName map[string]map[string]string
	byFile map[string]AssetVersion
}

// AssetVersion is one released version of an asset
type AssetVersion struct {
	Name    string
	Version string
}

type assetsDocument struct {
	Mods         []assetMod `json:"mods"`
	GithubMods   []assetMod `json:"github_mods"`
	ExternalMods []assetMod `json:"external_mods"`
}

type assetMod struct {
	Name     string         `json:"name"`
	Versions []assetRelease `json:"versions"`
}

type assetRelease struct {
	VersionTag string `json:"version_tag"`
	Filename   string `json:"filename"`
}

// ParseAssets decodes the assets database. Versions without a jar file are skipped.
func ParseAssets(data []byte) (*Assets, error) {
	var doc assetsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode assets")
	}

	a := &Assets{
		byName: make(map[string]map[string]string),
		byFile: make(map[string]AssetVersion),
	}

	for _, group := range [][]assetMod{doc.Mods, doc.GithubMods, doc.ExternalMods} {
		for _, mod := range group {
			key := strings.ToLower(mod.Name)
			for _, v := range mod.Versions {
				if v.Filename == "" {
					continue
				}
				if a.byName[key] == nil {
					a.byName[key] = make(map[string]string)
				}
				a.byName[key][v.VersionTag] = v.Filename
				a.byFile[v.Filename] = AssetVersion{Name: mod.Name, Version: v.VersionTag}
			}
		}
	}

	if len(a.byFile) == 0 {
		return nil, goerr.New("assets database lists no mod files")
	}

	return a, nil
}

// Filename returns the jar file of the given version of an asset.
func (a *Assets) Filename(name, version string) (string, bool) {
	if a == nil {
		return "", false
	}
	filename, ok := a.byName[strings.ToLower(name)][version]
	return filename, ok
}

// Lookup returns the asset and version a jar file belongs to.
func (a *Assets) Lookup(filename string) (AssetVersion, bool) {
	if a == nil {
		return AssetVersion{}, false
	}
	v, ok := a.byFile[filename]
	return v, ok
}
