package manifest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

const maxManifestSize = 8 << 20

var nightlySequenceRegex = regexp.MustCompile(`nightly\D*(\d+)`)

// NightlyFetcher downloads the manifest produced by a nightly build
type NightlyFetcher interface {
	NightlyManifest(ctx context.Context, sequence int) ([]byte, error)
}

// Source fetches manifests and keeps the ones it already fetched
type Source struct {
	client     *http.Client
	baseURL    string
	nightly    NightlyFetcher
	assetsFile string

	cache  map[string]*Manifest
	assets *Assets
}

// NewSource creates a source reading release manifests below baseURL.
// nightly may be nil, in which case nightly versions are not found.
func NewSource(client *http.Client, baseURL string, nightly NightlyFetcher) *Source {
	if client == nil {
		client = http.DefaultClient
	}
	return &Source{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		nightly: nightly,
		cache:   make(map[string]*Manifest),
	}
}

// Get returns the manifest of version. Failures are not cached.
func (s *Source) Get(ctx context.Context, version string) (*Manifest, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, goerr.Wrap(ErrNotFound, "empty pack version")
	}

	if m, ok := s.cache[version]; ok {
		return m, nil
	}

	var (
		m   *Manifest
		err error
	)
	if strings.Contains(version, "nightly") {
		m, err = s.getNightly(ctx, version)
	} else {
		m, err = s.getRelease(ctx, version)
	}
	if err != nil {
		return nil, err
	}

	s.cache[version] = m

	return m, nil
}

// WithAssetsFile makes s read the assets database from a local copy at path,
// and save the downloaded one there when the copy does not exist yet.
func (s *Source) WithAssetsFile(path string) *Source {
	s.assetsFile = path
	return s
}

// Assets returns the assets database. Once loaded it is kept for the life of s.
func (s *Source) Assets(ctx context.Context) (*Assets, error) {
	if s.assets != nil {
		return s.assets, nil
	}

	data, err := s.readAssets(ctx)
	if err != nil {
		return nil, err
	}

	assets, err := ParseAssets(data)
	if err != nil {
		return nil, err
	}
	s.assets = assets

	return assets, nil
}

func (s *Source) readAssets(ctx context.Context) ([]byte, error) {
	if s.assetsFile != "" {
		data, err := os.ReadFile(s.assetsFile)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, goerr.Wrap(err, "failed to read local assets", goerr.V("path", s.assetsFile))
		}
	}

	data, err := s.fetch(ctx, s.baseURL+"/"+AssetsFile)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch assets")
	}

	if s.assetsFile != "" {
		if err := os.MkdirAll(filepath.Dir(s.assetsFile), 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create assets directory", goerr.V("path", s.assetsFile))
		}
		if err := os.WriteFile(s.assetsFile, data, 0o644); err != nil {
			return nil, goerr.Wrap(err, "failed to save assets", goerr.V("path", s.assetsFile))
		}
	}

	return data, nil
}

func (s *Source) getRelease(ctx context.Context, version string) (*Manifest, error) {
	data, err := s.fetch(ctx, s.baseURL+"/releases/manifests/"+version+".json")
	if errors.Is(err, ErrNotFound) {
		// releases that predate the V2 format live in old/
		if _, err = s.fetch(ctx, s.baseURL+"/releases/manifests/old/"+version+".json"); err == nil {
			return nil, goerr.Wrap(ErrUnsupported, "release manifest is in old/", goerr.V("version", version))
		}
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch release manifest", goerr.V("version", version))
	}

	return Parse(data)
}

func (s *Source) getNightly(ctx context.Context, version string) (*Manifest, error) {
	m := nightlySequenceRegex.FindStringSubmatch(version)
	if m == nil {
		return nil, goerr.Wrap(ErrNotFound, "unrecognizable nightly version", goerr.V("version", version))
	}

	sequence, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, goerr.Wrap(err, "invalid nightly sequence", goerr.V("version", version))
	}

	if s.nightly == nil {
		return nil, goerr.Wrap(ErrNotFound, "nightly manifests are not available", goerr.V("version", version))
	}

	data, err := s.nightly.NightlyManifest(ctx, sequence)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch nightly manifest", goerr.V("sequence", sequence))
	}

	return Parse(data)
}

func (s *Source) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", url))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch manifest", goerr.V("url", url))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, goerr.Wrap(ErrNotFound, "no manifest at url", goerr.V("url", url))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("unexpected status code", goerr.V("url", url), goerr.V("status", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read manifest", goerr.V("url", url))
	}

	return data, nil
}
