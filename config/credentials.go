package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// PlatformCredentials holds one platform's API credentials, parsed from an
// INI file with one section per platform. Only the OAuth platform
// (twitch) currently needs credentials; other platforms are unauthenticated
// or scrape-based, but the file format allows adding client_id/client_secret
// pairs for any platform without a schema change.
type PlatformCredentials struct {
	ClientID     string
	ClientSecret string
}

// LoadCredentials reads path and returns a map keyed by platform name
// (matching the section header, e.g. "[twitch]"). A missing file is not an
// error: it returns an empty map, since every platform works unauthenticated
// except the ones a deployer explicitly configures.
func LoadCredentials(path string) (map[string]PlatformCredentials, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{Loose: true, Insensitive: true}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials file %s: %w", path, err)
	}

	out := make(map[string]PlatformCredentials)
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		out[section.Name()] = PlatformCredentials{
			ClientID:     section.Key("client_id").String(),
			ClientSecret: section.Key("client_secret").String(),
		}
	}
	return out, nil
}
