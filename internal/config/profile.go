package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile tunes where and how searches are made. Unset fields keep the
// search package defaults.
type Profile struct {
	UserAgent     string        `yaml:"user_agent"`
	BaseURL       string        `yaml:"base_url"`
	LegacyBaseURL string        `yaml:"legacy_base_url"`
	Topics        []string      `yaml:"topics"`
	Techniques    []string      `yaml:"techniques"`
	Settle        time.Duration `yaml:"settle"`
	LegacySettle  time.Duration `yaml:"legacy_settle"`
}

// LoadProfile reads a search profile from path. An empty path yields an
// empty profile.
func LoadProfile(path string) (*Profile, error) {
	p := &Profile{}
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read search profile: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse search profile %s: %w", path, err)
	}
	p.normalize()
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid search profile %s: %w", path, err)
	}
	return p, nil
}

func (p *Profile) normalize() {
	p.UserAgent = strings.TrimSpace(p.UserAgent)
	p.Topics = trimAll(p.Topics)
	p.Techniques = trimAll(p.Techniques)
	for i, t := range p.Techniques {
		p.Techniques[i] = strings.ToLower(t)
	}
}

func (p *Profile) validate() error {
	for name, raw := range map[string]string{"base_url": p.BaseURL, "legacy_base_url": p.LegacyBaseURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
		}
	}
	for _, t := range p.Topics {
		if strings.ContainsAny(t, "/ ") {
			return fmt.Errorf("topic %q must be a bare name", t)
		}
	}
	if p.Settle < 0 || p.LegacySettle < 0 {
		return fmt.Errorf("settle delays must not be negative")
	}
	return nil
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
