// Package settings resolves per-provider configuration from the environment.
// The settings surface owns writes; this module only reads which providers
// are enabled and how their sessions should be configured.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ankitkumar1302/mobilemodels/api"
)

// envPrefix namespaces every configuration variable, for example
// MOBILEMODELS_OPENAI_ENABLED or MOBILEMODELS_ANTHROPIC_TOKEN.
const envPrefix = "MOBILEMODELS"

var defaultAPIURLs = map[api.Provider]string{
	api.OpenAI:    "https://api.openai.com/v1",
	api.Anthropic: "https://api.anthropic.com",
	api.Google:    "https://generativelanguage.googleapis.com",
	api.Groq:      "https://api.groq.com/openai/v1",
	api.Ollama:    "http://localhost:11434",
}

// Platform is the resolved configuration for one provider.
type Platform struct {
	Name         api.Provider
	Enabled      bool
	APIURL       string
	Token        string
	Model        string
	Temperature  *float64
	TopP         *float64
	SystemPrompt string
}

var _ api.SettingsGateway = (*Service)(nil)

type Service struct {
	lookup func(string) (string, bool)
}

func New() *Service {
	return &Service{}
}

// WithLookup overrides the environment lookup, mainly for tests.
func (s *Service) WithLookup(lookup func(string) (string, bool)) *Service {
	s.lookup = lookup
	return s
}

func (s *Service) get(provider api.Provider, key string) (string, bool) {
	name := fmt.Sprintf("%s_%s_%s", envPrefix, strings.ToUpper(string(provider)), key)
	if s.lookup != nil {
		return s.lookup(name)
	}
	return os.LookupEnv(name)
}

// FetchPlatforms resolves the configuration of every known provider,
// enabled or not.
func (s *Service) FetchPlatforms(ctx context.Context) ([]Platform, error) {
	providers := api.Providers()
	platforms := make([]Platform, 0, len(providers))
	for _, provider := range providers {
		platform, err := s.platform(provider)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, platform)
	}
	return platforms, nil
}

// FetchEnabledProviders returns the providers the user has switched on, in
// canonical order.
func (s *Service) FetchEnabledProviders(ctx context.Context) ([]api.Provider, error) {
	platforms, err := s.FetchPlatforms(ctx)
	if err != nil {
		return nil, err
	}
	var enabled []api.Provider
	for _, platform := range platforms {
		if platform.Enabled {
			enabled = append(enabled, platform.Name)
		}
	}
	return enabled, nil
}

func (s *Service) platform(provider api.Provider) (Platform, error) {
	platform := Platform{
		Name:   provider,
		APIURL: defaultAPIURLs[provider],
	}

	if raw, ok := s.get(provider, "ENABLED"); ok {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return Platform{}, fmt.Errorf("settings: %s enabled flag %q: %w", provider, raw, err)
		}
		platform.Enabled = enabled
	}
	if raw, ok := s.get(provider, "API_URL"); ok && strings.TrimSpace(raw) != "" {
		platform.APIURL = raw
	}
	if raw, ok := s.get(provider, "TOKEN"); ok {
		platform.Token = raw
	}
	if raw, ok := s.get(provider, "MODEL"); ok {
		platform.Model = raw
	}
	if raw, ok := s.get(provider, "SYSTEM_PROMPT"); ok {
		platform.SystemPrompt = raw
	}

	var err error
	if platform.Temperature, err = s.floatSetting(provider, "TEMPERATURE"); err != nil {
		return Platform{}, err
	}
	if platform.TopP, err = s.floatSetting(provider, "TOP_P"); err != nil {
		return Platform{}, err
	}

	if platform.Enabled && platform.Token == "" && provider != api.Ollama {
		slog.Warn("provider enabled without a token", "provider", string(provider))
	}
	return platform, nil
}

func (s *Service) floatSetting(provider api.Provider, key string) (*float64, error) {
	raw, ok := s.get(provider, key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("settings: %s %s %q: %w", provider, strings.ToLower(key), raw, err)
	}
	return &value, nil
}
