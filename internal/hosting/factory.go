package hosting

import (
	"fmt"
	"os/exec"
	"strings"
)

// Config holds enrichment-provider configuration. Unlike the ghcli gateway,
// a Provider is optional: if it can't be constructed, callers proceed
// without enrichment.
type Config struct {
	// Provider type override: "github", "gitlab", or "" / "auto"
	// (auto-detect from the git remote).
	Provider string

	// BaseURL for self-hosted instances (e.g. "https://gitlab.company.com").
	// Empty means github.com / gitlab.com.
	BaseURL string

	// TokenEnvVar overrides the default token environment variable.
	// Default: GITHUB_TOKEN for GitHub, GITLAB_TOKEN for GitLab.
	TokenEnvVar string
}

// NewProviderFunc constructs a Provider for a working directory. Registered
// by the github/ and gitlab/ subpackages at init time to avoid this package
// importing either (which would import go-github/client-go into every
// caller of hosting, even ones that never need enrichment).
type NewProviderFunc func(workDir string, cfg Config) (Provider, error)

var providerConstructors = map[ProviderType]NewProviderFunc{}

// RegisterProvider registers a provider constructor. Called from init() in
// the github and gitlab subpackages.
func RegisterProvider(providerType ProviderType, constructor NewProviderFunc) {
	providerConstructors[providerType] = constructor
}

// NewProvider builds an enrichment Provider for workDir. If cfg.Provider is
// empty or "auto", the provider is detected from the origin remote URL.
func NewProvider(workDir string, cfg Config) (Provider, error) {
	providerType, err := resolveProviderType(workDir, cfg)
	if err != nil {
		return nil, err
	}
	constructor, ok := providerConstructors[providerType]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q (registered: %v)", providerType, registeredProviders())
	}
	return constructor(workDir, cfg)
}

func resolveProviderType(workDir string, cfg Config) (ProviderType, error) {
	if cfg.Provider != "" && cfg.Provider != "auto" {
		pt := ProviderType(cfg.Provider)
		if pt != ProviderGitHub && pt != ProviderGitLab {
			return "", fmt.Errorf("unknown provider %q (supported: github, gitlab)", cfg.Provider)
		}
		return pt, nil
	}

	remoteURL, err := getRemoteURL(workDir)
	if err != nil {
		return "", fmt.Errorf("detect provider: %w", err)
	}
	detected := DetectProvider(remoteURL)
	if detected == ProviderUnknown {
		return "", fmt.Errorf("cannot detect hosting provider from remote URL %q", remoteURL)
	}
	return detected, nil
}

func getRemoteURL(workDir string) (string, error) {
	cmd := exec.Command("git", "remote", "get-url", "origin")
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("get remote URL: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func registeredProviders() []ProviderType {
	var providers []ProviderType
	for pt := range providerConstructors {
		providers = append(providers, pt)
	}
	return providers
}
