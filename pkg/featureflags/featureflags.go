package featureflags

import (
	"context"

	"taskora/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	ProofSubmissionsEnabled = "proof_submissions_enabled"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

type FeatureFlag interface {
	// Enabled reports whether the flag is on for the identifier. Without a
	// Flagsmith client, or when the lookup fails, every flag is on.
	Enabled(ctx context.Context, identifier string, name string) bool
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

// Static returns a FeatureFlag that always answers with the given map, defaulting to on.
func Static(flags map[string]bool) FeatureFlag {
	return staticFlags(flags)
}

type staticFlags map[string]bool

func (s staticFlags) Enabled(_ context.Context, _ string, name string) bool {
	if v, ok := s[name]; ok {
		return v
	}
	return true
}

func (s *featureflag) Enabled(ctx context.Context, identifier string, name string) bool {
	if s.client == nil {
		return true
	}

	flags, err := s.client.GetIdentityFlags(identifier, nil)
	if err != nil {
		zap.L().Warn("feature flag lookup failed, defaulting to enabled", zap.String("flag", name), zap.Error(err))
		return true
	}

	enabled, err := flags.IsFeatureEnabled(name)
	if err != nil {
		zap.L().Debug("feature flag not defined, defaulting to enabled", zap.String("flag", name), zap.Error(err))
		return true
	}
	return enabled
}
