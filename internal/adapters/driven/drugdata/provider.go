package drugdata

import (
	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/ratelimit"
	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
)

var _ driven.DrugDataProvider = (*Provider)(nil)

// Provider combines RxNorm and OpenFDA into one driven.DrugDataProvider.
type Provider struct {
	*rxnorm
	*openFDA
}

// NewProvider creates a provider from settings. Each source gets its own
// limiter and breaker.
func NewProvider(p domain.ProviderSettings, limits domain.RateLimitSettings) *Provider {
	rx := newClient(ratelimit.SourceRxNorm, p.RxNormURL, p.Timeout,
		ratelimit.New(ratelimit.SourceRxNorm, ratelimit.ConfigFor(ratelimit.SourceRxNorm, limits)))
	fda := newClient(ratelimit.SourceOpenFDA, p.OpenFDAURL, p.Timeout,
		ratelimit.New(ratelimit.SourceOpenFDA, ratelimit.ConfigFor(ratelimit.SourceOpenFDA, limits)))

	return &Provider{
		rxnorm:  &rxnorm{c: rx},
		openFDA: &openFDA{c: fda, apiKey: p.OpenFDAAPIKey},
	}
}
