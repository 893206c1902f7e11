package drugdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// approximateMaxEntries limits approximate-match candidates.
const approximateMaxEntries = "4"

// rxnorm wraps the RxNav REST API.
type rxnorm struct {
	c *client
}

// NormalizeApproximate runs approximateTerm.
func (r *rxnorm) NormalizeApproximate(ctx context.Context, name string) (json.RawMessage, error) {
	q := url.Values{"term": {name}, "maxEntries": {approximateMaxEntries}}
	return r.fetch(ctx, "/approximateTerm.json", q, `{"approximateGroup":{"candidate":[]}}`)
}

// NormalizeExact looks up concept identifiers by exact name.
func (r *rxnorm) NormalizeExact(ctx context.Context, name string) (json.RawMessage, error) {
	q := url.Values{"name": {name}, "search": {"0"}}
	return r.fetch(ctx, "/rxcui.json", q, `{"idGroup":{"rxnormId":[]}}`)
}

// SpellingSuggestions returns spelling suggestions for a name.
func (r *rxnorm) SpellingSuggestions(ctx context.Context, name string) (json.RawMessage, error) {
	q := url.Values{"name": {name}}
	return r.fetch(ctx, "/spellingsuggestions.json", q, `{"suggestionGroup":{"suggestionList":null}}`)
}

// Properties returns concept properties for an identifier.
func (r *rxnorm) Properties(ctx context.Context, id string) (json.RawMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty concept id", domain.ErrProvider)
	}
	return r.fetch(ctx, "/rxcui/"+url.PathEscape(id)+"/properties.json", nil, "")
}

// RelatedNames returns related concepts (brand names, ingredients).
func (r *rxnorm) RelatedNames(ctx context.Context, id string) (json.RawMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty concept id", domain.ErrProvider)
	}
	return r.fetch(ctx, "/rxcui/"+url.PathEscape(id)+"/allrelated.json", nil,
		`{"allRelatedGroup":{"conceptGroup":[]}}`)
}

// fetch substitutes empty for a 404 when given; otherwise a 404 is a
// provider error.
func (r *rxnorm) fetch(ctx context.Context, path string, q url.Values, empty string) (json.RawMessage, error) {
	raw, err := r.c.get(ctx, path, q)
	if errors.Is(err, errNotFound) {
		if empty == "" {
			return nil, fmt.Errorf("%w: rxnorm %s not found", domain.ErrProvider, path)
		}
		return json.RawMessage(empty), nil
	}
	return raw, err
}
