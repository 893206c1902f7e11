package drugdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// defaultEventLimit is used when the caller passes a non-positive limit.
	defaultEventLimit = 100

	// openFDAMaxLimit is the API's per-request ceiling.
	openFDAMaxLimit = 1000

	labelLimit = "5"

	// OpenFDA answers "no matches" with a 404.
	emptyEvents = `{"meta":{"results":{"total":0}},"results":[]}`
	emptyLabels = `{"results":[]}`
)

// openFDA wraps the OpenFDA drug endpoints.
type openFDA struct {
	c      *client
	apiKey string
}

// AdverseEvents returns adverse-event reports naming both drugs.
func (o *openFDA) AdverseEvents(ctx context.Context, nameA, nameB string, limit int) (json.RawMessage, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > openFDAMaxLimit {
		limit = openFDAMaxLimit
	}
	search := fmt.Sprintf("patient.drug.medicinalproduct:%s AND patient.drug.medicinalproduct:%s",
		quoteTerm(nameA), quoteTerm(nameB))
	return o.fetch(ctx, "/drug/event.json", search, strconv.Itoa(limit), emptyEvents)
}

// LabelInteractionText returns label records of either drug whose
// drug_interactions section mentions the other.
func (o *openFDA) LabelInteractionText(ctx context.Context, nameA, nameB string) (json.RawMessage, error) {
	search := fmt.Sprintf("(openfda.generic_name:%s AND drug_interactions:%s) OR (openfda.generic_name:%s AND drug_interactions:%s)",
		quoteTerm(nameA), quoteTerm(nameB), quoteTerm(nameB), quoteTerm(nameA))
	return o.fetch(ctx, "/drug/label.json", search, labelLimit, emptyLabels)
}

func (o *openFDA) fetch(ctx context.Context, path, search, limit, empty string) (json.RawMessage, error) {
	raw, err := o.c.get(ctx, path, o.query(search, limit))
	if errors.Is(err, errNotFound) {
		return json.RawMessage(empty), nil
	}
	return raw, err
}

// query builds the query string; spaces in search encode as '+', which
// OpenFDA reads as clause separators.
func (o *openFDA) query(search, limit string) url.Values {
	q := url.Values{"limit": {limit}, "search": {search}}
	if o.apiKey != "" {
		q.Set("api_key", o.apiKey)
	}
	return q
}

// quoteTerm quotes a drug name for an OpenFDA search clause.
func quoteTerm(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `"`, "")
	return `"` + name + `"`
}
