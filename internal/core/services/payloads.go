package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// Provider payloads are validated here, at the core boundary.

type approximatePayload struct {
	ApproximateGroup *struct {
		Candidate []struct {
			RxCUI string `json:"rxcui"`
			Score string `json:"score"`
			Name  string `json:"name"`
		} `json:"candidate"`
	} `json:"approximateGroup"`
}

type approxCandidate struct {
	rxcui string
	name  string
	score float64
}

// parseApproximate returns the best approximate-match candidate.
func parseApproximate(raw json.RawMessage) (approxCandidate, bool, error) {
	var p approximatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return approxCandidate{}, false, malformed("approximate match", err)
	}
	if p.ApproximateGroup == nil {
		return approxCandidate{}, false, malformed("approximate match", fmt.Errorf("missing approximateGroup"))
	}
	for _, c := range p.ApproximateGroup.Candidate {
		if c.RxCUI == "" {
			continue
		}
		score, _ := strconv.ParseFloat(c.Score, 64)
		return approxCandidate{rxcui: c.RxCUI, name: c.Name, score: score}, true, nil
	}
	return approxCandidate{}, false, nil
}

type exactPayload struct {
	IDGroup *struct {
		RxNormID []string `json:"rxnormId"`
	} `json:"idGroup"`
}

// parseExact returns the first concept identifier of an exact lookup.
func parseExact(raw json.RawMessage) (string, bool, error) {
	var p exactPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", false, malformed("exact match", err)
	}
	if p.IDGroup == nil {
		return "", false, malformed("exact match", fmt.Errorf("missing idGroup"))
	}
	for _, id := range p.IDGroup.RxNormID {
		if id != "" {
			return id, true, nil
		}
	}
	return "", false, nil
}

type spellingPayload struct {
	SuggestionGroup *struct {
		SuggestionList *struct {
			Suggestion []string `json:"suggestion"`
		} `json:"suggestionList"`
	} `json:"suggestionGroup"`
}

// parseSpelling returns the top spelling suggestion.
func parseSpelling(raw json.RawMessage) (string, bool, error) {
	var p spellingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", false, malformed("spelling suggestions", err)
	}
	if p.SuggestionGroup == nil {
		return "", false, malformed("spelling suggestions", fmt.Errorf("missing suggestionGroup"))
	}
	if p.SuggestionGroup.SuggestionList == nil {
		return "", false, nil
	}
	for _, s := range p.SuggestionGroup.SuggestionList.Suggestion {
		if strings.TrimSpace(s) != "" {
			return s, true, nil
		}
	}
	return "", false, nil
}

type propertiesPayload struct {
	Properties *struct {
		RxCUI string `json:"rxcui"`
		Name  string `json:"name"`
		TTY   string `json:"tty"`
	} `json:"properties"`
}

type conceptProperties struct {
	name string
	tty  string
}

func parseProperties(raw json.RawMessage) (conceptProperties, error) {
	var p propertiesPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return conceptProperties{}, malformed("properties", err)
	}
	if p.Properties == nil {
		return conceptProperties{}, malformed("properties", fmt.Errorf("missing properties"))
	}
	return conceptProperties{name: p.Properties.Name, tty: p.Properties.TTY}, nil
}

type relatedPayload struct {
	AllRelatedGroup *struct {
		ConceptGroup []struct {
			TTY               string `json:"tty"`
			ConceptProperties []struct {
				Name string `json:"name"`
			} `json:"conceptProperties"`
		} `json:"conceptGroup"`
	} `json:"allRelatedGroup"`
}

type relatedNames struct {
	brands      []string
	ingredients []string
}

// parseRelated extracts brand names (BN) and ingredients (IN, MIN).
func parseRelated(raw json.RawMessage) (relatedNames, error) {
	var p relatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return relatedNames{}, malformed("related names", err)
	}
	if p.AllRelatedGroup == nil {
		return relatedNames{}, malformed("related names", fmt.Errorf("missing allRelatedGroup"))
	}
	var out relatedNames
	for _, g := range p.AllRelatedGroup.ConceptGroup {
		for _, c := range g.ConceptProperties {
			name := domain.DrugKey(c.Name)
			if name == "" {
				continue
			}
			switch g.TTY {
			case "BN":
				out.brands = appendUnique(out.brands, name)
			case "IN", "MIN":
				out.ingredients = appendUnique(out.ingredients, name)
			}
		}
	}
	return out, nil
}

type eventsPayload struct {
	Meta *struct {
		Results struct {
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []struct {
		Serious json.RawMessage `json:"serious"`
	} `json:"results"`
}

type eventCounts struct {
	total   int
	serious int
}

// parseEvents counts adverse-event reports. A report is serious when its
// "serious" flag is 1 (openFDA encodes it as a string or a number).
func parseEvents(raw json.RawMessage) (eventCounts, error) {
	var p eventsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return eventCounts{}, malformed("adverse events", err)
	}
	var c eventCounts
	if p.Meta != nil {
		c.total = p.Meta.Results.Total
	}
	for _, r := range p.Results {
		if strings.Trim(string(r.Serious), `"`) == "1" {
			c.serious++
		}
	}
	if c.total < len(p.Results) {
		c.total = len(p.Results)
	}
	return c, nil
}

type labelPayload struct {
	Results []struct {
		DrugInteractions []string `json:"drug_interactions"`
	} `json:"results"`
}

// parseLabels returns label interaction paragraphs mentioning either drug.
// Results cover both labels, so a paragraph from one drug's label only
// needs to name the other.
func parseLabels(raw json.RawMessage, a, b string) ([]string, error) {
	var p labelPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, malformed("label text", err)
	}
	a, b = domain.DrugKey(a), domain.DrugKey(b)
	var texts []string
	for _, r := range p.Results {
		for _, t := range r.DrugInteractions {
			lower := strings.ToLower(t)
			if strings.Contains(lower, a) || strings.Contains(lower, b) {
				texts = append(texts, t)
			}
		}
	}
	return texts, nil
}

func malformed(what string, err error) error {
	return fmt.Errorf("%w: malformed %s payload: %v", domain.ErrProvider, what, err)
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
