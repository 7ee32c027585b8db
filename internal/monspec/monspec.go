// Package monspec parses service-topology specification documents and
// extracts the tag rules that scope monitoring events to an environment.
//
// A document is a JSON object of named service entries. Each entry declares
// the monitored entity type it maps to and, per environment, the tags that
// identify the service's entities in that environment:
//
//	{
//	  "SampleJsonService": {
//	    "etype": "SERVICE",
//	    "environments": {
//	      "Staging":    {"tags": [{"context": "CONTEXTLESS", "key": "DeploymentGroup", "value": "Staging"}]},
//	      "Production": {"tags": [{"context": "CONTEXTLESS", "key": "DeploymentGroup", "value": "Production"}]}
//	    }
//	  }
//	}
package monspec

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/event"
)

// Document is a parsed service-topology specification.
type Document map[string]Entry

// Entry is one named service in the specification.
type Entry struct {
	EntityType   string                 `json:"etype"`
	DisplayName  string                 `json:"name"`
	Environments map[string]Environment `json:"environments"`
}

// Environment holds the tags identifying a service's entities in one
// deployment environment.
type Environment struct {
	Tags []event.Tag `json:"tags"`
}

// Parse decodes a specification document.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse service specification: %w", err)
	}
	return doc, nil
}

// TagRulesForEnvironment collects one tag rule per service entry that has
// tags for the named environment. Entries without an entity type or without
// tags for the environment contribute nothing. Results are ordered by service
// name so repeated extraction yields identical rules.
func (d Document) TagRulesForEnvironment(environment string) []event.TagRule {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)

	var rules []event.TagRule
	for _, name := range names {
		entry := d[name]
		if entry.EntityType == "" {
			continue
		}
		env, ok := entry.Environments[environment]
		if !ok || len(env.Tags) == 0 {
			continue
		}
		rules = append(rules, event.TagRule{
			MeTypes: []string{entry.EntityType},
			Tags:    env.Tags,
		})
	}
	return rules
}
