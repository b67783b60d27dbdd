package upstream

import (
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

const (
	CapabilityWebSearch     = "web_search"
	CapabilityXSearch       = "x_search"
	CapabilityCodeExecution = "code_execution"
)

// DefaultCapabilities is the tool set enabled for tool-augmented sessions
// unless configured otherwise.
var DefaultCapabilities = []string{
	CapabilityWebSearch,
	CapabilityXSearch,
	CapabilityCodeExecution,
}

type WebSearchArgs struct {
	Query          string   `json:"query" jsonschema:"description=The search query"`
	AllowedDomains []string `json:"allowed_domains,omitempty" jsonschema:"description=Restrict results to these domains"`
}

type XSearchArgs struct {
	Query    string   `json:"query" jsonschema:"description=The search query for posts on X"`
	Handles  []string `json:"handles,omitempty" jsonschema:"description=Only include posts from these handles"`
	FromDate string   `json:"from_date,omitempty" jsonschema:"description=ISO 8601 start date"`
	ToDate   string   `json:"to_date,omitempty" jsonschema:"description=ISO 8601 end date"`
}

type CodeExecutionArgs struct {
	Code     string `json:"code" jsonschema:"description=Source code to run"`
	Language string `json:"language,omitempty" jsonschema:"description=Language of the code,default=python"`
}

// Capability is a server-side tool the provider may invoke during a session.
type Capability struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

var capabilities = map[string]Capability{
	CapabilityWebSearch: {
		Name:        CapabilityWebSearch,
		Description: "Search the web for up to date information.",
		Parameters:  reflectArgs(WebSearchArgs{}),
	},
	CapabilityXSearch: {
		Name:        CapabilityXSearch,
		Description: "Search posts on X.",
		Parameters:  reflectArgs(XSearchArgs{}),
	},
	CapabilityCodeExecution: {
		Name:        CapabilityCodeExecution,
		Description: "Execute code in a sandbox and return its output.",
		Parameters:  reflectArgs(CodeExecutionArgs{}),
	},
}

func reflectArgs(v interface{}) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(v)
	schema.Version = ""
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema
}

// LookupCapability returns the catalog entry for name.
func LookupCapability(name string) (Capability, bool) {
	c, ok := capabilities[name]
	return c, ok
}

// ResolveCapabilities maps names to catalog entries, keeping their order.
func ResolveCapabilities(names []string) ([]Capability, error) {
	ret := make([]Capability, 0, len(names))
	for _, name := range names {
		c, ok := capabilities[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownCapability, "%q", name)
		}
		ret = append(ret, c)
	}
	return ret, nil
}

// CapabilityNames lists every known capability, sorted.
func CapabilityNames() []string {
	ret := make([]string, 0, len(capabilities))
	for name := range capabilities {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}
