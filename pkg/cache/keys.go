package cache

import "fmt"

// Keyer builds cache keys.
type Keyer interface {
	// DocumentKey identifies a rendered artifact of a graph.
	DocumentKey(graphHash string, opts DocumentKeyOpts) string
	// ExtractKey identifies the graph extracted from a text.
	ExtractKey(textHash string, opts ExtractKeyOpts) string
}

// DocumentKeyOpts holds every option that changes a rendered artifact.
type DocumentKeyOpts struct {
	Format       string `json:"format"`
	Detailed     bool   `json:"detailed"`
	Strict       bool   `json:"strict"`
	Expand       bool   `json:"expand"`
	MinZones     int    `json:"min_zones"`
	MinNodes     int    `json:"min_nodes"`
	MinFlows     int    `json:"min_flows"`
	MinNodesHard int    `json:"min_nodes_hard"`
}

// ExtractKeyOpts holds every option that changes an extraction result.
type ExtractKeyOpts struct {
	Profile     string `json:"profile"`
	DetailLevel string `json:"detail_level"`
	UseLLM      bool   `json:"use_llm"`
	Model       string `json:"model,omitempty"`
}

// DefaultKeyer produces keys of the form "<kind>:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key scheme.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) DocumentKey(graphHash string, opts DocumentKeyOpts) string {
	return hashKey(fmt.Sprintf("doc:%s", opts.Format), graphHash, opts)
}

func (DefaultKeyer) ExtractKey(textHash string, opts ExtractKeyOpts) string {
	return hashKey("extract", textHash, opts)
}

var _ Keyer = DefaultKeyer{}
