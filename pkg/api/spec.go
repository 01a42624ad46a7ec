package api

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GraphSpec is the YAML-portable shape of a GraphDefinition. Router
// functions cannot be serialized, so the spec only names the nodes that
// carry one; the functions are bound when the spec is turned into a
// definition.
type GraphSpec struct {
	Name    string     `yaml:"name"`
	Entry   string     `yaml:"entry"`
	Nodes   []string   `yaml:"nodes"`
	Edges   []EdgeSpec `yaml:"edges"`
	Routers []string   `yaml:"routers,omitempty"`
}

// EdgeSpec is one unconditional edge in a GraphSpec.
type EdgeSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// LoadGraphSpec loads a GraphSpec from a YAML file.
func LoadGraphSpec(path string) (*GraphSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseGraphSpec(data)
}

// ParseGraphSpec parses a GraphSpec from YAML bytes.
func ParseGraphSpec(data []byte) (*GraphSpec, error) {
	var spec GraphSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &spec, nil
}

// Definition binds router functions to the spec and returns a validated
// GraphDefinition. Every node listed under routers must have an entry in
// routers; extra entries are rejected so a renamed node cannot silently
// detach its router.
func (s *GraphSpec) Definition(routers map[string]RouterFunc) (GraphDefinition, error) {
	bound := make(map[string]RouterFunc, len(s.Routers))
	for _, name := range s.Routers {
		fn, ok := routers[name]
		if !ok {
			return GraphDefinition{}, fmt.Errorf("graph spec %q: no router bound for node %s", s.Name, name)
		}
		bound[name] = fn
	}
	for name := range routers {
		if _, ok := bound[name]; !ok {
			return GraphDefinition{}, fmt.Errorf("graph spec %q: router bound for %s, which the spec does not declare", s.Name, name)
		}
	}

	def := GraphDefinition{
		Name:    s.Name,
		Entry:   s.Entry,
		Nodes:   append([]string(nil), s.Nodes...),
		Routers: bound,
	}
	for _, e := range s.Edges {
		def.Edges = append(def.Edges, Edge{From: e.From, To: e.To})
	}
	if err := def.Validate(); err != nil {
		return GraphDefinition{}, err
	}
	return def, nil
}

// SpecFromDefinition extracts the serializable shape of a definition.
func SpecFromDefinition(def GraphDefinition) GraphSpec {
	spec := GraphSpec{
		Name:  def.Name,
		Entry: def.Entry,
		Nodes: append([]string(nil), def.Nodes...),
	}
	for _, e := range def.Edges {
		spec.Edges = append(spec.Edges, EdgeSpec{From: e.From, To: e.To})
	}
	for _, n := range def.Nodes {
		if _, ok := def.Routers[n]; ok {
			spec.Routers = append(spec.Routers, n)
		}
	}
	return spec
}

// Marshal renders the spec as YAML.
func (s *GraphSpec) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// ToMermaid exports the graph to Mermaid diagram syntax. Router nodes are
// drawn as hexagons since their successors are chosen at runtime.
func (s *GraphSpec) ToMermaid() string {
	routers := make(map[string]bool, len(s.Routers))
	for _, n := range s.Routers {
		routers[n] = true
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, node := range s.Nodes {
		if routers[node] {
			sb.WriteString(fmt.Sprintf("    %s{{%s}}\n", node, node))
		} else {
			sb.WriteString(fmt.Sprintf("    %s[%s]\n", node, node))
		}
	}
	for _, edge := range s.Edges {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", edge.From, edge.To))
	}
	return sb.String()
}
