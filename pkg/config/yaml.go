package config

import (
	"fmt"

	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
	"gopkg.in/yaml.v3"
)

// elementHandle records the eindex assigned to a YAML-declared element
// so later connection entries can resolve it by name.
type elementHandle struct {
	idx element.EIndex
}

// yamlDocument is the structured counterpart of the textual DSL, for
// operators who prefer a declarative document over the line-oriented
// grammar.
type yamlDocument struct {
	Elements []yamlElement `yaml:"elements"`
	Connections []yamlConnection `yaml:"connections"`
	Require  []yamlRequirement `yaml:"require"`
}

type yamlElement struct {
	Name   string   `yaml:"name"`
	Class  string   `yaml:"class"`
	Config []string `yaml:"config"`
	Line   int      `yaml:"-"`
}

type yamlConnection struct {
	From     string `yaml:"from"`
	FromPort int    `yaml:"from_port"`
	To       string `yaml:"to"`
	ToPort   int    `yaml:"to_port"`
	Line     int    `yaml:"-"`
}

type yamlRequirement struct {
	Kind  string `yaml:"kind"`
	Value string `yaml:"value"`
}

// ParseYAML reads a yamlDocument from src, driving b the same way
// ParseTextual does. Every element and connection node's 1-based
// document line, captured via yaml.Node decoding, becomes its Landmark
// so a bad connection in a 200-line YAML topology still points the
// operator at the right line rather than just "filename".
func ParseYAML(src []byte, filename string, b Builder, registry *Registry, eh errh.Handler) error {
	if registry == nil {
		registry = Default
	}

	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return fmt.Errorf("config: parse yaml %s: %w", filename, err)
	}
	if len(root.Content) == 0 {
		return nil
	}

	var doc yamlDocument
	if err := root.Content[0].Decode(&doc); err != nil {
		return fmt.Errorf("config: decode yaml %s: %w", filename, err)
	}
	annotateYAMLLines(root.Content[0], &doc)

	return driveYAML(doc, filename, b, registry, eh)
}

// annotateYAMLLines walks the raw document node to recover each
// element/connection entry's source line, since yaml.v3's Decode into
// a plain struct discards node position information.
func annotateYAMLLines(mapping *yaml.Node, doc *yamlDocument) {
	elementsNode := findSequence(mapping, "elements")
	for i, n := range elementsNode {
		if i < len(doc.Elements) {
			doc.Elements[i].Line = n.Line
		}
	}
	connNode := findSequence(mapping, "connections")
	for i, n := range connNode {
		if i < len(doc.Connections) {
			doc.Connections[i].Line = n.Line
		}
	}
}

func findSequence(mapping *yaml.Node, key string) []*yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1].Content
		}
	}
	return nil
}

func driveYAML(doc yamlDocument, filename string, b Builder, registry *Registry, eh errh.Handler) error {
	byName := make(map[string]elementHandle)

	for _, e := range doc.Elements {
		lm := errh.Landmark{File: filename, Line: e.Line}
		elem, err := registry.New(e.Class)
		if err != nil {
			errh.Errorf(eh, lm, "%s", err)
			continue
		}
		idx, err := b.AddElement(e.Class, e.Name, elem, e.Config, lm)
		if err != nil {
			errh.Errorf(eh, lm, "%s", err)
			continue
		}
		byName[e.Name] = elementHandle{idx: idx}
	}

	for _, c := range doc.Connections {
		lm := errh.Landmark{File: filename, Line: c.Line}
		from, ok := byName[c.From]
		if !ok {
			errh.Errorf(eh, lm, "connection references unknown element %q", c.From)
			continue
		}
		to, ok := byName[c.To]
		if !ok {
			errh.Errorf(eh, lm, "connection references unknown element %q", c.To)
			continue
		}
		if err := b.AddConnection(from.idx, c.FromPort, to.idx, c.ToPort, lm); err != nil {
			errh.Errorf(eh, lm, "%s", err)
		}
	}

	for _, r := range doc.Require {
		b.AddRequirement(r.Kind, r.Value)
	}

	return nil
}
