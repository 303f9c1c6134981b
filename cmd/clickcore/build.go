package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cuemby/clickcore/pkg/config"
	_ "github.com/cuemby/clickcore/pkg/elements" // self-registers Source, Queue, Discard, Counter, Tee, EtherIPClassifier
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/router"
)

// loadSource drives registry against b, picking a frontend from the
// bytes themselves (archive magic) or, failing that, filename: an
// archive's "config" member is unwrapped and re-dispatched on its own
// name, so a config-inside-an-archive can itself be textual or YAML.
func loadSource(source []byte, filename string, b config.Builder, registry *config.Registry, eh errh.Handler) error {
	if isArchive(source) {
		ar, err := config.ReadArchive(bytes.NewReader(source))
		if err != nil {
			return fmt.Errorf("clickcore: read archive %s: %w", filename, err)
		}
		member, _, ok := ar.Config()
		if !ok {
			return fmt.Errorf("clickcore: archive %s has no config member", filename)
		}
		return loadSource(member.Data, member.Name, b, registry, eh)
	}

	if isYAML(filename) {
		return config.ParseYAML(source, filename, b, registry, eh)
	}
	return config.ParseTextual(string(source), filename, b, registry, eh)
}

func isArchive(source []byte) bool {
	const magic = "!<arch>\n"
	return len(source) >= len(magic) && string(source[:len(magic)]) == magic
}

func isYAML(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

// buildRouter parses source under filename and runs the full Build
// lifecycle, returning a live Router ready to be scheduled.
func buildRouter(source []byte, filename string, eh errh.Handler) (*router.Router, error) {
	r := router.New()
	if err := loadSource(source, filename, r, config.Default, eh); err != nil {
		return nil, err
	}
	if err := r.Build(eh); err != nil {
		return nil, fmt.Errorf("clickcore: build router from %s: %w", filename, err)
	}
	return r, nil
}
