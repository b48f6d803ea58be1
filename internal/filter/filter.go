package filter

import (
	"strings"

	"github.com/yourorg/docbind/internal/config"
	"github.com/yourorg/docbind/pkg/types"
)

// FilterConfig is an alias of config.FilterConfig.
type FilterConfig = config.FilterConfig

// Apply drops ignored sections and endpoints from the tree. The input is
// left untouched; sections that lose every endpoint are kept with their
// description.
func Apply(sections []types.Section, cfg FilterConfig) []types.Section {
	ignoredSections := toLowerSet(cfg.IgnoreSections)
	ignoredEndpoints := toLowerSet(cfg.IgnoreEndpoints)
	if len(ignoredSections) == 0 && len(ignoredEndpoints) == 0 && len(cfg.IgnorePaths) == 0 {
		return sections
	}

	out := make([]types.Section, 0, len(sections))
	for _, sec := range sections {
		if _, ok := ignoredSections[strings.ToLower(strings.TrimSpace(sec.Name))]; ok {
			continue
		}
		kept := sec
		kept.Endpoints = make([]types.Endpoint, 0, len(sec.Endpoints))
		for _, ep := range sec.Endpoints {
			if _, ok := ignoredEndpoints[strings.ToLower(strings.TrimSpace(ep.Name))]; ok {
				continue
			}
			if hasIgnoredPath(ep.Path, cfg.IgnorePaths) {
				continue
			}
			kept.Endpoints = append(kept.Endpoints, ep)
		}
		out = append(out, kept)
	}
	return out
}

func hasIgnoredPath(p string, prefixes []string) bool {
	if p == "" {
		return false
	}
	for _, pref := range prefixes {
		pref = strings.TrimSpace(pref)
		if pref == "" {
			continue
		}
		if strings.HasPrefix(p, pref) {
			return true
		}
	}
	return false
}

func toLowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, v := range items {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}
