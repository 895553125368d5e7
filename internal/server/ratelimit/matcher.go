package ratelimit

import (
	"strings"
)

// MatchEndpoint returns the endpoint configuration for a request, or nil when the
// default limit applies. An exact path wins; otherwise the longest configured
// prefix ending in "/" wins.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && (method == "GET" || method == "HEAD") {
		return &EndpointConfig{Path: path}
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			if best == nil || len(c.Path) > len(best.Path) {
				best = c
			}
		}
	}
	return best
}
