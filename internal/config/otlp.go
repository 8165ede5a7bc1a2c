package config

import (
	"fmt"
	"net/url"
	"strings"
)

// OTLP is the parsed telemetry export target. The zero value exports nothing.
type OTLP struct {
	Host     string // host:port
	BasePath string // prefix for /v1/traces and /v1/metrics, no trailing slash
	Insecure bool
	Headers  map[string]string
}

// Enabled reports whether an export endpoint is configured.
func (o OTLP) Enabled() bool {
	return o.Host != ""
}

// parseOTLP resolves OTELEndpoint and OTELHeaders. A malformed endpoint is a
// load error so serve fails before it starts polling.
func (c *Config) parseOTLP() error {
	c.OTLP = OTLP{Headers: parseOTLPHeaders(c.OTELHeaders)}
	if c.OTELEndpoint == "" {
		return nil
	}
	u, err := url.Parse(c.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("invalid otel endpoint %q: %w", c.OTELEndpoint, err)
	}
	switch u.Scheme {
	case "http":
		c.OTLP.Insecure = true
	case "https":
	default:
		return fmt.Errorf("invalid otel endpoint %q: scheme must be http or https", c.OTELEndpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid otel endpoint %q: missing host", c.OTELEndpoint)
	}
	c.OTLP.Host = u.Host
	c.OTLP.BasePath = strings.TrimRight(u.Path, "/")
	return nil
}

// parseOTLPHeaders reads the OTEL_EXPORTER_OTLP_HEADERS format:
// "key=value,key2=value2". Pairs without a key are skipped.
func parseOTLPHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(val)
	}
	return headers
}
