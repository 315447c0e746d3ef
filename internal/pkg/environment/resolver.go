// internal/pkg/environment/resolver.go
package environment

import (
	"net"
	"strings"
)

type Mode string

const (
	ModeLive Mode = "live"
	ModeTest Mode = "test"
)

// KeySet is one environment's payment processor credentials.
type KeySet struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
}

// Credentials is the key set selected for one transaction. Empty fields mean
// the key is not provisioned; callers treat that as a configuration error.
type Credentials struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	IsLive         bool
}

func (c Credentials) Mode() Mode {
	if c.IsLive {
		return ModeLive
	}
	return ModeTest
}

// Resolver picks live or test credentials. It performs no I/O.
type Resolver struct {
	productionHost string
	live           KeySet
	test           KeySet
}

func NewResolver(productionHost string, live, test KeySet) *Resolver {
	return &Resolver{
		productionHost: normalizeHost(productionHost),
		live:           live,
		test:           test,
	}
}

// IsProductionHost reports whether hostname is exactly the production domain.
// Case, a port suffix and a trailing dot are ignored; subdomains and lookalike
// suffixes are not production.
func (r *Resolver) IsProductionHost(hostname string) bool {
	host := normalizeHost(hostname)
	return host != "" && r.productionHost != "" && host == r.productionHost
}

// Resolve selects the credential set for a request hostname. An empty
// hostname (server-side and cron contexts) resolves to test mode.
func (r *Resolver) Resolve(hostname string) Credentials {
	if r.IsProductionHost(hostname) {
		return Credentials{
			SecretKey:      r.live.SecretKey,
			PublishableKey: r.live.PublishableKey,
			WebhookSecret:  r.live.WebhookSecret,
			IsLive:         true,
		}
	}
	return Credentials{
		SecretKey:      firstSet(r.test.SecretKey, r.live.SecretKey),
		PublishableKey: firstSet(r.test.PublishableKey, r.live.PublishableKey),
		WebhookSecret:  firstSet(r.test.WebhookSecret, r.live.WebhookSecret),
		IsLive:         false,
	}
}

// ForDeployment selects credentials statically, for server-to-server traffic
// such as webhooks where the Host header says nothing about the environment.
func (r *Resolver) ForDeployment(production bool) Credentials {
	if production {
		return r.Resolve(r.productionHost)
	}
	return r.Resolve("")
}

func normalizeHost(hostname string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
