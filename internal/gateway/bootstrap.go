package gateway

import (
	"fmt"

	"github.com/nulzo/edge-gateway/internal/cli"
	"github.com/nulzo/edge-gateway/internal/provider"
	"go.uber.org/zap"
)

// ReportProviders logs which registered providers have a credential and
// returns how many do. Missing credentials are not fatal; requests routed to
// such a provider fail with a configuration error.
func ReportProviders(registry *provider.Registry, creds provider.Credentials, log *zap.Logger) int {
	configured := 0

	for _, d := range registry.All() {
		if _, ok := creds.Lookup(d.Name); !ok {
			log.Warn(fmt.Sprintf("%s %s %s",
				cli.CrossMark(),
				cli.Style(fmt.Sprintf("%-10s", d.Name), cli.Bold),
				cli.Style(fmt.Sprintf("no credential (set %s)", d.CredentialEnv), cli.Yellow),
			))
			continue
		}

		log.Info(fmt.Sprintf("%s %s %s",
			cli.CheckMark(),
			cli.Style(fmt.Sprintf("%-10s", d.Name), cli.Bold),
			cli.Style(d.BaseURL, cli.Cyan),
		), zap.Int("static_models", len(d.StaticModelCatalog)))
		configured++
	}

	if configured == 0 {
		log.Warn("No provider credentials configured. Only model listing will work.")
	}

	return configured
}
