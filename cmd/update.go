package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/nulzo/edge-gateway/internal/cli"
	"github.com/nulzo/edge-gateway/internal/httpclient"
	"go.uber.org/zap"
)

// AppVersion is overridden at build time with -ldflags "-X ...cmd.AppVersion=vX.Y.Z".
var AppVersion = "v0.0.0"

// ReleaseURL points at the latest published release.
var ReleaseURL = "https://api.github.com/repos/nulzo/edge-gateway/releases/latest"

type GitHubRelease struct {
	TagName string `json:"tag_name"`
}

// CheckForUpdates compares AppVersion against the latest release and logs a
// warning when it is behind. It reports whether a newer release exists; any
// failure along the way is treated as "no update".
func CheckForUpdates(ctx context.Context, client httpclient.HTTPClient, logger *zap.Logger) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var release GitHubRelease
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if err := httpclient.SendRequest(ctx, client, http.MethodGet, ReleaseURL, headers, nil, &release); err != nil {
		logger.Debug("Update check failed", zap.Error(err))
		return false
	}

	current, err := version.NewVersion(AppVersion)
	if err != nil {
		return false
	}

	latest, err := version.NewVersion(release.TagName)
	if err != nil {
		return false
	}

	if current.LessThan(latest) {
		logger.Warn(fmt.Sprintf("%s You are running an outdated version (%s); the latest is %s",
			cli.Style("!", cli.Yellow),
			AppVersion,
			cli.Style(release.TagName, cli.Green),
		))
		return true
	}
	return false
}
