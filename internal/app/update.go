package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fatih/color"
	version "github.com/mcuadros/go-version"
	"github.com/pkg/errors"

	"github.com/stepsync-dev/stepsync/internal/httpx"
)

// Version is the running release, set here and tagged on releases.
const Version = "1.2.0"

const latestReleaseURL = "https://api.github.com/repos/stepsync-dev/stepsync/releases/latest"

// checkUpdate compares the running version against the latest published
// release tag.
func checkUpdate(ctx context.Context, client httpx.Doer, stdout io.Writer, noColor bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, latestReleaseURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "fetch latest release")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("release lookup returned HTTP %d", resp.StatusCode)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&release); err != nil {
		return errors.Wrap(err, "decode release")
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	if latest == "" {
		return errors.New("release has no tag name")
	}

	if version.CompareSimple(latest, Version) > 0 {
		if noColor {
			fmt.Fprintf(stdout, "[!] A newer release is available: %s (running %s)\n", latest, Version)
		} else {
			fmt.Fprintf(color.Output, "[%s] A newer release is available: %s (running %s)\n",
				color.HiYellowString("!"), color.HiGreenString(latest), Version)
		}
		return nil
	}

	fmt.Fprintf(stdout, "stepsync %s is up to date.\n", Version)
	return nil
}
