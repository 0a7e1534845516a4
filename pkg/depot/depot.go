// Package depot fetches package archives from a remote depot over HTTP.
package depot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/habitat-sh/core/pkg/ident"
	"github.com/habitat-sh/core/pkg/target"
)

// PackageNotFound is returned when the depot has no matching artifact.
type PackageNotFound struct {
	Ident ident.PackageIdent
}

func (e PackageNotFound) Error() string {
	return fmt.Sprintf("the depot has no package for %s", e.Ident)
}

var _ error = (*PackageNotFound)(nil)

// Client talks to a single depot.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the depot at baseURL.
func New(baseURL string) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "%s is not a valid depot URL", baseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, eris.Errorf("%s is not a valid depot URL", baseURL)
	}

	return &Client{
		baseURL: parsed.String(),
		http: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}, nil
}

// FetchArchive downloads the artifact for the given fully qualified
// ident into destDir and returns the path to the downloaded file. When
// the server sends an X-Checksum header, the download is verified
// against it.
func (c *Client) FetchArchive(ctx context.Context, pkg ident.PackageIdent, tgt target.Target, destDir string) (string, error) {
	if !pkg.FullyQualified() {
		return "", ident.NotFullyQualified{Ident: pkg}
	}

	endpoint := fmt.Sprintf("%s/pkgs/%s/%s/%s/%s/download?target=%s",
		c.baseURL, pkg.Origin, pkg.Name, pkg.Version, pkg.Release, url.QueryEscape(string(tgt)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", eris.Wrap(err, "failed to build the download request")
	}

	log.Debug().Msgf("Fetching %s from %s", pkg, endpoint)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "failed to download %s", pkg)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", PackageNotFound{Ident: pkg}
	case resp.StatusCode != http.StatusOK:
		return "", eris.Errorf("the depot answered %s for %s", resp.Status, pkg)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "failed to create %s", destDir)
	}

	archiveName, err := pkg.ArchiveName(string(tgt))
	if err != nil {
		return "", err
	}

	dest := filepath.Join(destDir, archiveName)
	hdl, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "failed to create %s", dest)
	}

	bar := progressbar.DefaultBytes(resp.ContentLength, "Downloading")
	hasher := sha256.New()

	_, err = io.Copy(io.MultiWriter(hdl, hasher, bar), resp.Body)
	bar.Close()
	if closeErr := hdl.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return "", eris.Wrapf(err, "failed to download %s", pkg)
	}

	if expected := resp.Header.Get("X-Checksum"); expected != "" {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if actual != expected {
			os.Remove(dest)
			return "", eris.Errorf("checksum mismatch for %s: the depot announced %s but the download hashed to %s",
				pkg, expected, actual)
		}
	}

	log.Info().Msgf("Downloaded %s to %s", pkg, dest)
	return dest, nil
}
