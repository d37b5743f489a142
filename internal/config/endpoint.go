// Package config holds the endpoint configuration shared by the CLI and the
// serve mode.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// DefaultServerURL is used when neither --url nor REPOCTX_SERVER_URL is set.
const DefaultServerURL = "http://localhost:8080/mcp"

// Endpoint identifies the MCP server and the repository it is asked about.
// It is built once at startup and never modified afterwards.
type Endpoint struct {
	ServerURL   string
	Workspace   string
	Repository  string
	AccessToken string
}

// HasCredential reports whether an access token is configured.
func (e Endpoint) HasCredential() bool {
	return e.AccessToken != ""
}

// Validate checks the fields the core relies on.
func (e Endpoint) Validate() error {
	if e.ServerURL == "" {
		return fmt.Errorf("server URL is required (--url or REPOCTX_SERVER_URL)")
	}
	u, err := url.Parse(e.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", e.ServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid server URL %q: scheme must be http or https", e.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid server URL %q: missing host", e.ServerURL)
	}
	if strings.TrimSpace(e.Workspace) == "" {
		return fmt.Errorf("workspace is required (--workspace or REPOCTX_WORKSPACE)")
	}
	if strings.TrimSpace(e.Repository) == "" {
		return fmt.Errorf("repository is required (--repository or REPOCTX_REPOSITORY)")
	}
	return nil
}

// FromEnv fills empty fields of e from REPOCTX_* environment variables and
// defaults the server URL.
func (e Endpoint) FromEnv() Endpoint {
	e.ServerURL = firstNonEmpty(e.ServerURL, os.Getenv("REPOCTX_SERVER_URL"), DefaultServerURL)
	e.Workspace = firstNonEmpty(e.Workspace, os.Getenv("REPOCTX_WORKSPACE"))
	e.Repository = firstNonEmpty(e.Repository, os.Getenv("REPOCTX_REPOSITORY"))
	return e
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
