package config

import "strings"

// Build-time injected values:
//
//	go build -ldflags "-X designmuse/internal/config.buildAPIURL=https://muse.example.com/api \
//	                   -X designmuse/internal/config.buildMode=production"
var (
	buildAPIURL string
	buildMode   = "development"
)

// localDefault is used in development builds when nothing else is
// configured. Matches the development server's default listen address.
const localDefault = "http://localhost:3001/api"

// BaseURL resolves the store's base URL from, in priority order: an
// explicit override (CLI flag), the MUSE_API_URL environment
// variable, the config file, the build-time injected value, and (in
// development builds only) a localhost default. An empty result
// means no store is configured: all network operations are disabled
// and the CLI surfaces a configuration-missing state.
func BaseURL(override string, file *File) (url, source string) {
	return baseURL(override, file, buildMode)
}

func baseURL(override string, file *File, mode string) (string, string) {
	var fileURL string
	if file != nil {
		fileURL = file.APIURL
	}

	providers := []Provider{
		Static("override", override),
		Env("MUSE_API_URL"),
		Static("config-file", fileURL),
		Static("build", buildAPIURL),
	}
	if mode != "production" {
		providers = append(providers, Static("local-default", localDefault))
	}

	url, source := Resolve(providers...)
	return NormalizeBaseURL(url), source
}

// NormalizeBaseURL trims a trailing slash and ensures the /api suffix
// the server mounts its routes under.
func NormalizeBaseURL(url string) string {
	if url == "" {
		return ""
	}
	url = strings.TrimSuffix(url, "/")
	if !strings.HasSuffix(url, "/api") {
		url += "/api"
	}
	return url
}
