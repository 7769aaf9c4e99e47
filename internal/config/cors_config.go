package config

import (
	"net/url"
	"sort"
	"strings"
)

type Cors struct {
	AllowedOriginList string `koanf:"allowed_origins"`
}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	return strings.Join(origins, ", ")
}

// allowedOrigins parses the configured list. With nothing configured only the
// frontend's own origin is allowed.
func (c Cors) allowedOrigins(frontendURL string) AllowedOrigins {
	origins := AllowedOrigins{}
	for _, o := range splitList(c.AllowedOriginList) {
		origins[strings.TrimRight(o, "/")] = nullValue{}
	}
	if len(origins) > 0 {
		return origins
	}
	if u, err := url.Parse(frontendURL); err == nil && u.Scheme != "" && u.Host != "" {
		origins[u.Scheme+"://"+u.Host] = nullValue{}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, OPTIONS"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization"
}

// splitList splits a comma or whitespace separated list, dropping empty entries.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
