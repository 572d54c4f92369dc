package config

import (
	"sort"
	"strings"
)

const allowedOriginsVar = "ALLOWED_ORIGINS"

type Cors struct {
	Origins []string `yaml:"allowed_origins"`
}

var _ CorsConfig = Cors{}

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

func defaultCors() Cors {
	return Cors{Origins: []string{"https://findaly.co"}}
}

func (c *Cors) applyEnv(lookup func(string) (string, bool)) {
	v, ok := lookup(allowedOriginsVar)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	c.Origins = nil
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.Origins = append(c.Origins, o)
		}
	}
}

func (c Cors) GetAllowedOrigins() AllowedOrigins {
	origins := make(AllowedOrigins, len(c.Origins))
	for _, o := range c.Origins {
		origins[o] = nullValue{}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, OPTIONS"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type"
}
