package config

import "strings"

type Cors struct{}

var _ CorsConfig = Cors{}

func (Cors) GetAllowedOrigins() []string {
	origins := GetEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	var out []string
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func (Cors) GetAllowedMethods() []string {
	return []string{"GET", "POST", "PUT", "PATCH", "DELETE"}
}

func (Cors) GetAllowedHeaders() []string {
	return []string{"Content-Type", "Authorization"}
}
