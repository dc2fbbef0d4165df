package gateway

import "strings"

// Credentials holds the places a client may put its access token during the
// handshake.
type Credentials struct {
	Header string         // Authorization header
	Query  string         // token query parameter
	Auth   map[string]any // in-band auth payload
}

// Token picks the bearer header first, then the query parameter, then the
// in-band auth payload.
func (c Credentials) Token() string {
	if h := strings.TrimSpace(c.Header); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if c.Query != "" {
		return c.Query
	}
	if c.Auth != nil {
		if token, ok := c.Auth["token"].(string); ok {
			return strings.TrimPrefix(token, "Bearer ")
		}
	}
	return ""
}
