package links

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildTokenURL appends path to the public base URL and sets ?token=value.
// The token rides only in the query string of delivered links; it must never
// be written to logs.
func BuildTokenURL(baseURL, path, token string) (string, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return "", fmt.Errorf("public base url is not configured")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid public base url %q", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
