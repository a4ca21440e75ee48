package auth

import (
	"net/http"
	"strings"
)

// TokenHeader carries the caller's GitHub access token on read-only actions.
const TokenHeader = "X-GitHub-Token"

// TokenFromRequest returns the GitHub token sent by the browser client, or "".
func TokenFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(TokenHeader))
}
