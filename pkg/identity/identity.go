// Package identity carries the authenticated caller through the request path.
// Services receive an Identity value explicitly; nothing reads it from globals.
package identity

import "strings"

type Identity struct {
	UserID     string `json:"user_id"`
	IsReviewer bool   `json:"is_reviewer"`
}

func (i Identity) Authenticated() bool {
	return strings.TrimSpace(i.UserID) != ""
}

// Anonymous is the zero identity used when no credentials were presented.
var Anonymous = Identity{}
