// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/autobrr/audiobrr/internal/api/ctxkeys"
)

// UserHeader carries the caller identity from a reverse proxy. There is no
// authentication layer; the proxy in front is trusted to set it.
const UserHeader = "X-Audiobrr-User"

// DefaultUser is assumed when the header is absent.
const DefaultUser = "admin"

// Identity resolves the request user and stores it on the context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(UserHeader))
		if user == "" {
			user = DefaultUser
		}
		ctx := context.WithValue(r.Context(), ctxkeys.Username, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFrom returns the identity stored by Identity, or DefaultUser.
func UserFrom(ctx context.Context) string {
	if user, ok := ctx.Value(ctxkeys.Username).(string); ok && user != "" {
		return user
	}
	return DefaultUser
}
