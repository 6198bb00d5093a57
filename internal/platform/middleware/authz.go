// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/apperr"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/respond"
)

// RequireAPIKey guards the admin surface behind a shared-secret header.
//
// # Flow
//  1. If no token is configured, the deployment is open (trusted network)
//     and every request proceeds.
//  2. Otherwise the X-API-Key header must match the configured token.
//     Comparison is constant-time to avoid timing side channels.
//
// # Usage
//
// Mounted on the /api/v1 route group only; health probes stay open for
// container orchestration.
func RequireAPIKey(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// 1. Open deployment: no token configured
			if token == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// 2. Constant-time comparison of the presented key
			presented := request.Header.Get(constants.HeaderAPIKey)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				respond.Error(writer, request, apperr.Unauthorized("Invalid or missing API key"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
