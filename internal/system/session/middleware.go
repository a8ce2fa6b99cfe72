/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/asgardeo/stageflow/internal/system/config"
	"github.com/asgardeo/stageflow/internal/system/log"
	redisprovider "github.com/asgardeo/stageflow/internal/system/redis"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

type contextKey struct{}

// WithSessionID returns a copy of ctx carrying the session identifier.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, contextKey{}, sessionID)
}

// IDFromContext returns the session identifier carried by ctx.
func IDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// Middleware resolves the session cookie of the request, issuing a new session when the cookie is
// absent or malformed, and exposes the identifier through the request context.
func Middleware(cfg config.SessionConfig, next http.Handler) http.Handler {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if cookie, err := r.Cookie(cookieName); err == nil && ValidateSessionID(cookie.Value) == nil {
			sessionID = cookie.Value
		}

		if sessionID == "" {
			token, err := utils.GenerateSecureToken(32)
			if err != nil {
				log.GetLogger().Error("Failed to generate session identifier", log.Error(err))
				utils.WriteJSONError(w, "server_error", "Failed to initialize the session",
					http.StatusInternalServerError)
				return
			}
			sessionID = token
			http.SetCookie(w, &http.Cookie{
				Name:     cookieName,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
	})
}

// NewStoreFromConfig creates the session store selected by the configuration.
func NewStoreFromConfig(cfg config.SessionConfig, serverHome string) (StoreInterface, error) {
	ttl := time.Duration(cfg.TTL) * time.Second

	switch cfg.Type {
	case "", StoreTypeMemory:
		return NewMemoryStore(ttl), nil
	case StoreTypeRedis:
		provider := redisprovider.GetRedisProvider()
		client, err := provider.GetClient()
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, provider.KeyPrefix(), ttl), nil
	case StoreTypeDisk:
		dir := cfg.Directory
		if dir == "" {
			dir = "repository/sessions"
		}
		if serverHome != "" && dir[0] != '/' {
			dir = serverHome + "/" + dir
		}
		return NewDiskStore(dir, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Type)
	}
}
