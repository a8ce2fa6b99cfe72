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

// Package utils provides utility functions shared across the server.
package utils

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/asgardeo/stageflow/internal/system/constants"
	"github.com/asgardeo/stageflow/internal/system/log"
)

// WriteJSON writes the given payload as a JSON response with the status code.
func WriteJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set(constants.ContentTypeHeaderName, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.GetLogger().Error("Failed to write JSON response", log.Error(err))
	}
}

// WriteJSONError writes a JSON error response with the given details.
func WriteJSONError(w http.ResponseWriter, code, desc string, statusCode int) {
	log.GetLogger().Debug("Error in HTTP response", log.String("error", code), log.String("description", desc))
	WriteJSON(w, statusCode, map[string]string{
		"error":             code,
		"error_description": desc,
	})
}

// ParseURL parses the given URL string and returns a URL object.
func ParseURL(urlStr string) (*url.URL, error) {
	return url.Parse(urlStr)
}

// IsURLAbsolute reports whether the URL carries a scheme or a host, which makes it leave
// the current origin. Protocol relative URLs such as //evil.example are treated as absolute.
func IsURLAbsolute(urlStr string) bool {
	if strings.HasPrefix(urlStr, "//") || strings.HasPrefix(urlStr, `\\`) {
		return true
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return true
	}
	return parsed.Scheme != "" || parsed.Host != ""
}

// GetURIWithQueryParams appends the given query parameters to the URI.
func GetURIWithQueryParams(uri string, queryParams map[string]string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	for key, value := range queryParams {
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
