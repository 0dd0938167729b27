package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/noeticlabs/websearch/internal/services/namespace"
)

// validate applies the struct tags on request models after decoding.
var validate = validator.New()

// ProjectHeader carries the caller's project identity; it feeds namespace
// resolution when the request body names no namespace.
const ProjectHeader = "X-Noetic-Project"

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields so
// a misspelled option fails loudly instead of silently defaulting, then
// applies the model's validate tags.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// ResolveNamespace picks the index partition for a request: explicit body
// value, then the namespace query parameter, then the project header, then
// the resolver's fallback chain.
func ResolveNamespace(r *http.Request, resolver *namespace.Resolver, explicit string) string {
	if explicit == "" {
		explicit = r.URL.Query().Get("namespace")
	}
	return resolver.Resolve(explicit, r.Header.Get(ProjectHeader))
}
