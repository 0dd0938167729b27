// -----------------------------------------------------------------------
// Namespace Resolver - maps caller identity to an index partition:
// explicit value, project header, workspace directory, then the default
// -----------------------------------------------------------------------

package namespace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/noeticlabs/websearch/internal/models"
)

// maxLiteralLength is the longest value used verbatim as a namespace;
// anything longer, or containing a path separator, is hashed.
const maxLiteralLength = 64

// Resolver resolves the namespace for one request. The chain is explicit
// request value, project hint (the X-Noetic-Project header or MCP project
// argument), the workspace root, then the shared default partition.
type Resolver struct {
	workspaceRoot string
}

// New creates the resolver. The workspace root comes from the
// WEBSEARCH_WORKSPACE environment variable when unset.
func New(workspaceRoot string) *Resolver {
	if workspaceRoot == "" {
		workspaceRoot = os.Getenv("WEBSEARCH_WORKSPACE")
	}
	return &Resolver{workspaceRoot: workspaceRoot}
}

// Resolve picks the namespace for a request.
func (r *Resolver) Resolve(explicit, projectHint string) string {
	if explicit != "" {
		return Sanitize(explicit)
	}
	if projectHint != "" {
		return Sanitize(projectHint)
	}
	if r.workspaceRoot != "" {
		return Sanitize(r.workspaceRoot)
	}
	return models.DefaultNamespace
}

// Sanitize converts a raw identifier to a safe namespace. Values that look
// like filesystem paths, or are too long for a key segment, become a
// stable 13-character project hash.
func Sanitize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return models.DefaultNamespace
	}
	if strings.ContainsAny(value, "/\\") || len(value) > maxLiteralLength {
		return HashProjectPath(value)
	}
	return value
}

// HashProjectPath derives "proj-" plus 8 hex characters of the SHA-256,
// 13 characters total, stable across sessions for the same path.
func HashProjectPath(path string) string {
	sum := sha256.Sum256([]byte(path))
	return fmt.Sprintf("proj-%s", hex.EncodeToString(sum[:])[:8])
}
