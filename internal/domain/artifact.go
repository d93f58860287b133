package domain

import (
	"fmt"
	"strings"
	"time"
)

// Artifact is the unit of work handed to the deployment pipeline: a
// project name plus the HTML payload to publish. Artifacts are built per
// request and never persisted.
type Artifact struct {
	ProjectName string
	Content     string
	CreatedAt   time.Time
}

// NewArtifact constructs an artifact stamped with the current time.
func NewArtifact(projectName, content string) Artifact {
	return Artifact{
		ProjectName: projectName,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
}

// Slugify normalizes a project name to a URL-safe slug: lowercase,
// [a-z0-9-] only, runs of separators collapsed, edges trimmed. An empty
// result means the name had no usable characters.
func Slugify(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(lowered))
	lastDash := true // suppress leading dashes
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func usageString(used, max int) string {
	return fmt.Sprintf("%d/%d", used, max)
}
