// internal/gitinfo/gitinfo.go
// Package gitinfo reads the local git identity used to attribute decisions
// and specifications.
package gitinfo

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

var scpLike = regexp.MustCompile(`^[^@]+@[^:]+:(.+)$`)

// Info holds git configuration info
type Info struct {
	AuthorName  string
	AuthorEmail string
	Repo        string
}

// Get extracts git info from the current directory.
// Returns partial info if some git commands fail (e.g., not in a git repo).
func Get() *Info {
	return &Info{
		AuthorName:  gitConfig("user.name"),
		AuthorEmail: gitConfig("user.email"),
		Repo:        NormalizeRemoteURL(gitConfig("--get", "remote.origin.url")),
	}
}

func gitConfig(args ...string) string {
	out, err := exec.Command("git", append([]string{"config"}, args...)...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Author formats the identity as "Name <email>", or whichever half is known
func (i *Info) Author() string {
	if i == nil {
		return ""
	}
	return FormatAuthor(i.AuthorName, i.AuthorEmail)
}

// FormatAuthor joins a name and email the way git prints them
func FormatAuthor(name, email string) string {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	switch {
	case name != "" && email != "":
		return name + " <" + email + ">"
	case name != "":
		return name
	case email != "":
		return "<" + email + ">"
	}
	return ""
}

// GetProjectID returns a unique identifier for the current project.
// Priority:
// 1. Git remote origin → normalized to "org/repo"
// 2. Working directory absolute path (for non-git projects)
func GetProjectID() string {
	if repo := NormalizeRemoteURL(gitConfig("--get", "remote.origin.url")); repo != "" {
		return repo
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Clean(wd)
	}
	return "unknown"
}

// NormalizeRemoteURL converts various git remote URL formats to "org/repo"
func NormalizeRemoteURL(url string) string {
	url = strings.TrimSuffix(strings.TrimSpace(url), ".git")

	// git@github.com:org/repo
	if m := scpLike.FindStringSubmatch(url); m != nil && !strings.Contains(url, "://") {
		return m[1]
	}

	for _, scheme := range []string{"ssh://", "https://", "http://", "git://"} {
		if !strings.HasPrefix(url, scheme) {
			continue
		}
		url = strings.TrimPrefix(url, scheme)
		// host, with any user:pass@ in front of it
		if idx := strings.Index(url, "/"); idx != -1 {
			url = url[idx+1:]
		}
		return url
	}
	return url
}
