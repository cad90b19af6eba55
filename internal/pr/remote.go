package pr

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	httpsRemoteRegex = regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	sshRemoteRegex   = regexp.MustCompile(`^(?:ssh://)?git@[^:/]+[:/]([^/]+)/([^/]+?)(?:\.git)?/?$`)
)

// ParseRemoteURL extracts owner and repository name from a git remote
// URL in either HTTPS or SSH form.
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return "", "", fmt.Errorf("empty remote URL")
	}

	for _, re := range []*regexp.Regexp{httpsRemoteRegex, sshRemoteRegex} {
		if m := re.FindStringSubmatch(remote); m != nil {
			return m[1], m[2], nil
		}
	}
	return "", "", fmt.Errorf("unrecognized remote URL: %s", remote)
}
