package dag

import (
	"fmt"
	"regexp"
)

var (
	httpsGitHubURL = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	sshGitHubURL   = regexp.MustCompile(`^git@github\.com:([^/]+)/([^/]+?)(?:\.git)?$`)
)

// githubOrg extracts the organisation segment from a GitHub repo URL,
// used to check the "permitted GitHub organisations" rule of §4.2 step 1.
func githubOrg(repoURL string) (string, error) {
	if m := httpsGitHubURL.FindStringSubmatch(repoURL); m != nil {
		return m[1], nil
	}
	if m := sshGitHubURL.FindStringSubmatch(repoURL); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("not a recognised GitHub repo URL: %s", repoURL)
}
