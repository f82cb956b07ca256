package gitsync

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// authFor picks the credential source from the remote URL scheme. SSH remotes
// use the running agent; HTTPS remotes rely on anonymous access.
func authFor(url string) (transport.AuthMethod, error) {
	u := strings.ToLower(strings.TrimSpace(url))
	if strings.HasPrefix(u, "git@") || strings.HasPrefix(u, "ssh://") {
		return gitssh.NewSSHAgentAuth("git")
	}
	return nil, nil
}
