package main

import (
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/mikkurogue/jj-ryu/internal/forge"
)

// detectForge resolves which forge adapter to use: an explicit
// --forge flag wins, then the configured PreferredForge, then the
// origin remote's host, matched against GH_HOST/GITLAB_HOST and the
// well-known github.com/gitlab.com hosts. Mirrors the teacher's
// resolveGitHubRepo host-matching, generalized to two forges.
// detectedFromHost reports whether name came from the origin-remote
// probe rather than an explicit flag or a prior config, so the caller
// can decide whether to cache it.
func detectForge(repoRoot, explicit, preferred string) (svc forge.Service, name string, detectedFromHost bool, err error) {
	name = strings.ToLower(strings.TrimSpace(explicit))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(preferred))
	}
	if name == "" {
		host, hostErr := originRemoteHost(repoRoot)
		if hostErr != nil {
			return nil, "", false, errors.New("could not determine forge: pass --forge github|gitlab")
		}
		name = forgeNameForHost(host)
		detectedFromHost = name != ""
	}

	switch name {
	case "github":
		svc, err = forge.NewGitHubService(repoRoot)
	case "gitlab":
		svc, err = forge.NewGitLabService(repoRoot)
	default:
		return nil, "", false, errors.New("unknown or undetected forge: pass --forge github|gitlab")
	}
	return svc, name, detectedFromHost, err
}

func forgeNameForHost(host string) string {
	host = strings.ToLower(host)
	if gh := strings.ToLower(strings.TrimSpace(os.Getenv("GH_HOST"))); gh != "" && host == gh {
		return "github"
	}
	if gl := strings.ToLower(strings.TrimSpace(os.Getenv("GITLAB_HOST"))); gl != "" && host == gl {
		return "gitlab"
	}
	switch {
	case strings.Contains(host, "github.com"):
		return "github"
	case strings.Contains(host, "gitlab.com") || strings.Contains(host, "gitlab"):
		return "gitlab"
	default:
		return ""
	}
}

func originRemoteHost(repoRoot string) (string, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return "", err
	}
	cmd := exec.Command(gitPath, "remote", "get-url", "origin")
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	remote := strings.TrimSpace(string(out))
	if remote == "" {
		return "", errors.New("origin remote missing")
	}
	return hostFromRemoteURL(remote)
}

func hostFromRemoteURL(remote string) (string, error) {
	switch {
	case strings.HasPrefix(remote, "git@"):
		rest := strings.TrimPrefix(remote, "git@")
		if idx := strings.Index(rest, ":"); idx > 0 {
			return rest[:idx], nil
		}
	case strings.HasPrefix(remote, "https://"):
		rest := strings.TrimPrefix(remote, "https://")
		if idx := strings.Index(rest, "/"); idx > 0 {
			return rest[:idx], nil
		}
	case strings.HasPrefix(remote, "http://"):
		rest := strings.TrimPrefix(remote, "http://")
		if idx := strings.Index(rest, "/"); idx > 0 {
			return rest[:idx], nil
		}
	case strings.HasPrefix(remote, "ssh://"):
		rest := strings.TrimPrefix(remote, "ssh://")
		rest = strings.TrimPrefix(rest, strings.SplitN(rest, "@", 2)[0]+"@")
		if idx := strings.Index(rest, "/"); idx > 0 {
			return rest[:idx], nil
		}
	}
	return "", errors.New("unrecognized remote URL shape")
}
