package indexer

import (
	"github.com/go-git/go-git/v5"
)

// RepoInfo identifies the git checkout an index root belongs to.
type RepoInfo struct {
	Commit string `json:"commit"`
	Branch string `json:"branch,omitempty"`
	Remote string `json:"remote,omitempty"`
}

// DetectRepo opens the repository containing root, searching parent
// directories. It reports false for trees outside git or without commits.
func DetectRepo(root string) (RepoInfo, bool) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return RepoInfo{}, false
	}
	head, err := repo.Head()
	if err != nil {
		return RepoInfo{}, false
	}

	info := RepoInfo{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}
	if remote, err := repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			info.Remote = urls[0]
		}
	}
	return info, true
}

// metadata is attached to every chunk of a file.
func (r *RepoInfo) metadata(language string) map[string]any {
	md := map[string]any{"language": language}
	if r == nil {
		return md
	}
	md["commit"] = r.Commit
	if r.Branch != "" {
		md["branch"] = r.Branch
	}
	return md
}
