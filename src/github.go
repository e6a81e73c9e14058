package src

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/go-github/v73/github"
)

var repoNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// SanitizeRepoName turns an arbitrary project name into a valid GitHub
// repository name, falling back to a generated one when nothing usable
// remains.
func SanitizeRepoName(name, projectID string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
	cleaned = repoNameSanitizer.ReplaceAllString(cleaned, "")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		id := projectID
		if len(id) > 8 {
			id = id[:8]
		}
		cleaned = "devopus-project-" + id
	}
	return cleaned
}

// ExportToGitHub pushes a generated file set to a repository under the
// token owner's account, creating the repository when it does not exist.
// Files land in a single commit on main via the git data API, so repeat
// exports of the same project update the branch in place. Returns the
// repository's HTML URL.
func ExportToGitHub(ctx context.Context, token, repoName string, files FileSet) (string, error) {
	client := github.NewClient(nil).WithAuthToken(token)

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return "", WrapErr(ErrCodeExport, err, "authenticate with GitHub")
	}
	owner := user.GetLogin()

	repo, _, err := client.Repositories.Get(ctx, owner, repoName)
	if err != nil {
		repo, _, err = client.Repositories.Create(ctx, "", &github.Repository{
			Name:        github.Ptr(repoName),
			Description: github.Ptr("Generated with DevOpus"),
			AutoInit:    github.Ptr(true),
		})
		if err != nil {
			return "", WrapErr(ErrCodeExport, err, "create repository %s", repoName)
		}
	}

	entries := make([]*github.TreeEntry, 0, len(files))
	for path, content := range files {
		blob, _, err := client.Git.CreateBlob(ctx, owner, repoName, &github.Blob{
			Content:  github.Ptr(content),
			Encoding: github.Ptr("utf-8"),
		})
		if err != nil {
			return "", WrapErr(ErrCodeExport, err, "create blob for %s", path)
		}
		entries = append(entries, &github.TreeEntry{
			Path: github.Ptr(strings.TrimPrefix(path, "/")),
			Mode: github.Ptr("100644"),
			Type: github.Ptr("blob"),
			SHA:  blob.SHA,
		})
	}

	ref, _, err := client.Git.GetRef(ctx, owner, repoName, "refs/heads/main")
	if err == nil {
		// Branch exists: commit on top of it.
		parentSHA := ref.Object.GetSHA()
		tree, _, err := client.Git.CreateTree(ctx, owner, repoName, parentSHA, entries)
		if err != nil {
			return "", WrapErr(ErrCodeExport, err, "create tree")
		}
		parent, _, err := client.Git.GetCommit(ctx, owner, repoName, parentSHA)
		if err != nil {
			return "", WrapErr(ErrCodeExport, err, "read parent commit")
		}
		commit, _, err := client.Git.CreateCommit(ctx, owner, repoName, &github.Commit{
			Message: github.Ptr("Update via DevOpus 🚀"),
			Tree:    tree,
			Parents: []*github.Commit{parent},
		}, nil)
		if err != nil {
			return "", WrapErr(ErrCodeExport, err, "create commit")
		}
		ref.Object.SHA = commit.SHA
		if _, _, err := client.Git.UpdateRef(ctx, owner, repoName, ref, false); err != nil {
			return "", WrapErr(ErrCodeExport, err, "update main")
		}
		return repo.GetHTMLURL(), nil
	}

	// Empty repository: root commit plus a fresh ref.
	tree, _, err := client.Git.CreateTree(ctx, owner, repoName, "", entries)
	if err != nil {
		return "", WrapErr(ErrCodeExport, err, "create tree")
	}
	commit, _, err := client.Git.CreateCommit(ctx, owner, repoName, &github.Commit{
		Message: github.Ptr("Initial commit via DevOpus 🚀"),
		Tree:    tree,
	}, nil)
	if err != nil {
		return "", WrapErr(ErrCodeExport, err, "create initial commit")
	}
	_, _, err = client.Git.CreateRef(ctx, owner, repoName, &github.Reference{
		Ref:    github.Ptr("refs/heads/main"),
		Object: &github.GitObject{SHA: commit.SHA},
	})
	if err != nil {
		return "", WrapErr(ErrCodeExport, err, "create main ref")
	}
	return repo.GetHTMLURL(), nil
}
