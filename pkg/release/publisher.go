package release

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/go-github/v50/github"
	"golang.org/x/oauth2"
)

// githubReleases is the slice of the GitHub API the publisher needs. The
// go-github repositories service satisfies it.
type githubReleases interface {
	CreateRelease(ctx context.Context, owner, repo string, release *github.RepositoryRelease) (*github.RepositoryRelease, *github.Response, error)
	UploadReleaseAsset(ctx context.Context, owner, repo string, id int64, opt *github.UploadOptions, file *os.File) (*github.ReleaseAsset, *github.Response, error)
}

// GitHubPublisher creates source-control releases for classified tags and
// attaches built distribution files as release assets.
type GitHubPublisher struct {
	owner    string
	repo     string
	releases githubReleases
	logger   *slog.Logger
}

// GitHubPublisherOption configures a GitHubPublisher.
type GitHubPublisherOption func(*GitHubPublisher)

// WithPublisherLogger sets the logger the publisher logs with. Defaults to
// slog.Default.
func WithPublisherLogger(logger *slog.Logger) GitHubPublisherOption {
	return func(p *GitHubPublisher) {
		p.logger = logger
	}
}

// withReleasesService substitutes the GitHub releases API, for tests.
func withReleasesService(svc githubReleases) GitHubPublisherOption {
	return func(p *GitHubPublisher) {
		p.releases = svc
	}
}

// NewGitHubPublisher builds a publisher for owner/repo authenticated with the
// given token.
func NewGitHubPublisher(ctx context.Context, owner, repo, token string, options ...GitHubPublisherOption) *GitHubPublisher {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	p := &GitHubPublisher{
		owner:    owner,
		repo:     repo,
		releases: client.Repositories,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("package", "release"))
	return p
}

// Publish creates the source-control release for rel and uploads each of its
// assets. Pre-release tags produce releases marked as pre-releases. A release
// without notes asks GitHub to generate them from the commit history.
func (p *GitHubPublisher) Publish(ctx context.Context, rel Release) error {
	created, _, err := p.releases.CreateRelease(ctx, p.owner, p.repo, &github.RepositoryRelease{
		TagName:              github.String(rel.Tag),
		Name:                 github.String(rel.Tag),
		Body:                 github.String(rel.Notes),
		Prerelease:           github.Bool(rel.Prerelease),
		GenerateReleaseNotes: github.Bool(rel.Notes == ""),
	})
	if err != nil {
		return fmt.Errorf("failed to create release %s: %w", rel.Tag, err)
	}
	p.logger.Info("Created release",
		slog.String("tag", rel.Tag),
		slog.Bool("prerelease", rel.Prerelease))

	for _, path := range rel.Assets {
		if err := p.uploadAsset(ctx, created.GetID(), path); err != nil {
			return err
		}
	}
	return nil
}

func (p *GitHubPublisher) uploadAsset(ctx context.Context, releaseID int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open asset %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	if _, _, err := p.releases.UploadReleaseAsset(ctx, p.owner, p.repo, releaseID, &github.UploadOptions{
		Name: name,
	}, f); err != nil {
		return fmt.Errorf("failed to upload asset %s: %w", name, err)
	}
	p.logger.Debug("Uploaded release asset", slog.String("asset", name))
	return nil
}

// IndexUploader pushes built distribution files to a package index.
type IndexUploader interface {
	Upload(ctx context.Context, version string, assetPaths []string) error
}

// PublishToIndex uploads the release's assets to the package index unless the
// release is a pre-release, in which case the upload is skipped and
// PublishToIndex returns false. The boolean reports whether an upload
// happened.
func PublishToIndex(ctx context.Context, uploader IndexUploader, rel Release, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rel.Prerelease {
		logger.Info("Skipping package index publish for pre-release",
			slog.String("tag", rel.Tag))
		return false, nil
	}
	if err := uploader.Upload(ctx, rel.Version, rel.Assets); err != nil {
		return false, fmt.Errorf("failed to publish %s to package index: %w", rel.Version, err)
	}
	logger.Info("Published to package index", slog.String("version", rel.Version))
	return true, nil
}
