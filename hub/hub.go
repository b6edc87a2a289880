// Package hub downloads pretrained model snapshots from a model hub so they
// can be re-uploaded to object storage for serving.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const defaultBaseURL = "https://huggingface.co"

var (
	ErrNoToken        = errors.New("hub token not found in credentials file")
	ErrUnexpectedCode = errors.New("unexpected response status from hub")
)

// Client talks to the model hub's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *logrus.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the hub endpoint, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient returns a hub client authenticating with the given token. An
// empty token downloads public repositories only.
func NewClient(token string, log *logrus.Logger, opts ...Option) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadToken reads the hub token from a YAML credentials file of the form
// {hf_token: ...}.
func LoadToken(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("unable to read hub credentials %s, %w", path, err)
	}

	var creds struct {
		HFToken string `yaml:"hf_token"`
	}
	if err := yaml.Unmarshal(raw, &creds); err != nil {
		return "", fmt.Errorf("unable to parse hub credentials %s, %w", path, err)
	}
	if creds.HFToken == "" {
		return "", fmt.Errorf("%s, %w", path, ErrNoToken)
	}
	return creds.HFToken, nil
}

type repoInfo struct {
	Siblings []struct {
		RFilename string `json:"rfilename"`
	} `json:"siblings"`
}

// ListFiles returns the file names of a repository snapshot.
func (c *Client) ListFiles(ctx context.Context, repoID string) ([]string, error) {
	var info repoInfo
	url := fmt.Sprintf("%s/api/models/%s", c.baseURL, repoID)
	if err := c.getJSON(ctx, url, &info); err != nil {
		return nil, fmt.Errorf("unable to list files of %s, %w", repoID, err)
	}

	files := make([]string, 0, len(info.Siblings))
	for _, s := range info.Siblings {
		files = append(files, s.RFilename)
	}
	return files, nil
}

// Snapshot downloads every file of a repository into localDir, skipping file
// names matching any of the ignore patterns.
func (c *Client) Snapshot(ctx context.Context, repoID, localDir string, ignore []string) error {
	files, err := c.ListFiles(ctx, repoID)
	if err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{
		"repo":  repoID,
		"files": len(files),
		"dir":   localDir,
	}).Info("downloading snapshot")

	for _, name := range files {
		if ignored(name, ignore) {
			c.log.WithField("file", name).Debug("skipping ignored file")
			continue
		}
		if err := c.downloadFile(ctx, repoID, name, localDir); err != nil {
			return err
		}
	}
	return nil
}

func ignored(name string, patterns []string) bool {
	base := path.Base(name)
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func (c *Client) downloadFile(ctx context.Context, repoID, name, localDir string) error {
	url := fmt.Sprintf("%s/%s/resolve/main/%s", c.baseURL, repoID, name)
	resp, err := c.get(ctx, url)
	if err != nil {
		return fmt.Errorf("unable to download %s from %s, %w", name, repoID, err)
	}
	defer resp.Body.Close()

	localPath := filepath.Join(localDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("unable to create snapshot directory, %w", err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("unable to create %s, %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("unable to write %s, %w", localPath, err)
	}
	c.log.WithFields(logrus.Fields{"repo": repoID, "file": name}).Debug("downloaded file")
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s returned %d, %w", url, resp.StatusCode, ErrUnexpectedCode)
	}
	return resp, nil
}
