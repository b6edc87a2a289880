// Package gcs wraps the object storage operations the toolkit needs: staging
// model artifacts into a bucket and copying artifact prefixes server side
// before a model upload.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var (
	ErrNotGSURI    = errors.New("uri must use the gs scheme")
	ErrEmptyBucket = errors.New("uri has no bucket")
)

// Client wraps a storage client scoped to one project and region.
type Client struct {
	storageClient *storage.Client
	projectID     string
	region        string
	log           *logrus.Logger
}

// NewClient creates a storage client. When credentialsFile is empty,
// application default credentials are used.
func NewClient(ctx context.Context, projectID, region, credentialsFile string, log *logrus.Logger) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("credentials file %s not readable, %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create storage client, %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		storageClient: storageClient,
		projectID:     projectID,
		region:        region,
		log:           log,
	}, nil
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	return c.storageClient.Close()
}

// EnsureBucket creates the bucket in the client's region when it does not
// already exist.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := c.storageClient.Bucket(bucket).Attrs(ctx)
	if err == nil {
		c.log.WithField("bucket", bucket).Debug("bucket already exists")
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("unable to look up bucket %s, %w", bucket, err)
	}

	c.log.WithFields(logrus.Fields{"bucket": bucket, "region": c.region}).Info("creating bucket")
	attrs := &storage.BucketAttrs{Location: c.region}
	if err := c.storageClient.Bucket(bucket).Create(ctx, c.projectID, attrs); err != nil {
		return fmt.Errorf("unable to create bucket %s, %w", bucket, err)
	}
	return nil
}

// UploadFile streams a local file to an object in the bucket.
func (c *Client) UploadFile(ctx context.Context, bucket, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("unable to open local file %s, %w", localPath, err)
	}
	defer f.Close()

	w := c.storageClient.Bucket(bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("unable to copy %s to gs://%s/%s, %w", localPath, bucket, objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to finalize gs://%s/%s, %w", bucket, objectName, err)
	}

	c.log.WithFields(logrus.Fields{
		"local":  localPath,
		"object": fmt.Sprintf("gs://%s/%s", bucket, objectName),
	}).Info("uploaded file")
	return nil
}

// UploadDir walks a local directory and uploads every regular file under the
// given object prefix, preserving relative paths.
func (c *Client) UploadDir(ctx context.Context, bucket, localDir, prefix string) error {
	return filepath.Walk(localDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		objectName := path.Join(prefix, filepath.ToSlash(rel))
		return c.UploadFile(ctx, bucket, p, objectName)
	})
}

// CopyPrefix copies every object under a gs:// source prefix to the
// corresponding name under a gs:// destination prefix using server-side
// rewrites. It returns the number of objects copied.
func (c *Client) CopyPrefix(ctx context.Context, srcURI, dstURI string) (int, error) {
	srcBucket, srcPrefix, err := ParseURI(srcURI)
	if err != nil {
		return 0, err
	}
	dstBucket, dstPrefix, err := ParseURI(dstURI)
	if err != nil {
		return 0, err
	}

	it := c.storageClient.Bucket(srcBucket).Objects(ctx, &storage.Query{Prefix: srcPrefix})
	copied := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return copied, fmt.Errorf("unable to list gs://%s/%s, %w", srcBucket, srcPrefix, err)
		}

		dstName := strings.Replace(attrs.Name, srcPrefix, dstPrefix, 1)
		src := c.storageClient.Bucket(srcBucket).Object(attrs.Name)
		dst := c.storageClient.Bucket(dstBucket).Object(dstName)
		if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
			return copied, fmt.Errorf(
				"unable to copy gs://%s/%s to gs://%s/%s, %w",
				srcBucket, attrs.Name, dstBucket, dstName, err,
			)
		}
		copied++
	}

	c.log.WithFields(logrus.Fields{
		"source":      srcURI,
		"destination": dstURI,
		"objects":     copied,
	}).Info("copied artifact prefix")
	return copied, nil
}

// ParseURI splits a gs://bucket/prefix URI into bucket and prefix.
func ParseURI(uri string) (string, string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("unable to parse uri %q, %w", uri, err)
	}
	if parsed.Scheme != "gs" {
		return "", "", fmt.Errorf("%q, %w", uri, ErrNotGSURI)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("%q, %w", uri, ErrEmptyBucket)
	}
	return parsed.Host, strings.TrimPrefix(parsed.Path, "/"), nil
}
