// Package filestore reads the small JSON and YAML documents the tap is
// started with (config, state, catalog) from the local filesystem, Google
// Cloud Storage (gs://bucket/key) or Amazon S3 (s3://bucket/key).
package filestore

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
)

// Scheme identifies where a document lives.
type Scheme string

const (
	SchemeFile Scheme = "file"
	SchemeGCS  Scheme = "gs"
	SchemeS3   Scheme = "s3"
)

// Location is a parsed document URI.
type Location struct {
	Scheme Scheme
	Bucket string
	Key    string
	// Path is set for SchemeFile
	Path string
}

// Parse splits a URI into its location. Anything without a gs:// or s3://
// prefix is a local path.
func Parse(uri string) (Location, error) {
	if uri == "" {
		return Location{}, errors.New(errors.ErrorTypeFile, "empty path")
	}

	switch {
	case strings.HasPrefix(uri, "gs://"), strings.HasPrefix(uri, "s3://"):
		u, err := url.Parse(uri)
		if err != nil {
			return Location{}, errors.Wrap(err, errors.ErrorTypeFile, "invalid uri").WithDetail("uri", uri)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, errors.Newf(errors.ErrorTypeFile, "uri %q must name a bucket and an object", uri)
		}
		return Location{Scheme: Scheme(u.Scheme), Bucket: u.Host, Key: key}, nil
	case strings.HasPrefix(uri, "file://"):
		return Location{Scheme: SchemeFile, Path: strings.TrimPrefix(uri, "file://")}, nil
	default:
		return Location{Scheme: SchemeFile, Path: uri}, nil
	}
}

// Options configures remote clients.
type Options struct {
	// GCSCredentialsFile is passed to the storage client when set
	GCSCredentialsFile string
	// AWSRegion overrides the region from the default AWS config chain
	AWSRegion string
}

// ReadFile returns the full contents of the document at uri.
func ReadFile(ctx context.Context, uri string, opts Options) ([]byte, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case SchemeGCS:
		return readGCS(ctx, loc, opts)
	case SchemeS3:
		return readS3(ctx, loc, opts)
	default:
		data, err := os.ReadFile(loc.Path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read file").WithDetail("path", loc.Path)
		}
		return data, nil
	}
}

func readGCS(ctx context.Context, loc Location, opts Options) ([]byte, error) {
	var clientOpts []option.ClientOption
	if opts.GCSCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.GCSCredentialsFile))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}
	defer client.Close()

	r, err := client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open GCS object").
			WithDetail("bucket", loc.Bucket).WithDetail("key", loc.Key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read GCS object")
	}
	return data, nil
}

func readS3(ctx context.Context, loc Location, opts Options) ([]byte, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.AWSRegion != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.AWSRegion))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS config")
	}

	out, err := s3.NewFromConfig(cfg).GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to get S3 object").
			WithDetail("bucket", loc.Bucket).WithDetail("key", loc.Key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read S3 object")
	}
	return data, nil
}
