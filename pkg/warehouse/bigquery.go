package warehouse

import (
	"context"
	stderrors "errors"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
)

// BigQueryConfig holds the client settings for a BigQuery warehouse.
type BigQueryConfig struct {
	ProjectID       string
	CredentialsPath string
	Location        string
}

// BigQuery runs queries as BigQuery jobs.
type BigQuery struct {
	client   *bigquery.Client
	location string
	logger   *zap.Logger
}

// NewBigQuery creates a BigQuery client. An empty project ID lets the client
// detect it from the credentials.
func NewBigQuery(ctx context.Context, cfg BigQueryConfig, logger *zap.Logger) (*BigQuery, error) {
	var opts []option.ClientOption

	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create BigQuery client")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &BigQuery{
		client:   client,
		location: cfg.Location,
		logger:   logger,
	}, nil
}

// Query submits sql as a query job and waits for the first page.
func (b *BigQuery) Query(ctx context.Context, sql string) (RowIterator, error) {
	q := b.client.Query(sql)
	if b.location != "" {
		q.Location = b.location
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to execute BigQuery query").
			WithDetail("query", sql)
	}

	b.logger.Debug("BigQuery query started", zap.Uint64("total_rows", it.TotalRows))
	return &bigQueryRows{it: it}, nil
}

// Close closes the client.
func (b *BigQuery) Close() error {
	return b.client.Close()
}

type bigQueryRows struct {
	it   *bigquery.RowIterator
	cols *columnIndex
	done bool
}

func (r *bigQueryRows) Next() (Row, error) {
	if r.done {
		return Row{}, Done
	}

	var vals []bigquery.Value
	if err := r.it.Next(&vals); err != nil {
		if stderrors.Is(err, iterator.Done) {
			r.done = true
			return Row{}, Done
		}
		return Row{}, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read next BigQuery row")
	}

	// The schema is only known after the first page has been fetched.
	if r.cols == nil {
		names := make([]string, len(r.it.Schema))
		for i, f := range r.it.Schema {
			names[i] = f.Name
		}
		r.cols = newColumnIndex(names)
	}

	values := make([]any, len(vals))
	for i, v := range vals {
		values[i] = v
	}
	return Row{cols: r.cols, values: values}, nil
}

func (r *bigQueryRows) Close() error {
	r.done = true
	return nil
}
