package config

import (
	"context"
	"database/sql"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"

	"github.com/vango-dev/storesync/internal/errors"
	"github.com/vango-dev/storesync/pkg/storage"
)

// OpenArea builds the storage area described by cfg.
// The caller owns the returned area and must close it.
func OpenArea(ctx context.Context, cfg AreaConfig) (storage.Area, error) {
	cfg.applyDefaults()
	if err := cfg.validate("area"); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverMemory:
		return storage.NewMemoryArea(), nil

	case DriverSQLite:
		return openSQLite(ctx, cfg)

	case DriverFile:
		area, err := storage.NewFileArea(cfg.Dir)
		if err != nil {
			return nil, errors.New("S204").WithDetail("file area " + cfg.Dir).Wrap(err)
		}
		return area, nil

	case DriverS3:
		return storage.NewS3Area(newS3Client(cfg.S3), cfg.S3.Bucket, storage.WithS3Prefix(cfg.S3.Prefix)), nil
	}

	return nil, errors.New("S203").WithDetail("driver " + cfg.Driver)
}

// sqliteArea closes the database it opened.
type sqliteArea struct {
	*storage.SQLArea
	db *sql.DB
}

func (a *sqliteArea) Close() error {
	a.SQLArea.Close()
	return a.db.Close()
}

func openSQLite(ctx context.Context, cfg AreaConfig) (storage.Area, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, errors.New("S204").WithDetail("sqlite " + cfg.DSN).Wrap(err)
	}

	area := storage.NewSQLArea(db,
		storage.WithSQLDialect(storage.DialectSQLite),
		storage.WithSQLTableName(cfg.Table),
	)
	if err := area.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, errors.New("S204").WithDetail("sqlite " + cfg.DSN).Wrap(err)
	}
	return &sqliteArea{SQLArea: area, db: db}, nil
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		creds := aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
			Source:          "storesync config",
		}
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				return creds, nil
			},
		))
	}
	return s3.New(opts)
}
