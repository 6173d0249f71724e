// Package archive writes per-tick fare snapshots to S3 as
// snappy-compressed parquet files.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"farewatch/internal/domain"
)

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, io.EOF }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

// fareRow defines the parquet schema for archived fares.
type fareRow struct {
	FareID          string  `parquet:"name=fare_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Origin          string  `parquet:"name=origin, type=BYTE_ARRAY, convertedtype=UTF8"`
	Destination     string  `parquet:"name=destination, type=BYTE_ARRAY, convertedtype=UTF8"`
	DepartureDate   string  `parquet:"name=departure_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	ReturnDate      string  `parquet:"name=return_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price           float64 `parquet:"name=price, type=DOUBLE"`
	Currency        string  `parquet:"name=currency, type=BYTE_ARRAY, convertedtype=UTF8"`
	Airline         string  `parquet:"name=airline, type=BYTE_ARRAY, convertedtype=UTF8"`
	DurationMinutes int32   `parquet:"name=duration_minutes, type=INT32"`
	Stops           int32   `parquet:"name=stops, type=INT32"`
	ObservedAt      int64   `parquet:"name=observed_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// Options configures an Archiver.
type Options struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint overrides the S3 endpoint for MinIO-style deployments.
	Endpoint  string
	AccessKey string
	SecretKey string
	Logger    zerolog.Logger
}

// Archiver uploads fare snapshots. Failures are logged by the caller and
// never block the pipeline.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

func New(ctx context.Context, opts Options) (*Archiver, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket not configured")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Archiver{
		client: client,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
		logger: opts.Logger,
	}, nil
}

// ArchiveTick serializes the fares observed in one tick and uploads them
// under <prefix>/YYYY/MM/DD/fares-<unix>.parquet.
func (a *Archiver) ArchiveTick(ctx context.Context, fares []*domain.FareRecord, tickAt time.Time) error {
	if len(fares) == 0 {
		return nil
	}

	data, err := a.createParquet(fares)
	if err != nil {
		return fmt.Errorf("build parquet: %w", err)
	}

	key := fmt.Sprintf("%s/%s/fares-%d.parquet",
		a.prefix, tickAt.UTC().Format("2006/01/02"), tickAt.UTC().Unix())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	a.logger.Info().
		Str("s3_key", key).
		Int("records", len(fares)).
		Int("bytes", len(data)).
		Msg("fare snapshot uploaded")
	return nil
}

func (a *Archiver) createParquet(fares []*domain.FareRecord) ([]byte, error) {
	mf := newMemFile()
	pw, err := writer.NewParquetWriter(mf, new(fareRow), 1)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, f := range fares {
		row := fareRow{
			FareID:          f.FareID,
			Origin:          f.Origin,
			Destination:     f.Destination,
			DepartureDate:   string(f.DepartureDate),
			ReturnDate:      string(f.ReturnDate),
			Price:           f.Price,
			Currency:        f.Currency,
			Airline:         f.Airline,
			DurationMinutes: int32(f.DurationMinutes),
			Stops:           int32(f.Stops),
			ObservedAt:      f.ObservedAt,
		}
		if err := pw.Write(row); err != nil {
			return nil, err
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	return mf.Bytes(), nil
}
