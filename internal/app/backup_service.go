package app

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrBackupNotConfigured = errors.New("backup storage is not configured")

const backupKeyPrefix = "backups/"

// BackupStorageConfig points at an S3-compatible endpoint (MinIO in the
// default compose setup).
type BackupStorageConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// BackupService archives the data directory (uploads and previews) into a
// tar.gz object on S3-compatible storage and restores from it.
type BackupService struct {
	cfg     BackupStorageConfig
	dataDir string
}

func NewBackupService(cfg BackupStorageConfig, dataDir string) *BackupService {
	return &BackupService{cfg: cfg, dataDir: dataDir}
}

func (s *BackupService) Enabled() bool {
	return s.cfg.Bucket != "" && s.cfg.AccessKey != ""
}

func (s *BackupService) client(ctx context.Context) (*s3.Client, error) {
	if !s.Enabled() {
		return nil, ErrBackupNotConfigured
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s.cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.cfg.AccessKey,
			s.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load s3 config failed: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// BackupInfo describes one stored archive.
type BackupInfo struct {
	Key       string    `json:"key"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Create archives the data directory and uploads it. Returns the object key.
func (s *BackupService) Create(ctx context.Context) (*BackupInfo, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "multirag-backup-*.tar.gz")
	if err != nil {
		return nil, fmt.Errorf("create temp archive failed: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := archiveDir(s.dataDir, tmp); err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind archive failed: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive failed: %w", err)
	}

	key := backupKeyPrefix + time.Now().UTC().Format("20060102T150405Z") + ".tar.gz"
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        tmp,
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload backup failed: %w", err)
	}

	return &BackupInfo{Key: key, SizeBytes: info.Size(), CreatedAt: time.Now().UTC()}, nil
}

// List returns stored backups, most recent last (S3 key order is lexical,
// and the keys are timestamped).
func (s *BackupService) List(ctx context.Context) ([]BackupInfo, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(backupKeyPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list backups failed: %w", err)
	}

	backups := make([]BackupInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		info := BackupInfo{Key: aws.ToString(obj.Key)}
		if obj.Size != nil {
			info.SizeBytes = *obj.Size
		}
		if obj.LastModified != nil {
			info.CreatedAt = *obj.LastModified
		}
		backups = append(backups, info)
	}
	return backups, nil
}

// Restore downloads the archive and unpacks it over the data directory.
// Existing files with the same paths are overwritten; others are left alone.
func (s *BackupService) Restore(ctx context.Context, key string) error {
	if key == "" || !strings.HasPrefix(key, backupKeyPrefix) {
		return ErrInvalidInput
	}
	client, err := s.client(ctx)
	if err != nil {
		return err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download backup failed: %w", err)
	}
	defer out.Body.Close()

	return extractArchive(out.Body, s.dataDir)
}

// archiveDir writes dir as a gzipped tar stream with paths relative to dir.
func archiveDir(dir string, w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("archive data dir failed: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer failed: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip writer failed: %w", err)
	}
	return nil
}

func extractArchive(r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open gzip stream failed: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry failed: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		// Reject entries that would escape the target directory.
		target := filepath.Join(dir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
			return fmt.Errorf("tar entry escapes target dir: %s", hdr.Name)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create restore dir failed: %w", err)
		}
		f, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("create restored file failed: %w", err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("write restored file failed: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
}
