// Зеркало экспорта: кладёт готовый CSV в S3-совместимое хранилище.

package s3storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/records-classifier/pkg/config"
)

// csvContentType: Content-Type загружаемого экспорта.
const csvContentType = "text/csv"

// Uploader определяет интерфейс зеркала экспорта.
// Используется для мокания в тестах и внедрения зависимостей.
type Uploader interface {
	Key(runID, localPath string) string
	Upload(ctx context.Context, key, localPath string) (UploadInfo, error)
}

// Client: S3 клиент поверх minio-go.
type Client struct {
	api    *minio.Client
	bucket string
	prefix string
}

// Проверка что Client реализует Uploader
var _ Uploader = (*Client)(nil)

// UploadInfo описывает результат загрузки объекта.
type UploadInfo struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

// New создает клиент, используя наш конфиг.
func New(cfg config.S3Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3.endpoint and s3.bucket are required")
	}

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &Client{
		api:    minioClient,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Key строит ключ объекта: <prefix>/<runID>/<имя файла>.
func (c *Client) Key(runID, localPath string) string {
	return ObjectKey(c.prefix, runID, localPath)
}

// ObjectKey собирает ключ из префикса, id прогона и имени файла.
// Пустые части пропускаются.
func ObjectKey(prefix, runID, localPath string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{strings.Trim(prefix, "/"), runID, filepath.Base(localPath)} {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return path.Join(parts...)
}

// Upload загружает локальный файл под указанным ключом.
//
// Rule 11: context.Context propagation for cancellation support.
func (c *Client) Upload(ctx context.Context, key, localPath string) (UploadInfo, error) {
	info, err := c.api.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: csvContentType,
	})
	if err != nil {
		return UploadInfo{}, fmt.Errorf("failed to upload %s to %s/%s: %w", localPath, c.bucket, key, err)
	}

	return UploadInfo{
		Bucket: info.Bucket,
		Key:    info.Key,
		Size:   info.Size,
		ETag:   info.ETag,
	}, nil
}
