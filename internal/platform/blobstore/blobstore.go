// Package blobstore archives generated documents. S3Store is used when a
// bucket is configured; MemoryStore otherwise and in tests.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrTooLarge   = errors.New("blob exceeds maximum allowed size")
	ErrInvalidKey = errors.New("invalid blob key")
)

// MaxSize bounds a single archived document (20 MB).
const MaxSize = 20 * 1024 * 1024

// Object describes a stored blob.
type Object struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (*Object, error)
	Get(ctx context.Context, key string) ([]byte, *Object, error)
}

// CleanKey rejects keys that could escape the archive prefix.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" || strings.Contains(key, "..") || path.Clean(key) != key {
		return "", ErrInvalidKey
	}
	return key, nil
}

func describe(key, contentType string, data []byte) (*Object, error) {
	if len(data) > MaxSize {
		return nil, ErrTooLarge
	}
	return &Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", sha256.Sum256(data)),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// MemoryStore is a thread-safe Store for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

type memoryBlob struct {
	obj  Object
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]memoryBlob)}
}

func (m *MemoryStore) Put(_ context.Context, key, contentType string, data []byte) (*Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := describe(key, contentType, data)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.blobs[key] = memoryBlob{obj: *obj, data: append([]byte(nil), data...)}
	m.mu.Unlock()
	return obj, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, *Object, error) {
	m.mu.RLock()
	b, ok := m.blobs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	obj := b.obj
	return append([]byte(nil), b.data...), &obj, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// S3API is the part of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps blobs under prefix in one bucket.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// NewS3Client builds a client from the default AWS credential chain.
// endpoint, when set, points at an S3-compatible server such as MinIO.
func NewS3Client(ctx context.Context, endpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: true,
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return s3.New(opts), nil
}

func (s *S3Store) objectKey(key string) string {
	return s.prefix + key
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) (*Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := describe(key, contentType, data)
	if err != nil {
		return nil, err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPrivate,
		Metadata:    map[string]string{"sha256": obj.Hash},
	})
	if err != nil {
		return nil, fmt.Errorf("put s3 object %s: %w", key, err)
	}
	return obj, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, *Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("get s3 object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read s3 object %s: %w", key, err)
	}
	obj, err := describe(key, aws.ToString(out.ContentType), data)
	if err != nil {
		return nil, nil, err
	}
	if out.LastModified != nil {
		obj.CreatedAt = *out.LastModified
	}
	return data, obj, nil
}

// Handler serves archived documents back to the desk.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts GET /exports/* on g. Callers attach auth to g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/exports/*", h.Download)
}

func (h *Handler) Download(c echo.Context) error {
	key, err := CleanKey("exports/" + c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	data, obj, err := h.store.Get(c.Request().Context(), key)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "export not found")
	}
	if err != nil {
		return err
	}
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, path.Base(obj.Key)))
	c.Response().Header().Set("X-Content-SHA256", obj.Hash)
	return c.Blob(http.StatusOK, obj.ContentType, data)
}
