package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"exports/p/a.pdf", "exports/p/a.pdf", false},
		{"/exports/p/a.pdf", "exports/p/a.pdf", false},
		{"exports/../secrets", "", true},
		{"exports//a.pdf", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, ErrInvalidKey, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	obj, err := store.Put(ctx, "exports/p1/a1.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), obj.Size)
	assert.Len(t, obj.Hash, 64)

	data, got, err := store.Get(ctx, "exports/p1/a1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, obj.Hash, got.Hash)

	_, _, err = store.Get(ctx, "exports/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_TooLarge(t *testing.T) {
	_, err := NewMemoryStore().Put(context.Background(), "big.bin", "application/octet-stream", make([]byte, MaxSize+1))
	assert.ErrorIs(t, err, ErrTooLarge)
}

type fakeS3 struct {
	objects map[string][]byte
	lastPut *s3.PutObjectInput
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = data
	f.lastPut = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: aws.String("application/pdf"),
	}, nil
}

func TestS3Store_PrefixesKeys(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := NewS3Store(fake, "clinic-archive", "frontdesk/")
	ctx := context.Background()

	_, err := store.Put(ctx, "exports/p/a.pdf", "application/pdf", []byte("pdf"))
	require.NoError(t, err)
	assert.Contains(t, fake.objects, "frontdesk/exports/p/a.pdf")
	assert.Equal(t, "clinic-archive", aws.ToString(fake.lastPut.Bucket))
	assert.Equal(t, types.ObjectCannedACLPrivate, fake.lastPut.ACL)

	data, obj, err := store.Get(ctx, "exports/p/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))
	assert.Equal(t, "application/pdf", obj.ContentType)

	_, _, err = store.Get(ctx, "exports/none.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestHandler_Download(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Put(context.Background(), "exports/p/a.pdf", "application/pdf", []byte("pdf-bytes"))
	require.NoError(t, err)
	h := NewHandler(store)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("*")
	c.SetParamValues("p/a.pdf")

	require.NoError(t, h.Download(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pdf-bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "a.pdf")

	c = e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("*")
	c.SetParamValues("../x")
	var he *echo.HTTPError
	require.ErrorAs(t, h.Download(c), &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}
