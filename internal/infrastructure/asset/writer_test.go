package asset

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSWriter_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "invoices")
	w := NewFSWriter(dir, "http://localhost:4242/")
	ctx := context.Background()

	url, err := w.SaveInvoice(ctx, "o1", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4242/invoices/o1.pdf", url)

	_, err = w.SaveInvoice(ctx, "o1", []byte("second"))
	require.NoError(t, err)
	got, err := w.LoadInvoice(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	_, err = w.LoadInvoice(ctx, "nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFSWriter_KeepsNamesInsideDir(t *testing.T) {
	dir := t.TempDir()
	w := NewFSWriter(dir, "")
	url, err := w.SaveInvoice(context.Background(), "../escape", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "/invoices/escape.pdf", url)
	assert.FileExists(t, filepath.Join(dir, "escape.pdf"))
}

func TestFSWriter_OverwriteNeverExposesPartialFile(t *testing.T) {
	dir := t.TempDir()
	w := NewFSWriter(dir, "")
	ctx := context.Background()
	a := bytes.Repeat([]byte("a"), 4<<20)
	b := bytes.Repeat([]byte("b"), 4<<20)
	_, err := w.SaveInvoice(ctx, "o1", a)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 30; i++ {
			data := a
			if i%2 == 0 {
				data = b
			}
			if _, err := w.SaveInvoice(ctx, "o1", data); err != nil {
				assert.NoError(t, err)
				return
			}
		}
	}()

	for {
		got, err := w.LoadInvoice(ctx, "o1")
		require.NoError(t, err)
		if !bytes.Equal(got, a) && !bytes.Equal(got, b) {
			t.Fatalf("read %d bytes that match neither rendering", len(got))
		}
		select {
		case <-done:
			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temp files left behind")
			return
		default:
		}
	}
}

type fakeObjects struct {
	objects map[string][]byte
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestS3Writer_SaveAndLoad(t *testing.T) {
	fake := &fakeObjects{objects: map[string][]byte{}}
	w := NewS3Writer(fake, "gmart", "invoices/", "")
	ctx := context.Background()

	loc, err := w.SaveInvoice(ctx, "o1", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "s3://gmart/invoices/o1.pdf", loc)
	assert.Contains(t, fake.objects, "gmart/invoices/o1.pdf")

	got, err := w.LoadInvoice(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(got))

	_, err = w.LoadInvoice(ctx, "o2")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
