package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"pdb-harvest/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

type fakeObject struct {
	body     []byte
	modified time.Time
}

// fakeStore hält Objekte im Speicher.
type fakeStore struct {
	objects   map[string]fakeObject
	putErr    error
	deleteErr map[string]error
	now       time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]fakeObject{}, deleteErr: map[string]error{}, now: time.Now()}
}

func (f *fakeStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.now = f.now.Add(time.Second)
	f.objects[aws.ToString(in.Key)] = fakeObject{body: body, modified: f.now}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeStore) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), LastModified: aws.Time(f.objects[k].modified)})
	}
	return out, nil
}

func (f *fakeStore) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(in.Key)
	if err := f.deleteErr[key]; err != nil {
		return nil, err
	}
	delete(f.objects, key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestUploaderStore(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for name, content := range map[string]string{"a.csv": "PDB_ID\n", "b.fasta": ">x\nMK\n"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, p)
	}

	store := newFakeStore()
	u := &Uploader{Client: store, Bucket: "harvest", Endpoint: "https://s3.example.org/", Logger: zap.NewNop()}
	run := &models.PipelineRun{ID: "r", StartedAt: time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC), OutputFiles: files}
	if err := u.Store(context.Background(), run, nil, nil); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if got := string(store.objects["2024-03-05/b.fasta"].body); got != ">x\nMK\n" {
		t.Errorf("unexpected uploaded content %q", got)
	}
	if _, ok := store.objects["2024-03-05/a.csv"]; !ok {
		t.Error("a.csv not uploaded")
	}

	link, err := u.UploadFile(context.Background(), "k/a.csv", files[0])
	if err != nil {
		t.Fatal(err)
	}
	if link != "https://s3.example.org/harvest/k/a.csv" {
		t.Errorf("unexpected link %q", link)
	}
}

func TestUploaderErrors(t *testing.T) {
	store := newFakeStore()
	u := &Uploader{Client: store, Bucket: "harvest", Logger: zap.NewNop()}
	run := &models.PipelineRun{OutputFiles: []string{filepath.Join(t.TempDir(), "missing.csv")}}
	if err := u.Store(context.Background(), run, nil, nil); err == nil {
		t.Error("expected an error for a missing file")
	}

	p := filepath.Join(t.TempDir(), "x.csv")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	store.putErr = errors.New("access denied")
	if _, err := u.UploadFile(context.Background(), "x.csv", p); !errors.Is(err, store.putErr) {
		t.Errorf("expected wrapped put error, got %v", err)
	}
}

func TestRotate(t *testing.T) {
	store := newFakeStore()
	for _, k := range []string{"harvest-1.tar.gz", "harvest-2.tar.gz", "harvest-3.tar.gz", "harvest-4.tar.gz", "other/keep.txt"} {
		store.now = store.now.Add(time.Hour)
		store.objects[k] = fakeObject{modified: store.now}
	}
	store.deleteErr["harvest-2.tar.gz"] = errors.New("locked")

	deleted, err := Rotate(context.Background(), store, "bucket", "harvest-", 1, zap.NewNop())
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if len(deleted) != 2 || deleted[0] != "harvest-3.tar.gz" || deleted[1] != "harvest-1.tar.gz" {
		t.Errorf("unexpected deletions %v", deleted)
	}
	for _, k := range []string{"harvest-4.tar.gz", "harvest-2.tar.gz", "other/keep.txt"} {
		if _, ok := store.objects[k]; !ok {
			t.Errorf("%s must be kept", k)
		}
	}

	none, err := Rotate(context.Background(), store, "bucket", "harvest-", 5, zap.NewNop())
	if err != nil || len(none) != 0 {
		t.Errorf("expected no rotation, got %v (%v)", none, err)
	}
}
