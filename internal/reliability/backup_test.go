package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichescout/nichescout/internal/database"
	nstesting "github.com/nichescout/nichescout/internal/testing"
)

// fakeStore records uploads and serves a canned object listing.
type fakeStore struct {
	uploads map[string][]byte
	objects []types.Object
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string][]byte)}
}

func (f *fakeStore) Upload(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

func (f *fakeStore) List(context.Context, string) ([]types.Object, error) {
	return f.objects, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestCreateAndUploadBackup(t *testing.T) {
	db, cleanup := nstesting.NewTestDB(t, "history")
	defer cleanup()

	store := newFakeStore()
	svc := NewBackupService(store, map[string]*database.DB{"history": db}, t.TempDir(), zerolog.Nop())

	require.NoError(t, svc.CreateAndUploadBackup(context.Background()))
	require.Len(t, store.uploads, 1)

	var archiveName string
	for key := range store.uploads {
		archiveName = key
	}
	assert.True(t, strings.HasPrefix(archiveName, archivePrefix))
	assert.True(t, strings.HasSuffix(archiveName, ".tar.gz"))

	// The archive must contain the database snapshot and a manifest whose
	// checksum entry matches the snapshot file.
	entries := readArchive(t, store.uploads[archiveName])
	require.Contains(t, entries, "history.db")
	require.Contains(t, entries, "backup-metadata.json")

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(entries["backup-metadata.json"], &meta))
	require.Len(t, meta.Databases, 1)
	assert.Equal(t, "history", meta.Databases[0].Name)
	assert.True(t, strings.HasPrefix(meta.Databases[0].Checksum, "sha256:"))
	assert.Equal(t, int64(len(entries["history.db"])), meta.Databases[0].SizeBytes)
}

func TestListBackupsParsesAndSorts(t *testing.T) {
	store := newFakeStore()
	store.objects = []types.Object{
		{Key: aws.String("nichescout-backup-2026-08-01-020000.tar.gz"), Size: aws.Int64(1000)},
		{Key: aws.String("nichescout-backup-2026-08-03-020000.tar.gz"), Size: aws.Int64(2000)},
		{Key: aws.String("unrelated-file.txt")},
		{Key: aws.String("nichescout-backup-garbage.tar.gz")},
	}
	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2, "non-archives and unparsable names are skipped")
	assert.Equal(t, "nichescout-backup-2026-08-03-020000.tar.gz", backups[0].Filename, "newest first")
}

func TestRotateKeepsNewestThree(t *testing.T) {
	store := newFakeStore()
	for _, stamp := range []string{
		"2026-08-05-020000", "2026-08-04-020000", "2026-08-03-020000",
		"2024-01-02-020000", "2024-01-01-020000",
	} {
		store.objects = append(store.objects, types.Object{
			Key: aws.String(archivePrefix + stamp + ".tar.gz"), Size: aws.Int64(1),
		})
	}
	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())

	require.NoError(t, svc.RotateOldBackups(context.Background(), 30))

	assert.ElementsMatch(t, []string{
		archivePrefix + "2024-01-02-020000.tar.gz",
		archivePrefix + "2024-01-01-020000.tar.gz",
	}, store.deleted)
}

func TestRotateRetentionZeroKeepsEverything(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 6; i++ {
		stamp := time.Date(2020, 1, 1+i, 2, 0, 0, 0, time.UTC).Format(archiveTimeLayout)
		store.objects = append(store.objects, types.Object{Key: aws.String(archivePrefix + stamp + ".tar.gz")})
	}
	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())

	require.NoError(t, svc.RotateOldBackups(context.Background(), 0))
	assert.Empty(t, store.deleted)
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gz.Close()

	entries := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[header.Name] = content
	}
	return entries
}
