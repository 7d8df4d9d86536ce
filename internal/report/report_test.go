package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctor-sync/internal/sync"
)

var at = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRows() []Row {
	return []Row{
		{RunID: "01HQ", At: at, Result: sync.Result{Entity: sync.EntityCourse, ID: "1_7", Outcome: sync.Created}},
		{RunID: "01HQ", At: at, Result: sync.Result{Entity: sync.EntityUser, ID: "a@x.edu", Outcome: sync.Failed, Err: errors.New("boom, again")}},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRows()))

	assert.True(t, strings.HasSuffix(buf.String(), "\r\n"))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{"01HQ", "2024-03-01T12:00:00Z", "course", "1_7", "created", ""}, records[1])
	assert.Equal(t, "boom, again", records[2][5])
}

type recordingUploader struct {
	local, remote string
	err           error
}

func (u *recordingUploader) Upload(_ context.Context, localPath, remoteName string) error {
	u.local, u.remote = localPath, remoteName
	return u.err
}

func TestWriterPlain(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	w := &Writer{Dir: dir, Uploader: up}

	path, err := w.Write(context.Background(), "RUN1", sampleRows())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "provision-RUN1.csv"), path)
	assert.Equal(t, path, up.local)
	assert.Equal(t, "provision-RUN1.csv", up.remote)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "RUN_ID,TIMESTAMP")
}

func TestWriterBrotli(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, Compress: "brotli", Uploader: &recordingUploader{err: errors.New("offline")}}

	path, err := w.Write(context.Background(), "RUN2", sampleRows())
	require.NoError(t, err, "upload failures are logged only")
	assert.True(t, strings.HasSuffix(path, ".csv.br"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	plain, err := io.ReadAll(brotli.NewReader(f))
	require.NoError(t, err)
	assert.Contains(t, string(plain), "1_7,created")
}

func TestWriterDisabled(t *testing.T) {
	var w *Writer
	assert.False(t, w.Enabled())

	path, err := (&Writer{}).Write(context.Background(), "RUN3", sampleRows())
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestSFTPConfig(t *testing.T) {
	assert.False(t, SFTPConfig{Host: "h", User: "u"}.Enabled())
	assert.True(t, SFTPConfig{Host: "h", User: "u", Pass: "p"}.Enabled())

	err := SFTPUploader{}.Upload(context.Background(), "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	err = SFTPUploader{Config: SFTPConfig{Host: "h", User: "u", Pass: "p"}}.Upload(context.Background(), "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SFTP_KNOWN_HOSTS")
}

func TestSFTPUploadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := SFTPConfig{Host: "192.0.2.1", Port: 22, User: "u", Pass: "p", InsecureIgnoreHostKey: true}
	err := SFTPUploader{Config: cfg}.Upload(ctx, "x", "y")
	require.Error(t, err)
}
