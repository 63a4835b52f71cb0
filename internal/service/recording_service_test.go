package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stemsi/provex-backend/internal/model"
)

// fakeMedia records saves and deletes in memory.
type fakeMedia struct {
	saved     int
	deleted   []string
	deleteErr error
}

func (m *fakeMedia) Save(ctx context.Context, ext string, r io.Reader) (string, error) {
	m.saved++
	io.Copy(io.Discard, r)
	return "/media/recordings/blob-" + ext, nil
}

func (m *fakeMedia) Delete(ctx context.Context, url string) error {
	m.deleted = append(m.deleted, url)
	return m.deleteErr
}

func (f *fixture) recordingService(media MediaStorage) *RecordingService {
	return NewRecordingService(f.mem, media, NoopMirror{}, 1<<20, zerolog.Nop())
}

func TestUploadRecordingBindsURL(t *testing.T) {
	f := newFixture()
	media := &fakeMedia{}
	svc := f.recordingService(media)
	attempt := f.startAttempt(f.student, testNow.Add(-10*time.Minute))

	url, err := svc.Upload(context.Background(), f.identity(f.student), attempt.ID, attempt.SessionToken,
		model.RecordingCamera, RecordingUpload{
			ContentType: "video/webm;codecs=vp9",
			Size:        128,
			Body:        strings.NewReader("frames"),
		})

	require.NoError(t, err)
	assert.Equal(t, 1, media.saved)

	stored, err := f.mem.Get(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Recordings.CameraVideoURL)
	assert.Equal(t, url, *stored.Recordings.CameraVideoURL)
	assert.Nil(t, stored.Recordings.ScreenVideoURL)
}

func TestUploadRecordingRejectsBadInput(t *testing.T) {
	f := newFixture()
	svc := f.recordingService(&fakeMedia{})
	attempt := f.startAttempt(f.student, testNow.Add(-10*time.Minute))

	_, err := svc.Upload(context.Background(), f.identity(f.student), attempt.ID, attempt.SessionToken,
		model.RecordingCamera, RecordingUpload{ContentType: "image/png", Size: 10, Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = svc.Upload(context.Background(), f.identity(f.student), attempt.ID, attempt.SessionToken,
		model.RecordingCamera, RecordingUpload{ContentType: "video/webm", Size: 2 << 20, Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.Upload(context.Background(), f.identity(f.student), attempt.ID, "wrong",
		model.RecordingCamera, RecordingUpload{ContentType: "video/webm", Size: 10, Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrSessionTokenMismatch)
}

func TestDeleteRecordingAbsentIsNoop(t *testing.T) {
	f := newFixture()
	media := &fakeMedia{}
	svc := f.recordingService(media)
	attempt := f.startAttempt(f.student, testNow.Add(-10*time.Minute))

	err := svc.Delete(context.Background(), attempt.ID, model.RecordingScreen)

	assert.NoError(t, err)
	assert.Empty(t, media.deleted)
}

func TestDeleteRecordingClearsReferenceDespiteMediaFailure(t *testing.T) {
	f := newFixture()
	media := &fakeMedia{deleteErr: errors.New("disk gone")}
	svc := f.recordingService(media)
	attempt := f.startAttempt(f.student, testNow.Add(-10*time.Minute))

	url := "/media/recordings/blob.webm"
	require.NoError(t, f.mem.SetRecordingURL(context.Background(), attempt.ID, model.RecordingCamera, &url))

	err := svc.Delete(context.Background(), attempt.ID, model.RecordingCamera)

	require.NoError(t, err)
	stored, err := f.mem.Get(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Recordings.CameraVideoURL)
}

func TestUploadReplacesSupersededRecording(t *testing.T) {
	f := newFixture()
	media := &fakeMedia{}
	svc := f.recordingService(media)
	attempt := f.startAttempt(f.student, testNow.Add(-10*time.Minute))

	old := "/media/recordings/old.webm"
	require.NoError(t, f.mem.SetRecordingURL(context.Background(), attempt.ID, model.RecordingScreen, &old))

	_, err := svc.Upload(context.Background(), f.identity(f.student), attempt.ID, attempt.SessionToken,
		model.RecordingScreen, RecordingUpload{ContentType: "video/mp4", Size: 64, Body: strings.NewReader("x")})

	require.NoError(t, err)
	assert.Equal(t, []string{old}, media.deleted)
}
