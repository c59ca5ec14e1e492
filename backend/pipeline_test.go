package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRig struct {
	sender   *fakeSender
	runner   *fakeRunner
	media    *MediaService
	pipeline *Pipeline
	root     string
}

func newTestRig(t *testing.T, prober Prober, video, audio []Strategy) *testRig {
	t.Helper()
	root := t.TempDir()
	pool := NewWorkerPool(4, nil)
	t.Cleanup(pool.Close)

	runner := &fakeRunner{}
	media := &MediaService{
		Temp:      NewTempManager(root, nil),
		Pool:      pool,
		Fetcher:   NewFetchEngine(prober, video, audio, pool, 0, nil),
		Converter: NewTranscoder(ToolsConfig{}, runner, nil),
		Logger:    Logger,
	}
	sender := &fakeSender{}
	return &testRig{
		sender:   sender,
		runner:   runner,
		media:    media,
		pipeline: NewPipeline(sender, media, "mediabot", nil),
		root:     root,
	}
}

func okStrategy(name, ext string) Strategy {
	return Strategy{Name: name, Run: func(ctx context.Context, job *AcquisitionJob, base string) (string, error) {
		path := base + ext
		return path, os.WriteFile(path, []byte("media"), 0644)
	}}
}

func failStrategy(name string, err error) Strategy {
	return Strategy{Name: name, Run: func(ctx context.Context, job *AcquisitionJob, base string) (string, error) {
		return "", err
	}}
}

func assertRootEmpty(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "job files left behind")
}

func privateRequest(text string) IncomingRequest {
	return IncomingRequest{RequestID: 1, ChatID: 5, ChatType: "private", MessageID: 9, Text: text}
}

func TestPipeline_Start(t *testing.T) {
	rig := newTestRig(t, nil, nil, nil)
	require.NoError(t, rig.pipeline.Handle(context.Background(), privateRequest("/start")))
	assert.Equal(t, MsgStart, rig.sender.Last().Text)
}

func TestPipeline_Invalid(t *testing.T) {
	rig := newTestRig(t, nil, nil, nil)
	require.NoError(t, rig.pipeline.Handle(context.Background(), privateRequest("/mp3")))
	assert.Equal(t, MsgMissingURL, rig.sender.Last().Text)

	require.NoError(t, rig.pipeline.Handle(context.Background(), privateRequest("/mp3 https://example.com/a")))
	assert.Equal(t, MsgUnsupportedURL, rig.sender.Last().Text)
}

func TestPipeline_IgnoreSendsNothing(t *testing.T) {
	rig := newTestRig(t, nil, nil, nil)
	req := privateRequest("https://youtu.be/abc")
	req.ChatType = "group"
	require.NoError(t, rig.pipeline.Handle(context.Background(), req))
	assert.Empty(t, rig.sender.Ops())
}

func TestPipeline_VideoSuccess(t *testing.T) {
	prober := &fakeProber{result: &ProbeResult{Title: "Artist - Clip"}}
	rig := newTestRig(t, prober, []Strategy{okStrategy("v1", ".mp4")}, nil)

	var existed bool
	rig.sender.onMedia = func(a *MediaArtifact) { existed = fileExists(a.Path) }

	require.NoError(t, rig.pipeline.Handle(context.Background(), privateRequest("https://youtu.be/abc")))

	assert.Equal(t, []string{"text", "video", "delete"}, rig.sender.Ops())
	assert.True(t, existed, "artifact must exist while it is delivered")
	msgs := rig.sender.Messages()
	assert.Equal(t, MsgDownloadingVideo, msgs[0].Text)
	assert.Equal(t, msgs[0].MessageID, msgs[2].MessageID)
	assert.Equal(t, TitleMeta{Artist: "Artist", Track: "Clip"}, msgs[1].Artifact.Title)
	assertRootEmpty(t, rig.root)
}

func TestPipeline_AudioSuccess(t *testing.T) {
	prober := &fakeProber{result: &ProbeResult{Title: "Artist - Song"}}
	rig := newTestRig(t, prober, nil, []Strategy{okStrategy("a1", ".webm")})

	require.NoError(t, rig.pipeline.Handle(context.Background(), privateRequest("/mp3 https://youtu.be/abc")))

	assert.Equal(t, []string{"text", "audio", "delete"}, rig.sender.Ops())
	delivered := rig.sender.Messages()[1].Artifact
	assert.Equal(t, "Artist - Song.mp3", delivered.Path[len(delivered.Path)-len("Artist - Song.mp3"):])
	assert.Equal(t, MediaAudio, delivered.Kind)
	require.Len(t, rig.runner.Calls(), 1)
	assertRootEmpty(t, rig.root)
}

func TestPipeline_FetchFailureReported(t *testing.T) {
	rig := newTestRig(t, nil, []Strategy{
		failStrategy("v1", errors.New("ERROR: Video unavailable")),
	}, nil)

	require.NoError(t, rig.pipeline.Handle(context.Background(), privateRequest("https://youtu.be/abc")))

	assert.Equal(t, []string{"text", "edit"}, rig.sender.Ops())
	assert.Equal(t, MsgNotFound, rig.sender.Last().Text)
	assertRootEmpty(t, rig.root)
}

func TestPipeline_TranscodeFailureReported(t *testing.T) {
	rig := newTestRig(t, nil, nil, []Strategy{okStrategy("a1", ".webm")})
	rig.runner.err = errors.New("exit status 1")

	require.NoError(t, rig.pipeline.Handle(context.Background(), privateRequest("/mp3 https://youtu.be/abc")))
	assert.Equal(t, MsgConvertFailed, rig.sender.Last().Text)
	assertRootEmpty(t, rig.root)
}

func TestPipeline_DeliveryFailure(t *testing.T) {
	rig := newTestRig(t, nil, []Strategy{okStrategy("v1", ".mp4")}, nil)
	rig.sender.failMedia = errors.New("connection reset by peer")

	err := rig.pipeline.Handle(context.Background(), privateRequest("https://youtu.be/abc"))
	require.Error(t, err)
	assert.Equal(t, MsgInternalError, rig.sender.Last().Text)
	assertRootEmpty(t, rig.root)
}

func TestPipeline_UploadTooLargeReported(t *testing.T) {
	rig := newTestRig(t, nil, []Strategy{okStrategy("v1", ".mp4")}, nil)
	rig.sender.failMedia = fmt.Errorf("send video: %w", ErrUploadTooLarge)

	require.NoError(t, rig.pipeline.Handle(context.Background(), privateRequest("https://youtu.be/abc")))
	assert.Equal(t, []string{"text", "edit"}, rig.sender.Ops())
	assert.Equal(t, MsgTooLarge, rig.sender.Last().Text)
	assertRootEmpty(t, rig.root)
}

func TestPipeline_ChatActionFailureIgnored(t *testing.T) {
	rig := newTestRig(t, nil, []Strategy{okStrategy("v1", ".mp4")}, nil)
	rig.sender.failAction = errors.New("Too Many Requests: retry after 5")

	require.NoError(t, rig.pipeline.Handle(context.Background(), privateRequest("https://youtu.be/abc")))
	assert.Equal(t, []string{"text", "video", "delete"}, rig.sender.Ops())
}

func TestPipeline_ConcurrentSameURL(t *testing.T) {
	var calls atomic.Int32
	strategy := Strategy{Name: "v1", Run: func(ctx context.Context, job *AcquisitionJob, base string) (string, error) {
		calls.Add(1)
		path := base + ".mp4"
		return path, os.WriteFile(path, []byte(job.ID), 0644)
	}}
	rig := newTestRig(t, nil, []Strategy{strategy}, nil)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		req := privateRequest("https://youtu.be/abc")
		req.RequestID = 1 // same request id, distinct arenas
		go func() { errs <- rig.pipeline.Handle(context.Background(), req) }()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Equal(t, int32(2), calls.Load())
	assertRootEmpty(t, rig.root)
}
