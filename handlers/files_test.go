package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/reframelabs/reframe-api/pipeline"
	"github.com/stretchr/testify/require"
)

func idParams(id string) httprouter.Params {
	return httprouter.Params{{Key: "id", Value: id}}
}

func seedCompletedWithFile(t *testing.T, d *ReframeAPIHandlersCollection, publicID string, content []byte) *pipeline.TransformJob {
	t.Helper()
	outputPath := filepath.Join(t.TempDir(), "output.mp4")
	require.NoError(t, os.WriteFile(outputPath, content, 0644))
	job := seedJob(d, publicID+"_medium", publicID, pipeline.StateCompleted)
	job.OutputPath = outputPath
	job.OutputBytes = int64(len(content))
	return job
}

func TestDownloadUnknownID(t *testing.T) {
	d := testCollection(t)
	rr := httptest.NewRecorder()

	d.DownloadVideo()(rr, httptest.NewRequest("GET", "/api/download/nope", nil), idParams("nope"))

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDownloadInFlightAnswers202(t *testing.T) {
	d := testCollection(t)
	seedJob(d, "vid_medium", "vid", pipeline.StateDownloading)
	rr := httptest.NewRecorder()

	d.DownloadVideo()(rr, httptest.NewRequest("GET", "/api/download/vid", nil), idParams("vid"))

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), "downloading")
}

func TestDownloadErroredAnswers400(t *testing.T) {
	d := testCollection(t)
	job := seedJob(d, "vid_medium", "vid", pipeline.StateError)
	job.Error = "the conversion pipeline failed"
	rr := httptest.NewRecorder()

	d.DownloadVideo()(rr, httptest.NewRequest("GET", "/api/download/vid", nil), idParams("vid"))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "the conversion pipeline failed")
}

func TestDownloadServesAttachment(t *testing.T) {
	d := testCollection(t)
	content := []byte("not really an mp4 but enough for serving")
	seedCompletedWithFile(t, d, "vid", content)
	rr := httptest.NewRecorder()

	d.DownloadVideo()(rr, httptest.NewRequest("GET", "/api/download/vid", nil), idParams("vid"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "video/mp4", rr.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename=vertical_video_vid.mp4`, rr.Header().Get("Content-Disposition"))
	require.Equal(t, content, rr.Body.Bytes())
}

func TestDownloadMissingFileAnswers404(t *testing.T) {
	d := testCollection(t)
	job := seedJob(d, "vid_medium", "vid", pipeline.StateCompleted)
	job.OutputPath = filepath.Join(t.TempDir(), "gone.mp4")
	rr := httptest.NewRecorder()

	d.DownloadVideo()(rr, httptest.NewRequest("GET", "/api/download/vid", nil), idParams("vid"))

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "no longer exists")
}

func TestInlineHidesNonCompletedStates(t *testing.T) {
	d := testCollection(t)
	seedJob(d, "vid1_medium", "vid1", pipeline.StateConverting)
	errored := seedJob(d, "vid2_medium", "vid2", pipeline.StateError)
	errored.Error = "boom"

	for _, id := range []string{"vid1", "vid2", "missing"} {
		rr := httptest.NewRecorder()
		d.InlineVideo()(rr, httptest.NewRequest("GET", "/api/video/"+id, nil), idParams(id))
		require.Equal(t, http.StatusNotFound, rr.Code, "id: %s", id)
	}
}

func TestInlineServesWithCacheHeaders(t *testing.T) {
	d := testCollection(t)
	content := []byte("0123456789abcdef")
	seedCompletedWithFile(t, d, "vid", content)
	rr := httptest.NewRecorder()

	d.InlineVideo()(rr, httptest.NewRequest("GET", "/api/video/vid", nil), idParams("vid"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "video/mp4", rr.Header().Get("Content-Type"))
	require.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	require.Equal(t, "bytes", rr.Header().Get("Accept-Ranges"))
	require.Equal(t, content, rr.Body.Bytes())
}

func TestInlineServesRangeRequests(t *testing.T) {
	d := testCollection(t)
	seedCompletedWithFile(t, d, "vid", []byte("0123456789abcdef"))

	req := httptest.NewRequest("GET", "/api/video/vid", nil)
	req.Header.Set("Range", "bytes=4-7")
	rr := httptest.NewRecorder()

	d.InlineVideo()(rr, req, idParams("vid"))

	require.Equal(t, http.StatusPartialContent, rr.Code)
	require.Equal(t, "4567", rr.Body.String())
	require.Equal(t, "bytes 4-7/16", rr.Header().Get("Content-Range"))
}
