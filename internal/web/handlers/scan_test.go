package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func startScan(t *testing.T, handler *ScanHandler) string {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/v1/scan", nil)
	recorder := httptest.NewRecorder()

	handler.Start(recorder, req)
	assertStatusCode(t, recorder, http.StatusAccepted)

	var resp map[string]string
	parseJSONResponse(t, recorder, &resp)
	if resp["job_id"] == "" {
		t.Fatal("expected a job id")
	}
	return resp["job_id"]
}

func waitForJob(t *testing.T, jm *JobManager, jobID string) *ScanJob {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		job := jm.GetJob(jobID)
		if job != nil && isJobTerminal(job.GetStatus()) {
			return job
		}
		select {
		case <-deadline:
			t.Fatal("scan job did not finish in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScan_EmptyLibraryCompletes(t *testing.T) {
	lib := &fakeLibrary{}
	jm := NewJobManager()
	holder := &SessionHolder{}
	handler := NewScanHandler(testDeps(lib), jm, holder)

	jobID := startScan(t, handler)
	job := waitForJob(t, jm, jobID)

	if job.GetStatus() != JobStatusCompleted {
		t.Fatalf("expected completed job, got %s (%s)", job.GetStatus(), job.Error)
	}
	if job.Result == nil || job.Result.GroupCount != 0 {
		t.Errorf("expected empty result for empty library, got %+v", job.Result)
	}
	if holder.Get() == nil {
		t.Error("expected a session after a completed scan")
	}
}

func TestScan_Status(t *testing.T) {
	lib := &fakeLibrary{}
	jm := NewJobManager()
	handler := NewScanHandler(testDeps(lib), jm, &SessionHolder{})

	jobID := startScan(t, handler)
	waitForJob(t, jm, jobID)

	req := httptest.NewRequest("GET", "/api/v1/scan/"+jobID, nil)
	req = requestWithChiParams(req, map[string]string{"jobId": jobID})
	recorder := httptest.NewRecorder()

	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
}

func TestScan_StatusUnknownJob(t *testing.T) {
	handler := NewScanHandler(testDeps(&fakeLibrary{}), NewJobManager(), &SessionHolder{})

	req := httptest.NewRequest("GET", "/api/v1/scan/nope", nil)
	req = requestWithChiParams(req, map[string]string{"jobId": "nope"})
	recorder := httptest.NewRecorder()

	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestScan_ModulesValidated(t *testing.T) {
	handler := NewScanHandler(testDeps(&fakeLibrary{}), NewJobManager(), &SessionHolder{})

	modules := handler.resolveModules([]string{"duplicates", "nonsense"})
	if len(modules) != 1 {
		t.Fatalf("expected 1 valid module, got %v", modules)
	}
}
