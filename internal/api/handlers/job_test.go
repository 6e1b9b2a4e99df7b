package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molotovsingh/personal-backup-tool/internal/model"
)

type jobResult struct {
	OK      bool      `json:"ok"`
	Message string    `json:"message"`
	Data    model.Job `json:"data"`
}

type jobListResult struct {
	OK      bool        `json:"ok"`
	Message string      `json:"message"`
	Data    []model.Job `json:"data"`
}

func TestJobAPI_CreateListGet(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	body, _ := json.Marshal(map[string]any{
		"name":   "nightly backup",
		"source": "/data/src",
		"dest":   "/data/dst",
		"type":   model.TypeLocalCopy,
	})
	resp, err := http.Post(ts.Server.URL+"/api/jobs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created jobResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, model.StatusPending, created.Data.Status)

	listResp, err := http.Get(ts.Server.URL + "/api/jobs")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var listed jobListResult
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&listed))
	assert.Len(t, listed.Data, 1)

	getResp, err := http.Get(ts.Server.URL + "/api/jobs/" + created.Data.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestJobAPI_GetMissingJob(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	resp, err := http.Get(ts.Server.URL + "/api/jobs/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobAPI_CreateRejectsMissingFields(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	body, _ := json.Marshal(map[string]any{"name": "incomplete"})
	resp, err := http.Post(ts.Server.URL+"/api/jobs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobAPI_StopRejectedWhenNotRunning(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	job, err := ts.Supervisor.CreateJob("idle", "/src", "/dst", model.TypeLocalCopy, model.Settings{})
	require.NoError(t, err)

	resp, err := http.Post(ts.Server.URL+"/api/jobs/"+job.ID+"/stop", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestJobAPI_DeleteJob(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	job, err := ts.Supervisor.CreateJob("throwaway", "/src", "/dst", model.TypeLocalCopy, model.Settings{})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodDelete, ts.Server.URL+"/api/jobs/"+job.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = ts.Supervisor.GetJobStatus(job.ID)
	assert.Error(t, err)
}
