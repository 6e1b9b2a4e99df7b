package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apictx "github.com/molotovsingh/personal-backup-tool/internal/api/context"
	"github.com/molotovsingh/personal-backup-tool/internal/model"
)

// Result is the structured {ok, message, data} envelope the host-ward
// surface returns from every operation (spec §6: "a structured result
// with an ok flag and a human message").
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ListJobs returns every job the Supervisor knows about.
func ListJobs(c *gin.Context) {
	sup, err := apictx.GetSupervisor(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	jobs, err := sup.ListJobs()
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, Result{OK: true, Message: "jobs listed", Data: jobs})
}

// GetJob returns a single job's current status, merged with live engine
// progress when one is running.
func GetJob(c *gin.Context) {
	sup, err := apictx.GetSupervisor(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	job, err := sup.GetJobStatus(c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, Result{OK: true, Message: "job fetched", Data: job})
}

// createJobRequest is the JSON body accepted by CreateJob.
type createJobRequest struct {
	Name     string         `json:"name" binding:"required"`
	Source   string         `json:"source" binding:"required"`
	Dest     string         `json:"dest" binding:"required"`
	Type     model.Type     `json:"type" binding:"required"`
	Settings model.Settings `json:"settings"`
}

// CreateJob validates and persists a new job definition in Pending status.
func CreateJob(c *gin.Context) {
	sup, err := apictx.GetSupervisor(c)
	if err != nil {
		HandleError(c, err)
		return
	}

	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Result{OK: false, Message: err.Error()})
		return
	}

	job, err := sup.CreateJob(req.Name, req.Source, req.Dest, req.Type, req.Settings)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Result{OK: true, Message: "job created", Data: job})
}

// StartJob launches the engine for a job, applying the status-transition
// guards and deletion pre-flight checks of spec §4.4.
func StartJob(c *gin.Context) {
	sup, err := apictx.GetSupervisor(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	id := c.Param("id")
	if err := sup.StartJob(id); err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, Result{OK: true, Message: "job started"})
}

// StopJob requests a graceful stop of a job's live engine.
func StopJob(c *gin.Context) {
	sup, err := apictx.GetSupervisor(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	id := c.Param("id")
	if err := sup.StopJob(id); err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, Result{OK: true, Message: "job stopped"})
}

// DeleteJob removes a job record. Rejected while a live engine exists.
func DeleteJob(c *gin.Context) {
	sup, err := apictx.GetSupervisor(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	id := c.Param("id")
	if err := sup.DeleteJob(id); err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, Result{OK: true, Message: "job deleted"})
}
