package handlers

import (
	"io"

	"github.com/gin-gonic/gin"
	apictx "github.com/molotovsingh/personal-backup-tool/internal/api/context"
	"github.com/molotovsingh/personal-backup-tool/internal/fanout"
)

// Subscribe streams job_update/job_final_update/notification messages from
// the Subscriber Fan-out (C6) to the client as Server-Sent Events,
// optionally filtered to a single job_id via the ?job_id= query param
// (notification messages are delivered whatever the filter).
func Subscribe(c *gin.Context) {
	bus, err := apictx.GetBus(c)
	if err != nil {
		HandleError(c, err)
		return
	}

	var filter func(fanout.Message) bool
	if jobID := c.Query("job_id"); jobID != "" {
		filter = func(m fanout.Message) bool {
			return m.Type == fanout.TypeNotification || m.JobID == jobID
		}
	}

	sub := bus.Subscribe(filter)
	defer bus.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	// Send the headers now so the client sees the stream open before the
	// first event arrives.
	c.Writer.Flush()

	c.Stream(func(_ io.Writer) bool {
		select {
		case msg, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.SSEvent(string(msg.Type), msg)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
