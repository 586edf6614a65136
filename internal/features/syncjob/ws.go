package syncjob

import (
	"time"

	"github.com/gofiber/contrib/websocket"
)

// WebSocketController pushes progress snapshots to wizard clients so they
// don't have to poll over HTTP
type WebSocketController struct {
	Service SyncJobService
}

func NewWebSocketController(service SyncJobService) *WebSocketController {
	return &WebSocketController{
		Service: service,
	}
}

// StreamProgress writes the job's snapshot once a second until the job
// reaches a terminal state, the job disappears, or the client goes away.
// The final snapshot is always sent before closing.
func (h *WebSocketController) StreamProgress(c *websocket.Conn) {
	jobID := c.Params("id")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer c.Close()

	for {
		progress, ok := h.Service.GetProgress(jobID)
		if !ok {
			c.WriteJSON(map[string]string{"error": "job not found"})
			return
		}

		if err := c.WriteJSON(progress); err != nil {
			return
		}
		if progress.Status.Terminal() {
			return
		}

		<-ticker.C
	}
}
