// internal/api/websocket.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/StoryReelMCP/internal/services"
	"github.com/Corphon/StoryReelMCP/internal/utils"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 生产环境应收紧来源检查
		return true
	},
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// ProgressWebSocket 以WebSocket推送任务进度
// 连接建立后先推送当前快照，之后实时转发进度更新，任务终态时关闭
func (h *Handler) ProgressWebSocket(c *gin.Context) {
	taskID := c.Param("task_id")
	tracker, ok := h.ProgressService.GetTracker(taskID)
	if !ok {
		h.Response.NotFound(c, "任务")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warn("WebSocket升级失败", map[string]interface{}{
			"task_id": taskID,
			"error":   err.Error(),
		})
		return
	}
	defer conn.Close()

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	// 客户端可能随时断开，读循环只用于感知关闭
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// 先推送当前快照，避免客户端错过早期更新
	snapshot, _ := tracker.Snapshot()
	if err := writeProgress(conn, taskID, snapshot); err != nil {
		return
	}
	if snapshot.Status == "completed" || snapshot.Status == "failed" {
		return
	}

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-done:
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := writeProgress(conn, taskID, update); err != nil {
				return
			}
			if update.Status == "completed" || update.Status == "failed" {
				return
			}
		}
	}
}

func writeProgress(conn *websocket.Conn, taskID string, update services.ProgressUpdate) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(map[string]interface{}{
		"task_id":  taskID,
		"status":   update.Status,
		"progress": update.Progress,
		"message":  update.Message,
	})
}
