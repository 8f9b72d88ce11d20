package controllers

import (
	"GuardianAI/models"
	"GuardianAI/services"
	"GuardianAI/websocket"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var ingestService *services.IngestService

func SetIngestService(service *services.IngestService) {
	ingestService = service
}

// IngestTelemetry is the stateless endpoint: every provided kind is stored
// independently and reported on its own.
func IngestTelemetry(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "POST required"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, websocket.MaxMessageSize)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	var req models.IngestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if req.ChildHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "child_hash required"})
		return
	}

	c.JSON(http.StatusOK, ingestService.IngestStateless(c.Request.Context(), req))
}
