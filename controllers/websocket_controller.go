package controllers

import (
	"GuardianAI/middlewares"
	"GuardianAI/websocket"
	"net/http"

	"github.com/gin-gonic/gin"
)

var webSocketServer *websocket.Server

func SetWebSocketServer(server *websocket.Server) {
	webSocketServer = server
}

// ServeIngestWs opens the direct channel for the child in the address.
func ServeIngestWs(c *gin.Context) {
	webSocketServer.ServeIngest(c.Writer, c.Request, c.Param("child_hash"))
}

// ServeIngestAuthWs opens a channel that authenticates with its first frame.
func ServeIngestAuthWs(c *gin.Context) {
	webSocketServer.ServeIngestAuth(c.Writer, c.Request)
}

// ServeLiveWs streams stored telemetry of a linked child to the guardian.
func ServeLiveWs(c *gin.Context) {
	guardianID, ok := middlewares.GuardianID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	child, err := guardianService.CanView(c.Request.Context(), guardianID, c.Param("child_hash"))
	if err != nil {
		respondError(c, err)
		return
	}
	webSocketServer.ServeLive(c.Writer, c.Request, child.ChildHash, guardianID)
}
