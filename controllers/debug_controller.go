package controllers

import (
	"GuardianAI/middlewares"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ChannelCounter reports how many ingest channels are open.
type ChannelCounter interface {
	ActiveChannels() int
}

var channelCounter ChannelCounter

func SetChannelCounter(counter ChannelCounter) {
	channelCounter = counter
}

func Health(c *gin.Context) {
	active := 0
	if channelCounter != nil {
		active = channelCounter.ActiveChannels()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "active_channels": active})
}

// DebugAuth echoes what GuardianAuth stored in the context.
func DebugAuth(c *gin.Context) {
	guardianID, exists := middlewares.GuardianID(c)
	c.JSON(http.StatusOK, gin.H{
		"guardian_id_exists": exists,
		"guardian_id":        guardianID,
		"all_context_keys":   c.Keys,
	})
}
