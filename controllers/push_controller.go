package controllers

import (
	"GuardianAI/middlewares"
	"GuardianAI/services"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

var notificationService *services.NotificationService

func SetNotificationService(service *services.NotificationService) {
	notificationService = service
}

// SendTestPush sends a push message to the authenticated guardian's own device.
func SendTestPush(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PANIC] Recovered in SendTestPush: %v", r)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
	}()

	guardianID, ok := middlewares.GuardianID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request struct {
		Title string            `json:"title" binding:"required"`
		Body  string            `json:"body" binding:"required"`
		Data  map[string]string `json:"data"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and body required"})
		return
	}

	if notificationService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications are not configured"})
		return
	}

	guardian, err := guardianService.Get(c.Request.Context(), guardianID)
	if err != nil {
		respondError(c, err)
		return
	}
	if guardian.DeviceToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Guardian has no device token. Login from a mobile device first.",
		})
		return
	}

	log.Printf("[FCM] guardian %d is sending a test notification", guardian.ID)
	err = notificationService.SendNotification(c.Request.Context(), guardian.DeviceToken, request.Title, request.Body, request.Data)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": fmt.Sprintf("Failed to send notification: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Push notification sent to guardian",
		"details": gin.H{
			"recipient_type": "guardian",
			"recipient_name": guardian.FullName,
			"device_token":   maskToken(guardian.DeviceToken),
			"title":          request.Title,
			"body":           request.Body,
			"lang":           guardian.Lang,
		},
	})
}

// maskToken keeps only the ends of a device token for responses and logs.
func maskToken(token string) string {
	if len(token) <= 10 {
		return "***"
	}
	return token[:5] + "..." + token[len(token)-5:]
}
