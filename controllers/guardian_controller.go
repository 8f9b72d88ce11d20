package controllers

import (
	"GuardianAI/middlewares"
	"GuardianAI/services"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

var guardianService *services.GuardianService

func SetGuardianService(service *services.GuardianService) {
	guardianService = service
}

// LinkChild attaches a child to the authenticated guardian by its child_hash.
func LinkChild(c *gin.Context) {
	guardianID, ok := middlewares.GuardianID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input struct {
		ChildHash string `json:"child_hash" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "child_hash required"})
		return
	}

	child, err := guardianService.LinkChild(c.Request.Context(), guardianID, input.ChildHash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Child linked successfully", "data": child})
}

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnknownChild):
		c.JSON(http.StatusNotFound, gin.H{"error": "Child not found"})
	case errors.Is(err, services.ErrGuardianNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Guardian not found"})
	case errors.Is(err, services.ErrNotLinked):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
