package controllers

import (
	"GuardianAI/middlewares"
	"GuardianAI/models"
	"GuardianAI/services"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

var aggregationService *services.AggregationService

func SetAggregationService(service *services.AggregationService) {
	aggregationService = service
}

// GetDashboard returns every rollup for one child the guardian is linked to.
func GetDashboard(c *gin.Context) {
	guardianID, ok := middlewares.GuardianID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	childHash := c.Param("child_hash")

	if _, err := guardianService.CanView(c.Request.Context(), guardianID, childHash); err != nil {
		respondError(c, err)
		return
	}

	query, err := parseDashboardQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dashboard, err := aggregationService.Dashboard(c.Request.Context(), childHash, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// viewQuery authorises the guardian for the child and resolves the date range.
// It writes the error response itself and returns false on failure.
func viewQuery(c *gin.Context) (string, services.DateRange, services.DashboardQuery, bool) {
	guardianID, ok := middlewares.GuardianID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", services.DateRange{}, services.DashboardQuery{}, false
	}
	childHash := c.Param("child_hash")
	if _, err := guardianService.CanView(c.Request.Context(), guardianID, childHash); err != nil {
		respondError(c, err)
		return "", services.DateRange{}, services.DashboardQuery{}, false
	}

	query, err := parseDashboardQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", services.DateRange{}, services.DashboardQuery{}, false
	}
	r, err := aggregationService.Range(query.Start, query.End)
	if err != nil {
		respondError(c, err)
		return "", services.DateRange{}, services.DashboardQuery{}, false
	}
	return childHash, r, query, true
}

func rangeResponse(childHash string, r services.DateRange) gin.H {
	return gin.H{
		"child_hash": childHash,
		"start_date": r.Start.Format(models.DateLayout),
		"end_date":   r.End.Format(models.DateLayout),
	}
}

// GetDailyTotals returns one total per stored day in the range.
func GetDailyTotals(c *gin.Context) {
	childHash, r, _, ok := viewQuery(c)
	if !ok {
		return
	}
	totals, err := aggregationService.DailyTotals(c.Request.Context(), childHash, r)
	if err != nil {
		respondError(c, err)
		return
	}
	response := rangeResponse(childHash, r)
	response["daily_totals"] = totals
	c.JSON(http.StatusOK, response)
}

// GetTopApps returns the ?top=N most used apps in the range.
func GetTopApps(c *gin.Context) {
	childHash, r, query, ok := viewQuery(c)
	if !ok {
		return
	}
	apps, err := aggregationService.TopApps(c.Request.Context(), childHash, r, query.TopN)
	if err != nil {
		respondError(c, err)
		return
	}
	response := rangeResponse(childHash, r)
	response["top_apps"] = apps
	c.JSON(http.StatusOK, response)
}

// GetLocations returns the latest ?locations=N samples and a label for the newest one.
func GetLocations(c *gin.Context) {
	childHash, r, query, ok := viewQuery(c)
	if !ok {
		return
	}
	summary, err := aggregationService.LocationSummary(c.Request.Context(), childHash, r, query.Locations)
	if err != nil {
		respondError(c, err)
		return
	}
	response := rangeResponse(childHash, r)
	response["locations"] = summary
	c.JSON(http.StatusOK, response)
}

// GetSiteAccess returns counters and the most recent ?recent=N site visits.
func GetSiteAccess(c *gin.Context) {
	childHash, r, _, ok := viewQuery(c)
	if !ok {
		return
	}
	recent := 0
	if value := c.Query("recent"); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recent must be a positive integer"})
			return
		}
		recent = n
	}
	stats, err := aggregationService.SiteAccessStats(c.Request.Context(), childHash, r, recent)
	if err != nil {
		respondError(c, err)
		return
	}
	response := rangeResponse(childHash, r)
	response["site_access"] = stats
	c.JSON(http.StatusOK, response)
}

func parseDashboardQuery(c *gin.Context) (services.DashboardQuery, error) {
	var query services.DashboardQuery

	parseDate := func(key string) (*time.Time, error) {
		value := c.Query(key)
		if value == "" {
			return nil, nil
		}
		date, err := services.ParseDate(value)
		if err != nil {
			return nil, &services.ValidationError{Reason: key + " must be YYYY-MM-DD"}
		}
		return &date, nil
	}
	parseCount := func(key string) (int, error) {
		value := c.Query(key)
		if value == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return 0, &services.ValidationError{Reason: key + " must be a positive integer"}
		}
		return n, nil
	}

	var err error
	if query.Start, err = parseDate("start"); err != nil {
		return query, err
	}
	if query.End, err = parseDate("end"); err != nil {
		return query, err
	}
	if query.Start != nil && query.End != nil && query.Start.After(*query.End) {
		return query, &services.ValidationError{Reason: "start must not be after end"}
	}
	if query.TopN, err = parseCount("top"); err != nil {
		return query, err
	}
	if query.Locations, err = parseCount("locations"); err != nil {
		return query, err
	}
	return query, nil
}
