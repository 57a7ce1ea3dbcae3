// controllers/analytics_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/coachdesk/commission_engine/models"
	"github.com/coachdesk/commission_engine/services"
)

// AnalyticsController serves the read-only dashboard rollups.
type AnalyticsController struct {
	analytics *services.AnalyticsService
}

func NewAnalyticsController(analytics *services.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{analytics: analytics}
}

// Summary returns the headline totals, optionally scoped to ?year=&month=
func (ac *AnalyticsController) Summary(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	year, _ := strconv.Atoi(c.QueryParam("year"))
	month, _ := strconv.Atoi(c.QueryParam("month"))

	summary, err := ac.analytics.Summary(ctx, year, month)
	if err != nil {
		log.Printf("Error computing commission summary: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to compute commission summary",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission summary computed",
		Data:    summary,
	})
}

// TopCoaches ranks coaches by earned commission
func (ac *AnalyticsController) TopCoaches(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	top, err := ac.analytics.TopCoaches(ctx, limit)
	if err != nil {
		log.Printf("Error computing top coaches: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to compute top coaches",
		})
	}

	if top == nil {
		top = []services.TopCoach{}
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Top coaches computed",
		Data:    top,
	})
}

// RevenueByPlan breaks revenue and commission spend down per plan
func (ac *AnalyticsController) RevenueByPlan(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	buckets, err := ac.analytics.RevenueByPlan(ctx)
	if err != nil {
		log.Printf("Error computing revenue by plan: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to compute revenue by plan",
		})
	}

	if buckets == nil {
		buckets = []services.RevenueBucket{}
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Revenue by plan computed",
		Data:    buckets,
	})
}

// RevenueByCategory breaks revenue down per plan category
func (ac *AnalyticsController) RevenueByCategory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	buckets, err := ac.analytics.RevenueByCategory(ctx)
	if err != nil {
		log.Printf("Error computing revenue by category: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to compute revenue by category",
		})
	}

	if buckets == nil {
		buckets = []services.RevenueBucket{}
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Revenue by category computed",
		Data:    buckets,
	})
}

// MonthlySeries returns the per-month commission time series
func (ac *AnalyticsController) MonthlySeries(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	year, _ := strconv.Atoi(c.QueryParam("year"))

	series, err := ac.analytics.MonthlySeries(ctx, year)
	if err != nil {
		log.Printf("Error computing monthly series: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to compute monthly series",
		})
	}

	if series == nil {
		series = []services.MonthlyPoint{}
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Monthly series computed",
		Data:    series,
	})
}
