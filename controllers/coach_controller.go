// controllers/coach_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/coachdesk/commission_engine/models"
	"github.com/coachdesk/commission_engine/repositories"
)

// CoachController manages the referral directory the engine walks.
type CoachController struct {
	coaches *repositories.CoachRepository
}

func NewCoachController(coaches *repositories.CoachRepository) *CoachController {
	return &CoachController{coaches: coaches}
}

// CreateCoach registers a coach, resolving an optional referrerCode to the
// upline pointer and issuing a fresh referral code.
func (cc *CoachController) CreateCoach(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req struct {
		FullName       string                `json:"fullName" validate:"required"`
		Email          string                `json:"email" validate:"required,email"`
		ReferrerCode   string                `json:"referrerCode"`
		Level          int                   `json:"level"`
		PayoutSettings models.PayoutSettings `json:"payoutSettings"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Name and email are required",
			Data:    err.Error(),
		})
	}

	coach := models.Coach{
		FullName:       req.FullName,
		Email:          req.Email,
		Level:          req.Level,
		PayoutSettings: req.PayoutSettings,
	}

	if req.ReferrerCode != "" {
		referrer, err := cc.coaches.FindByReferralCode(ctx, req.ReferrerCode)
		if err != nil {
			if err == models.ErrCoachNotFound {
				return c.JSON(http.StatusBadRequest, models.Response{
					Status:  http.StatusBadRequest,
					Message: "Referral code does not match any coach",
				})
			}
			log.Printf("Error resolving referral code %s: %v", req.ReferrerCode, err)
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to resolve referral code",
			})
		}
		coach.ReferredBy = &referrer.ID
	}

	if err := cc.coaches.CreateCoach(ctx, &coach); err != nil {
		log.Printf("Error creating coach: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create coach",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Coach created",
		Data:    coach,
	})
}

// GetCoach fetches one directory record
func (cc *CoachController) GetCoach(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid coach id",
		})
	}

	coach, err := cc.coaches.GetCoach(ctx, id)
	if err != nil {
		if err == models.ErrCoachNotFound {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Coach not found",
			})
		}
		log.Printf("Error fetching coach %s: %v", c.Param("id"), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve coach",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Coach retrieved",
		Data:    coach,
	})
}

// ListCoaches pages through the directory
func (cc *CoachController) ListCoaches(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	page, _ := parsePositiveInt(c.QueryParam("page"), 1)
	limit, _ := parsePositiveInt(c.QueryParam("limit"), 50)

	coaches, total, err := cc.coaches.ListCoaches(ctx, page, limit)
	if err != nil {
		log.Printf("Error listing coaches: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve coaches",
		})
	}

	if coaches == nil {
		coaches = []models.Coach{}
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Coaches retrieved",
		Data: models.PaginatedResponse{
			Items:      coaches,
			Page:       page,
			Limit:      limit,
			TotalCount: total,
		},
	})
}

// GetReferralChain shows a coach's upline as the distribution engine would
// walk it, for support debugging
func (cc *CoachController) GetReferralChain(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid coach id",
		})
	}

	maxLevels, _ := parsePositiveInt(c.QueryParam("maxLevels"), 12)

	chain, err := cc.coaches.Chain(ctx, id, maxLevels)
	if err != nil {
		if err == models.ErrCoachNotFound {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Coach not found",
			})
		}
		log.Printf("Error walking referral chain for %s: %v", c.Param("id"), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to walk referral chain",
		})
	}

	if chain == nil {
		chain = []models.Coach{}
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral chain retrieved",
		Data:    chain,
	})
}
