// controllers/structure_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/coachdesk/commission_engine/models"
	"github.com/coachdesk/commission_engine/repositories"
)

// StructureController manages the versioned commission structures and the
// platform eligibility rules. Edits never touch existing ledger entries;
// they only change how future billing events resolve.
type StructureController struct {
	structures *repositories.StructureRepository
}

func NewStructureController(structures *repositories.StructureRepository) *StructureController {
	return &StructureController{structures: structures}
}

// CreateStructure stores a new (inactive) structure version
func (sc *StructureController) CreateStructure(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var structure models.CommissionStructure
	if err := c.Bind(&structure); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	structure.CreatedBy, _ = c.Get("email").(string)

	if err := sc.structures.CreateStructure(ctx, &structure); err != nil {
		if verr := structure.Validate(); verr != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid commission structure",
				Data:    verr.Error(),
			})
		}
		log.Printf("Error creating commission structure: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create commission structure",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Commission structure created",
		Data:    structure,
	})
}

// ListStructures returns every stored version, newest first
func (sc *StructureController) ListStructures(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	structures, err := sc.structures.ListStructures(ctx)
	if err != nil {
		log.Printf("Error listing commission structures: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve commission structures",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission structures retrieved",
		Data:    structures,
	})
}

// GetActiveStructure returns the version new billing events resolve against
func (sc *StructureController) GetActiveStructure(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	structure, err := sc.structures.ActiveStructure(ctx)
	if err != nil {
		if err == models.ErrNoActiveStructure {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "No active commission structure",
			})
		}
		log.Printf("Error fetching active structure: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve active structure",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Active commission structure retrieved",
		Data:    structure,
	})
}

// ActivateStructure switches the active version
func (sc *StructureController) ActivateStructure(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid version number",
		})
	}

	if err := sc.structures.ActivateVersion(ctx, version); err != nil {
		if err == models.ErrNoActiveStructure {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Structure version not found",
			})
		}
		log.Printf("Error activating structure version %d: %v", version, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to activate structure version",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission structure activated",
	})
}

// GetEligibilityRules returns the platform minimums
func (sc *StructureController) GetEligibilityRules(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rules, err := sc.structures.GetRules(ctx)
	if err != nil {
		log.Printf("Error fetching eligibility rules: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve eligibility rules",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Eligibility rules retrieved",
		Data:    rules,
	})
}

// UpdateEligibilityRules replaces the platform minimums
func (sc *StructureController) UpdateEligibilityRules(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var rules models.EligibilityRule
	if err := c.Bind(&rules); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&rules); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid eligibility rules",
			Data:    err.Error(),
		})
	}

	rules.UpdatedBy, _ = c.Get("email").(string)

	if err := sc.structures.UpdateRules(ctx, &rules); err != nil {
		log.Printf("Error updating eligibility rules: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update eligibility rules",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Eligibility rules updated",
		Data:    rules,
	})
}
