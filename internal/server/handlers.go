package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/LuisNabil29/billSplitter/internal/allocation"
	"github.com/LuisNabil29/billSplitter/internal/app"
	"github.com/LuisNabil29/billSplitter/internal/domain"
	apperrors "github.com/LuisNabil29/billSplitter/internal/errors"
	"github.com/LuisNabil29/billSplitter/internal/vision"
)

// mapError translates domain and application errors into structured gateway
// errors with the right HTTP status.
func mapError(err error) error {
	var validation *allocation.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &validation):
		return apperrors.ValidationError(validation.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		return apperrors.NotFoundError("session not found")
	case errors.Is(err, domain.ErrItemNotFound):
		return apperrors.NotFoundError("item not found")
	case errors.Is(err, domain.ErrParticipantNotFound):
		return apperrors.NotFoundError("participant not found")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return apperrors.UnavailableError("session store unavailable", err)
	case errors.Is(err, app.ErrVisionDisabled):
		return apperrors.UnavailableError("receipt processing is not configured", err)
	case errors.Is(err, vision.ErrNoItems):
		return apperrors.ValidationError("no line items found")
	case errors.Is(err, vision.ErrUnavailable):
		return apperrors.ExternalError("receipt processing failed", err)
	default:
		return err
	}
}

func sessionIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid session id")
	}
	return id, nil
}

func itemIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid item id")
	}
	return id, nil
}

// --- Session lifecycle ---

func (s *Server) handleCreateSession(c echo.Context) error {
	session, err := s.app.CreateSession(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (s *Server) handleGetSession(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}
	snapshot, err := s.app.GetSnapshot(c.Request().Context(), sessionID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}
	if err := s.app.DeleteSession(c.Request().Context(), sessionID); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Session mutations ---

type addItemsRequest struct {
	Items []domain.ItemDraft `json:"items"`
}

func (s *Server) handleAddItems(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}
	var req addItemsRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	snapshot, err := s.app.AddItems(c.Request().Context(), sessionID, req.Items)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

type joinRequest struct {
	Name string `json:"name"`
}

type joinResponse struct {
	Participant *domain.Participant `json:"participant"`
	Snapshot    *domain.Snapshot    `json:"snapshot"`
}

func (s *Server) handleJoin(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}
	var req joinRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	participant, snapshot, err := s.app.Join(c.Request().Context(), sessionID, req.Name)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, joinResponse{Participant: participant, Snapshot: snapshot})
}

type assignRequest struct {
	ItemID        uuid.UUID `json:"itemId"`
	ParticipantID uuid.UUID `json:"participantId"`
	Quantity      float64   `json:"quantity"`
}

func (s *Server) handleAssign(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.ItemID == uuid.Nil || req.ParticipantID == uuid.Nil {
		return apperrors.ValidationError("itemId and participantId are required")
	}
	snapshot, err := s.app.AssignQuantity(c.Request().Context(), sessionID, req.ItemID, req.ParticipantID, req.Quantity)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

type updateItemRequest struct {
	Name     *string  `json:"name"`
	Price    *float64 `json:"price"`
	Quantity *float64 `json:"quantity"`
}

func (s *Server) handleUpdateItem(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}
	itemID, err := itemIDParam(c)
	if err != nil {
		return err
	}
	var req updateItemRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Name == nil && req.Price == nil && req.Quantity == nil {
		return apperrors.ValidationError("nothing to update")
	}
	snapshot, err := s.app.UpdateItem(c.Request().Context(), sessionID, itemID, allocation.ItemUpdate{
		Name:     req.Name,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleApplyFix(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}
	itemID, err := itemIDParam(c)
	if err != nil {
		return err
	}
	snapshot, err := s.app.ApplySuggestedFix(c.Request().Context(), sessionID, itemID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleDismissIssue(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}
	itemID, err := itemIDParam(c)
	if err != nil {
		return err
	}
	snapshot, err := s.app.DismissIssue(c.Request().Context(), sessionID, itemID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, snapshot)
}
