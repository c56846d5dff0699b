package server

import (
	"encoding/base64"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/LuisNabil29/billSplitter/internal/domain"
	apperrors "github.com/LuisNabil29/billSplitter/internal/errors"
)

const maxReceiptBytes = 10 << 20 // 10 MiB

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// readReceiptImage pulls the receipt out of the multipart form and returns it
// base64 encoded together with its MIME type.
func readReceiptImage(c echo.Context) (imageBase64, mimeType string, err error) {
	fileHeader, err := c.FormFile("receipt")
	if err != nil {
		return "", "", apperrors.ValidationError("a receipt image is required in the \"receipt\" field")
	}
	if fileHeader.Size > maxReceiptBytes {
		return "", "", apperrors.ValidationError("receipt image exceeds the 10 MiB limit")
	}

	mimeType = fileHeader.Header.Get("Content-Type")
	if !allowedImageTypes[mimeType] {
		return "", "", apperrors.ValidationError("receipt must be a JPEG, PNG, or WebP image").
			WithField("content_type", mimeType)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", "", apperrors.InternalError("failed to read uploaded file", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxReceiptBytes+1))
	if err != nil {
		return "", "", apperrors.InternalError("failed to read uploaded file", err)
	}
	if len(data) > maxReceiptBytes {
		return "", "", apperrors.ValidationError("receipt image exceeds the 10 MiB limit")
	}

	return base64.StdEncoding.EncodeToString(data), mimeType, nil
}

type uploadResponse struct {
	Snapshot           *domain.Snapshot `json:"snapshot"`
	TotalOnReceipt     float64 `json:"totalOnReceipt"`
	TotalCalculated    float64 `json:"totalCalculated"`
	ValidationAttempts int     `json:"validationAttempts"`
	TotalsMatch        bool    `json:"totalsMatch"`
}

// handleUpload extracts line items from a receipt photo and creates a new
// session holding them.
func (s *Server) handleUpload(c echo.Context) error {
	imageBase64, mimeType, err := readReceiptImage(c)
	if err != nil {
		return err
	}

	result, err := s.app.UploadReceipt(c.Request().Context(), imageBase64, mimeType)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, uploadResponse{
		Snapshot:           result.Snapshot,
		TotalOnReceipt:     result.TotalOnReceipt,
		TotalCalculated:    result.TotalCalculated,
		ValidationAttempts: result.ValidationAttempts,
		TotalsMatch:        result.TotalsMatch,
	})
}

type verifyResponse struct {
	Snapshot        *domain.Snapshot `json:"snapshot"`
	IssueCount      int     `json:"issueCount"`
	TotalExpected   float64 `json:"totalExpected"`
	TotalCalculated float64 `json:"totalCalculated"`
}

// handleVerify re-checks a session's items against a receipt photo and
// records a verification issue on each flagged item.
func (s *Server) handleVerify(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	imageBase64, mimeType, err := readReceiptImage(c)
	if err != nil {
		return err
	}

	totalFromReceipt := 0.0
	if raw := c.FormValue("total"); raw != "" {
		totalFromReceipt, err = strconv.ParseFloat(raw, 64)
		if err != nil || totalFromReceipt < 0 {
			return apperrors.ValidationError("total must be a non-negative number")
		}
	}

	result, err := s.app.VerifyReceipt(c.Request().Context(), sessionID, imageBase64, mimeType, totalFromReceipt)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, verifyResponse{
		Snapshot:        result.Snapshot,
		IssueCount:      result.IssueCount,
		TotalExpected:   result.TotalExpected,
		TotalCalculated: result.TotalCalculated,
	})
}
