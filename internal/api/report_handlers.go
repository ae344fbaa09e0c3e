// Package api - Report handlers
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/export"
	"github.com/healthlog/healthlog/internal/models"
	"github.com/healthlog/healthlog/internal/report"
)

// ReportHandler handles aggregation endpoints. Every endpoint takes the
// same three query parameters: field, start and end (dates inclusive).
type ReportHandler struct {
	reports *report.Service
}

// NewReportHandler creates a new report handler.
func NewReportHandler(reports *report.Service) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Number returns the trend plus statistics of a numeric field.
// GET /api/reports/number?field=&start=&end=
func (h *ReportHandler) Number(c *gin.Context) {
	fieldName, start, end, err := reportParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	rep, err := h.reports.NumberReport(currentUserID(c), fieldName, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Trend returns only the (date, value) series of a numeric field. With
// ?with_nulls=true, dates recorded without a value for this field appear
// with an empty value.
// GET /api/reports/trend?field=&start=&end=
func (h *ReportHandler) Trend(c *gin.Context) {
	fieldName, start, end, err := reportParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var points []report.TrendPoint
	if c.Query("with_nulls") == "true" {
		points, err = h.reports.TrendWithNulls(currentUserID(c), fieldName, start, end)
	} else {
		points, err = h.reports.Trend(currentUserID(c), fieldName, start, end)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trend": points})
}

// EnumDistribution returns occurrence counts and percentages per enum
// value.
// GET /api/reports/enum/distribution?field=&start=&end=
func (h *ReportHandler) EnumDistribution(c *gin.Context) {
	fieldName, start, end, err := reportParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	rep, err := h.reports.EnumDistribution(currentUserID(c), fieldName, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// EnumTrend returns per-date occurrence counts per enum value.
// GET /api/reports/enum/trend?field=&start=&end=
func (h *ReportHandler) EnumTrend(c *gin.Context) {
	fieldName, start, end, err := reportParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	rep, err := h.reports.EnumTrend(currentUserID(c), fieldName, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Text returns keyword frequency and length statistics of a text field.
// GET /api/reports/text?field=&start=&end=
func (h *ReportHandler) Text(c *gin.Context) {
	fieldName, start, end, err := reportParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	rep, err := h.reports.TextAnalysis(currentUserID(c), fieldName, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// ExportNumber downloads a numeric field's report as an xlsx workbook.
// GET /api/reports/number/export?field=&start=&end=
func (h *ReportHandler) ExportNumber(c *gin.Context) {
	fieldName, start, end, err := reportParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	rep, err := h.reports.NumberReport(currentUserID(c), fieldName, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	data, err := export.NumberReport(fieldName, rep)
	if err != nil {
		respondError(c, errors.NewInternalError(err))
		return
	}

	filename := fmt.Sprintf("report-%s-%s-%s.xlsx",
		fieldName, start.Format(models.DateLayout), end.Format(models.DateLayout))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func reportParams(c *gin.Context) (string, time.Time, time.Time, error) {
	fieldName := c.Query("field")
	if fieldName == "" {
		return "", time.Time{}, time.Time{}, errors.NewValidationError("field", "field is required")
	}
	start, err := parseDateParam(c, "start")
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	end, err := parseDateParam(c, "end")
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return "", time.Time{}, time.Time{}, errors.NewValidationError("end", "end must not precede start")
	}
	return fieldName, start, end, nil
}
