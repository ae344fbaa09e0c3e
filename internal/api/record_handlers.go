// Package api - Daily record handlers
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/export"
	"github.com/healthlog/healthlog/internal/field"
	"github.com/healthlog/healthlog/internal/models"
	"github.com/healthlog/healthlog/internal/query"
	"github.com/healthlog/healthlog/internal/record"
)

// RecordHandler handles daily record endpoints.
type RecordHandler struct {
	records *record.Service
	fields  *field.Service
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(records *record.Service, fields *field.Service) *RecordHandler {
	return &RecordHandler{records: records, fields: fields}
}

// SaveRequest carries the full field-name to value view for one date.
type SaveRequest struct {
	FieldValues map[string]string `json:"field_values" binding:"required"`
}

// SearchRequest is a declarative record query plus mandatory paging.
type SearchRequest struct {
	Spec        query.Spec         `json:"spec"`
	PageRequest *query.PageRequest `json:"page_request"`
}

// Save creates or fully replaces the caller's record for the given date.
// PUT /api/records/:date
func (h *RecordHandler) Save(c *gin.Context) {
	date, err := recordDateParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	flat, err := h.records.Save(currentUserID(c), date, req.FieldValues)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flat)
}

// GetByDate returns the caller's record for the given date.
// GET /api/records/:date
func (h *RecordHandler) GetByDate(c *gin.Context) {
	date, err := recordDateParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	flat, err := h.records.GetByDate(currentUserID(c), date)
	if err != nil {
		respondError(c, err)
		return
	}
	if flat == nil {
		respondError(c, errors.NewNotFoundError("daily record"))
		return
	}
	c.JSON(http.StatusOK, flat)
}

// List returns all of the caller's records, newest first.
// GET /api/records
func (h *RecordHandler) List(c *gin.Context) {
	flats, err := h.records.ListAllByUser(currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": flats})
}

// Delete removes the caller's record for the given date along with all of
// its stored values.
// DELETE /api/records/:date
func (h *RecordHandler) Delete(c *gin.Context) {
	date, err := recordDateParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.records.Delete(currentUserID(c), date); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "record deleted"})
}

// Search runs a declarative, paged query over the caller's records.
// POST /api/records/search
func (h *RecordHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	page, err := h.records.Search(currentUserID(c), req.Spec, req.PageRequest)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Export downloads the caller's records as an xlsx workbook with one
// column per active field.
// GET /api/records/export
func (h *RecordHandler) Export(c *gin.Context) {
	defs, err := h.fields.ListActive()
	if err != nil {
		respondError(c, err)
		return
	}
	flats, err := h.records.ListAllByUser(currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	data, err := export.Records(flats, defs)
	if err != nil {
		respondError(c, errors.NewInternalError(err))
		return
	}

	filename := fmt.Sprintf("records-%s.xlsx", time.Now().Format(models.DateLayout))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func recordDateParam(c *gin.Context) (time.Time, error) {
	raw := c.Param("date")
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, errors.NewValidationError("date",
			"must be a date in the form "+models.DateLayout)
	}
	return t, nil
}
