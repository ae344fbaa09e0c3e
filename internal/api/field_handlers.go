// Package api - Field catalog handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/field"
	"github.com/healthlog/healthlog/internal/models"
)

// FieldHandler handles field catalog endpoints.
type FieldHandler struct {
	fields *field.Service
}

// NewFieldHandler creates a new field handler.
func NewFieldHandler(fields *field.Service) *FieldHandler {
	return &FieldHandler{fields: fields}
}

// FieldRequest represents a field definition create/update payload.
type FieldRequest struct {
	Name       string   `json:"name" binding:"required"`
	DataType   string   `json:"data_type" binding:"required"`
	Unit       string   `json:"unit"`
	IsRequired bool     `json:"is_required"`
	Options    []string `json:"options"`
	IsActive   *bool    `json:"is_active"`
}

func (r FieldRequest) toModel() *models.FieldDefinition {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &models.FieldDefinition{
		Name:       r.Name,
		DataType:   r.DataType,
		Unit:       r.Unit,
		IsRequired: r.IsRequired,
		Options:    pq.StringArray(r.Options),
		IsActive:   active,
	}
}

// ListActive returns the active field definitions that drive the daily
// record form.
// GET /api/fields
func (h *FieldHandler) ListActive(c *gin.Context) {
	defs, err := h.fields.ListActive()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": defs})
}

// ListAll returns every field definition, inactive ones included.
// GET /admin/fields?search=
func (h *FieldHandler) ListAll(c *gin.Context) {
	defs, err := h.fields.ListAll(c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": defs})
}

// Get returns one field definition.
// GET /admin/fields/:id
func (h *FieldHandler) Get(c *gin.Context) {
	id, err := fieldIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	def, err := h.fields.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// Create registers a new field definition.
// POST /admin/fields
func (h *FieldHandler) Create(c *gin.Context) {
	var req FieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	def, err := h.fields.Create(req.toModel())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, def)
}

// Update replaces a field definition's attributes.
// PUT /admin/fields/:id
func (h *FieldHandler) Update(c *gin.Context) {
	id, err := fieldIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req FieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	def, err := h.fields.Update(id, req.toModel())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// Delete deactivates a field definition by default. With ?hard=true the
// definition and all values stored under it are removed permanently, which
// additionally requires ?cascade=true.
// DELETE /admin/fields/:id
func (h *FieldHandler) Delete(c *gin.Context) {
	id, err := fieldIDParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("hard") == "true" {
		if err := h.fields.HardDelete(id, c.Query("cascade") == "true"); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "field permanently deleted"})
		return
	}

	if err := h.fields.SoftDelete(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "field deactivated"})
}

func fieldIDParam(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		return 0, errors.NewValidationError("id", "invalid field id")
	}
	return id, nil
}
