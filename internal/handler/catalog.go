package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kalebecaldas/zorahapp/internal/model"
	"github.com/kalebecaldas/zorahapp/internal/repository"
	"github.com/kalebecaldas/zorahapp/internal/service"
)

type CatalogHandler struct {
	service *service.CatalogService
}

func NewCatalogHandler(s *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: s}
}

func (h *CatalogHandler) ListClinics(c *gin.Context) {
	clinics, err := h.service.ListClinics()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, clinics)
}

func (h *CatalogHandler) SaveClinic(c *gin.Context) {
	var clinic model.Clinic
	if err := c.ShouldBindJSON(&clinic); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SaveClinic(&clinic); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, clinic)
}

func (h *CatalogHandler) DeleteClinic(c *gin.Context) {
	h.deleteByID(c, h.service.DeleteClinic)
}

func (h *CatalogHandler) ListInsurances(c *gin.Context) {
	insurances, err := h.service.ListInsurances()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, insurances)
}

func (h *CatalogHandler) SaveInsurance(c *gin.Context) {
	var ins model.Insurance
	if err := c.ShouldBindJSON(&ins); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SaveInsurance(&ins); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ins)
}

func (h *CatalogHandler) DeleteInsurance(c *gin.Context) {
	h.deleteByID(c, h.service.DeleteInsurance)
}

func (h *CatalogHandler) ListProcedures(c *gin.Context) {
	procedures, err := h.service.ListProcedures()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, procedures)
}

func (h *CatalogHandler) SaveProcedure(c *gin.Context) {
	var p model.Procedure
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SaveProcedure(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) DeleteProcedure(c *gin.Context) {
	h.deleteByID(c, h.service.DeleteProcedure)
}

func (h *CatalogHandler) ListPrices(c *gin.Context) {
	clinicID, err := strconv.ParseUint(c.Query("clinic_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clinic_id is required"})
		return
	}
	prices, err := h.service.ListPricesByClinic(uint(clinicID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prices)
}

func (h *CatalogHandler) SavePrice(c *gin.Context) {
	var p model.ProcedurePrice
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SavePrice(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) DeletePrice(c *gin.Context) {
	h.deleteByID(c, h.service.DeletePrice)
}

func (h *CatalogHandler) deleteByID(c *gin.Context, del func(uint) error) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	if err := del(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
