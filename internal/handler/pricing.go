package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kalebecaldas/zorahapp/internal/pricing"
)

type PricingHandler struct {
	resolver *pricing.Resolver
}

func NewPricingHandler(r *pricing.Resolver) *PricingHandler {
	return &PricingHandler{resolver: r}
}

// Quote resolves a price for a procedure, optionally scoped to an
// insurance and a clinic.
func (h *PricingHandler) Quote(c *gin.Context) {
	procedure := c.Query("procedure")
	if procedure == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "procedure is required"})
		return
	}

	res, err := h.resolver.Resolve(procedure, c.Query("insurance"), c.Query("clinic"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if res == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "procedure not found"})
		return
	}
	c.JSON(http.StatusOK, res)
}
