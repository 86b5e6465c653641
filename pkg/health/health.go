package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports that the process is up. It doesn't check any dependency.
func Health(c *gin.Context) {
	// swagger:route GET /health health
	//
	// Health status
	//
	// Show service health status
	//
	// responses:
	//   200: Health
	c.JSON(http.StatusOK, Status{Status: "up"})
}

// swagger:model Health
type Status struct {
	Status string `json:"status"`
}
