package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

const (
	defaultOverviewLimit = 50
	maxOverviewLimit     = 200
)

// graphOverviewHandler handles GET /api/v1/graph/overview?limit=.
func (s *Server) graphOverviewHandler(c *echo.Context) error {
	limit := defaultOverviewLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit: must be a positive integer")
		}
		if n > maxOverviewLimit {
			n = maxOverviewLimit
		}
		limit = n
	}

	overview, err := s.graph.GraphOverview(c.Request().Context(), limit)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, overview)
}
