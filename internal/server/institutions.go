package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/usagestats/internal/taxonomy"
)

func (s *Server) ListInstitutions(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snap.Dataset.Institutions()})
}

// GetInstitution resolves one institution by exact, case-sensitive name.
func (s *Server) GetInstitution(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	name := c.Param("name")
	view, err := snap.Dataset.Institution(name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"name":      view.Name,
		"users":     view.Users(),
		"databases": view.Databases(),
		"years":     view.Years(),
	}})
}

func (s *Server) ListUserDatabases(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rawID := strings.TrimSpace(c.Param("id"))
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_user_id", "invalid user id"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snap.Dataset.UserDatabases(userID)})
}

// ListDatabaseUsers lists the distinct users that queried a database category.
// Category names are exact, typos and all.
func (s *Server) ListDatabaseUsers(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	category := taxonomy.Category(c.Param("category"))
	c.JSON(http.StatusOK, gin.H{"data": snap.Dataset.DatabaseUsers(category)})
}
