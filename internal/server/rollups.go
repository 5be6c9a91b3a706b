package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/smallbiznis/usagestats/internal/pipeline"
	"github.com/smallbiznis/usagestats/internal/rollup"
)

// snapshot returns the latest published run, or ErrNoSnapshot before the
// first successful refresh.
func (s *Server) snapshot() (*pipeline.Result, error) {
	result := s.holder.Latest()
	if result == nil {
		return nil, ErrNoSnapshot
	}
	return result, nil
}

// tableFilter carries the optional institution/year narrowing of list calls.
type tableFilter struct {
	Institution string
	Year        int
	HasYear     bool
}

func parseTableFilter(c *gin.Context) (tableFilter, error) {
	f := tableFilter{Institution: strings.TrimSpace(c.Query("institution"))}
	rawYear := strings.TrimSpace(c.Query("year"))
	if rawYear == "" {
		return f, nil
	}
	year, err := strconv.Atoi(rawYear)
	if err != nil {
		return f, newValidationError("year", "invalid_year", "invalid year")
	}
	f.Year, f.HasYear = year, true
	return f, nil
}

func (s *Server) GetRollupSummary(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"run_id":       snap.RunID.String(),
		"generated_at": snap.GeneratedAt,
		"tables": gin.H{
			"global_monthly_users":            len(snap.Tables.GlobalMonthlyUsers),
			"institution_monthly_codes":       len(snap.Tables.InstitutionMonthlyCodes),
			"institution_monthly_users":       len(snap.Tables.InstitutionMonthlyUsers),
			"institution_database_yearly":     len(snap.Tables.InstitutionDatabaseYearly),
			"subscribers_by_status":           len(snap.Tables.SubscribersByStatus),
			"subscribers_by_year_created":     len(snap.Tables.SubscribersByYearCreated),
			"subscribers_by_year_last_access": len(snap.Tables.SubscribersByYearLastAccess),
		},
		"rejected_rows": len(snap.Errors),
		"warnings":      len(snap.Warnings),
	}})
}

func (s *Server) ListGlobalMonthlyUsers(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filter, err := parseTableFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows := snap.Tables.GlobalMonthlyUsers
	if filter.HasYear {
		rows = lo.Filter(rows, func(r rollup.MonthlyUsersRow, _ int) bool {
			return r.Year == filter.Year
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) ListInstitutionMonthlyCodes(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filter, err := parseTableFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows := lo.Filter(snap.Tables.InstitutionMonthlyCodes, func(r rollup.InstitutionMonthlyCodesRow, _ int) bool {
		if filter.Institution != "" && r.InstitutionName != filter.Institution {
			return false
		}
		return !filter.HasYear || r.Year == filter.Year
	})
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) ListInstitutionMonthlyUsers(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filter, err := parseTableFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows := lo.Filter(snap.Tables.InstitutionMonthlyUsers, func(r rollup.InstitutionMonthlyUsersRow, _ int) bool {
		if filter.Institution != "" && r.InstitutionName != filter.Institution {
			return false
		}
		return !filter.HasYear || r.Year == filter.Year
	})
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) ListInstitutionDatabaseYearly(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filter, err := parseTableFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows := lo.Filter(snap.Tables.InstitutionDatabaseYearly, func(r rollup.InstitutionDatabaseYearRow, _ int) bool {
		if filter.Institution != "" && r.InstitutionName != filter.Institution {
			return false
		}
		return !filter.HasYear || r.Year == filter.Year
	})
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) ListSubscribersByStatus(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	institution := strings.TrimSpace(c.Query("institution"))

	rows := lo.Filter(snap.Tables.SubscribersByStatus, func(r rollup.SubscriberStatusRow, _ int) bool {
		return institution == "" || r.InstitutionName == institution
	})
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) ListSubscribersByYearCreated(c *gin.Context) {
	s.listSubscriberYearTable(c, func(snap *pipeline.Result) []rollup.SubscriberStatusYearRow {
		return snap.Tables.SubscribersByYearCreated
	})
}

func (s *Server) ListSubscribersByYearLastAccess(c *gin.Context) {
	s.listSubscriberYearTable(c, func(snap *pipeline.Result) []rollup.SubscriberStatusYearRow {
		return snap.Tables.SubscribersByYearLastAccess
	})
}

func (s *Server) listSubscriberYearTable(c *gin.Context, table func(*pipeline.Result) []rollup.SubscriberStatusYearRow) {
	snap, err := s.snapshot()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filter, err := parseTableFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows := lo.Filter(table(snap), func(r rollup.SubscriberStatusYearRow, _ int) bool {
		if filter.Institution != "" && r.InstitutionName != filter.Institution {
			return false
		}
		return !filter.HasYear || (r.Year != nil && *r.Year == filter.Year)
	})
	c.JSON(http.StatusOK, gin.H{"data": rows})
}
