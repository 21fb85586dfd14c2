package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	licensedomain "github.com/glowpress/keyline/internal/license/domain"
	"github.com/glowpress/keyline/pkg/db/pagination"
)

func (s *Server) ActivateLicense(c *gin.Context) {
	var req licensedomain.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.IPAddress = c.ClientIP()

	result, err := s.licenseSvc.Activate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"license": result,
	})
}

func (s *Server) ValidateLicense(c *gin.Context) {
	var req licensedomain.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.IPAddress = c.ClientIP()

	result, err := s.licenseSvc.Validate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) DeactivateLicense(c *gin.Context) {
	var req licensedomain.DeactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.licenseSvc.Deactivate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"current_activations": result.CurrentActivations,
		"status":              result.Status,
	})
}

func (s *Server) IssueLicense(c *gin.Context) {
	var req licensedomain.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.licenseSvc.Issue(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) GetLicense(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))

	result, err := s.licenseSvc.Get(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) ListLicenses(c *gin.Context) {
	req := licensedomain.ListRequest{
		Pagination: paginationFromQuery(c),
		Status:     strings.TrimSpace(c.Query("status")),
		Plan:       strings.TrimSpace(c.Query("plan")),
	}

	result, err := s.licenseSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) ListLicenseValidations(c *gin.Context) {
	req := licensedomain.ListValidationsRequest{
		Pagination: paginationFromQuery(c),
		LicenseKey: strings.TrimSpace(c.Param("key")),
	}

	result, err := s.licenseSvc.ListValidations(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func paginationFromQuery(c *gin.Context) pagination.Pagination {
	p := pagination.Pagination{
		PageToken: strings.TrimSpace(c.Query("page_token")),
	}
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			p.PageSize = size
		}
	}
	return p
}
