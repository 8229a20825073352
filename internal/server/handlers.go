package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dshills/overlapengine/internal/access"
	"github.com/dshills/overlapengine/internal/premise"
	"github.com/dshills/overlapengine/internal/revision"
	"github.com/dshills/overlapengine/internal/schema"
	"github.com/dshills/overlapengine/internal/style"
)

// reportResponse is the non-debug success body.
type reportResponse struct {
	Report string `json:"report"`
}

// debugResponse is the run envelope plus the caller's remaining credits
// when the gate meters usage.
type debugResponse struct {
	schema.Envelope
	CreditsRemaining *int `json:"credits_remaining,omitempty"`
}

func (s *Server) handleReport(c *gin.Context) {
	var req premise.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Set(styleKey, strings.TrimSpace(req.StyleID))

	ctx := c.Request.Context()
	user := strings.TrimSpace(c.GetHeader(s.userHeader))
	if err := s.gate.Check(ctx, user); err != nil {
		c.JSON(accessStatus(err), gin.H{"error": err.Error()})
		return
	}

	res, err := s.gen.Generate(ctx, req)
	if err != nil {
		s.logger(c).Error("report generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	remaining, err := s.gate.Consume(ctx, user)
	if err != nil {
		// The report was produced; the charge lost a race with another request.
		s.logger(c).Warn("credit charge failed", zap.String("user", user), zap.Error(err))
	}

	if !req.Debug {
		c.JSON(http.StatusOK, reportResponse{Report: res.Report})
		return
	}
	resp := debugResponse{Envelope: res.Envelope(s.version, true)}
	resp.Meta.Revision = revision.Between(res.RejectedDraft, res.Report).Patch
	if err == nil && remaining >= 0 {
		resp.CreditsRemaining = &remaining
	}
	c.JSON(http.StatusOK, resp)
}

// stylesResponse lists the available contracts.
type stylesResponse struct {
	Default string           `json:"default"`
	Styles  []style.Contract `json:"styles"`
}

func (s *Server) handleStyles(c *gin.Context) {
	reg := s.gen.Styles()
	c.JSON(http.StatusOK, stylesResponse{Default: reg.Default().ID, Styles: reg.All()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.version})
}

// accessStatus maps a gate error to its HTTP status.
func accessStatus(err error) int {
	switch {
	case errors.Is(err, access.ErrNoUser):
		return http.StatusUnauthorized
	case errors.Is(err, access.ErrInactive):
		return http.StatusForbidden
	case errors.Is(err, access.ErrNoCredits):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
