package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"solana-airdrop/internal/airdrop"
)

type handler struct {
	svc     AirdropService
	timeout time.Duration
	logger  logrus.FieldLogger
}

func (h *handler) register(rg *gin.RouterGroup) {
	rg.POST("/submit", h.handleSubmit)
	rg.GET("/status/:publicHash", h.handleStatus)
	rg.POST("/collectAirdrop", h.handleClaim)
}

func (h *handler) handleSubmit(c *gin.Context) {
	var req airdrop.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, airdrop.ErrMissingFields)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.svc.Submit(ctx, req); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Wallet successfully submitted!"})
}

func (h *handler) handleStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	view, err := h.svc.Status(ctx, c.Param("publicHash"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) handleClaim(c *gin.Context) {
	var req struct {
		PublicHash string `json:"publicHash"`
	}
	// An empty body is an unknown hash, not a malformed request.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(c, airdrop.ErrMissingFields)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	receipt, err := h.svc.Claim(ctx, req.PublicHash)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Airdrop successful!",
		"claimedAt": receipt.ClaimedAt,
		"eventId":   receipt.EventID,
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind airdrop.Kind) int {
	switch kind {
	case airdrop.KindValidation, airdrop.KindConflict, airdrop.KindNotEligible:
		return http.StatusBadRequest
	case airdrop.KindNotFound:
		return http.StatusNotFound
	case airdrop.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(c *gin.Context, err error) {
	kind := airdrop.KindOf(err)
	message := "Internal Server Error"

	var e *airdrop.Error
	if kind != airdrop.KindInternal && errors.As(err, &e) {
		message = e.Message
	}
	if kind == airdrop.KindInternal {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("internal error")
	}

	c.JSON(statusFor(kind), gin.H{"error": message, "code": airdrop.CodeOf(err)})
}
