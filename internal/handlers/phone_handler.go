package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/heartline/backend/internal/services"
)

type PhoneHandler struct {
	verificationService *services.VerificationService
}

func NewPhoneHandler(verificationService *services.VerificationService) *PhoneHandler {
	return &PhoneHandler{verificationService: verificationService}
}

// StartVerification sends a verification code to the submitted phone number
func (h *PhoneHandler) StartVerification(c *gin.Context) {
	var req struct {
		Phone string `json:"phone"`
	}
	// A malformed body is reported the same way as a missing phone.
	_ = c.ShouldBindJSON(&req)

	result, err := h.verificationService.Start(requestContext(c), c.GetHeader("Authorization"), req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"request_id": result.RequestID,
		"message":    "Verification code sent",
	})
}

// CheckVerification verifies the code for the caller's pending request
func (h *PhoneHandler) CheckVerification(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	_ = c.ShouldBindJSON(&req)

	result, err := h.verificationService.Check(requestContext(c), c.GetHeader("Authorization"), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":             true,
		"message":        "Phone number verified",
		"phone_verified": result.Verified,
	})
}

// GetStatus reports where the caller is in the verification flow
func (h *PhoneHandler) GetStatus(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": services.MsgAuthRequired})
		return
	}

	record, err := h.verificationService.Status(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		respondError(c, err)
		return
	}

	var phone interface{}
	if record.PhoneE164 != nil {
		phone = *record.PhoneE164
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":             true,
		"state":          record.State(),
		"phone":          phone,
		"phone_verified": record.PhoneVerified,
		"pending":        record.HasPendingRequest(),
	})
}

func requestContext(c *gin.Context) context.Context {
	return services.WithRequestMeta(c.Request.Context(), services.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}

// RegisterRoutes mounts the phone verification endpoints on rg. startLimit
// runs before /phone/start only; auth guards /phone/status.
func (h *PhoneHandler) RegisterRoutes(rg gin.IRouter, auth, startLimit gin.HandlerFunc) {
	phone := rg.Group("/phone")
	{
		phone.POST("/start", startLimit, h.StartVerification)
		phone.POST("/check", h.CheckVerification)
		phone.GET("/status", auth, h.GetStatus)
	}
}
