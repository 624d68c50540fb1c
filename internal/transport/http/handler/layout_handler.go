package handler

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cipherpanel/internal/domain"
	"cipherpanel/internal/feature/layout"
	resp "cipherpanel/internal/transport/http/response"
)

// LayoutHandler exposes the encrypted-layout lifecycle. Ciphertexts travel
// base64 in JSON; the server never sees a plaintext profile.
type LayoutHandler struct {
	Svc *layout.Service
	Log *zap.Logger
}

type profileIn struct {
	Activity   string `json:"activity"   binding:"required"`
	Preference string `json:"preference" binding:"required"`
}

// UpdateProfile PUT /profile
func (h *LayoutHandler) UpdateProfile(c *gin.Context) {
	var in profileIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, err.Error()))
		return
	}
	activity, err := base64.StdEncoding.DecodeString(in.Activity)
	if err != nil {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "activity: bad base64"))
		return
	}
	preference, err := base64.StdEncoding.DecodeString(in.Preference)
	if err != nil {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "preference: bad base64"))
		return
	}
	if err := h.Svc.UpdateProfile(c, c.GetString("userId"), activity, preference); err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(nil))
}

// Compute POST /layout/compute
func (h *LayoutHandler) Compute(c *gin.Context) {
	descriptor, err := h.Svc.ComputeUILayout(c, c.GetString("userId"))
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{
		"descriptor": base64.StdEncoding.EncodeToString(descriptor),
	}))
}

// RequestDecrypt POST /layout/decrypt
func (h *LayoutHandler) RequestDecrypt(c *gin.Context) {
	handle, err := h.Svc.RequestLayoutDecryption(c, c.GetString("userId"))
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{"handle": handle}))
}

// Encrypted GET /layout/encrypted
func (h *LayoutHandler) Encrypted(c *gin.Context) {
	descriptor, err := h.Svc.GetEncryptedLayout(c, c.GetString("userId"))
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{
		"descriptor": base64.StdEncoding.EncodeToString(descriptor),
	}))
}

// Decrypted GET /layout/decrypted
func (h *LayoutHandler) Decrypted(c *gin.Context) {
	rendered, err := h.Svc.GetDecryptedLayout(c, c.GetString("userId"))
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{"rendered": rendered}))
}

type callbackIn struct {
	Handle    string `json:"handle"    binding:"required,uuid"`
	Plaintext string `json:"plaintext" binding:"required"`
	Proof     string `json:"proof"     binding:"required"`
}

// Callback POST /oracle/callback，由解密预言机回调，不走用户鉴权
func (h *LayoutHandler) Callback(c *gin.Context) {
	var in callbackIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, err.Error()))
		return
	}
	plaintext, err := base64.StdEncoding.DecodeString(in.Plaintext)
	if err != nil {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "plaintext: bad base64"))
		return
	}
	proof, err := base64.StdEncoding.DecodeString(in.Proof)
	if err != nil {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "proof: bad base64"))
		return
	}
	if err := h.Svc.DecryptLayoutCallback(c, in.Handle, plaintext, proof); err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(nil))
}

// writeErr 领域错误 → 错误码
func (h *LayoutHandler) writeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, resp.Error(resp.CodeNotFound, "profile not found"))
	case errors.Is(err, domain.ErrAlreadyComputed):
		c.JSON(http.StatusConflict, resp.Error(resp.CodeAlreadyComputed, ""))
	case errors.Is(err, domain.ErrNotComputed):
		c.JSON(http.StatusConflict, resp.Error(resp.CodeNotComputed, ""))
	case errors.Is(err, domain.ErrAlreadyRevealed):
		c.JSON(http.StatusConflict, resp.Error(resp.CodeAlreadyRevealed, ""))
	case errors.Is(err, domain.ErrNotRevealed):
		c.JSON(http.StatusConflict, resp.Error(resp.CodeNotRevealed, ""))
	case errors.Is(err, domain.ErrUnknownHandle):
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeUnknownHandle, ""))
	case errors.Is(err, domain.ErrInvalidProof):
		c.JSON(http.StatusForbidden, resp.Error(resp.CodeInvalidProof, ""))
	case errors.Is(err, layout.ErrInvalidCiphertext):
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "invalid ciphertext"))
	default:
		h.Log.Error("layout op failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, resp.Error(resp.CodeServerError, ""))
	}
}
