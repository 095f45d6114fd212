package api

import (
	"net/http"

	"gamata/fitness-core/internal/domain"

	"github.com/gin-gonic/gin"
)

// AuthHandler exposes the identity asserted by the bearer token. Accounts and token
// issuance live in the external identity service.
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// IdentityResponse describes the authenticated caller.
type IdentityResponse struct {
	UserID string      `json:"userId"`
	Role   domain.Role `json:"role,omitempty"`
}

// Me godoc
// @Summary Identify the caller
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} IdentityResponse
// @Failure 401 {object} errorResponse "Unauthorized"
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	resp := IdentityResponse{UserID: userID.Hex()}
	// Unknown roles are not echoed back.
	if role, err := getUserRoleFromContext(c); err == nil && role.Valid() {
		resp.Role = role
	}
	c.JSON(http.StatusOK, resp)
}
