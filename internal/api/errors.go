package api

import (
	"custody_wallet/internal/ledger" // Lifecycle manager errors
	"errors"                         // Error inspection
	"net/http"                       // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// ledgerErrorResponse maps a lifecycle rejection to an HTTP status and a
// machine-distinguishable reason code
func ledgerErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reason": "validation"})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "reason": "not_found"})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reason": "insufficient_funds"})
	case errors.Is(err, ledger.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "reason": "invalid_state"})
	case errors.Is(err, ledger.ErrUserNotApproved):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "reason": "user_not_approved"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
