package api

import (
	"context"                        // Context for Redis operations
	"custody_wallet/internal/domain" // Importing domain models
	"custody_wallet/internal/ledger" // Transaction lifecycle manager
	"custody_wallet/internal/utils"  // Utility functions
	"net/http"                       // HTTP status codes
	"strconv"                        // String conversion
	"time"                           // Time durations

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Exact decimal amounts
	"gorm.io/gorm"                  // GORM ORM library
)

// CreateTransactionRequest represents a transaction submission. The binding
// tags validate shape at the boundary; the lifecycle manager receives only
// well-typed arguments
type CreateTransactionRequest struct {
	Kind    string          `json:"kind" binding:"required,oneof=deposit buy withdraw"` // Transaction kind
	Amount  decimal.Decimal `json:"amount" binding:"required"`                          // Positive decimal amount
	Address string          `json:"address"`                                            // Destination address, withdrawals only
}

// CreateTransactionHandler submits a new pending transaction for the
// authenticated user. Withdrawals escrow the amount immediately.
func CreateTransactionHandler(svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req CreateTransactionRequest // Bind JSON request to struct
		// Validate request shape
		if err := c.ShouldBindJSON(&req); err != nil {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "reason": "validation"})
			return
		}
		// Hand the validated request to the lifecycle manager
		txn, err := svc.Create(c.Request.Context(), userID.(uint), domain.TxKind(req.Kind), req.Amount, req.Address)
		if err != nil {
			ledgerErrorResponse(c, err) // Map the rejection
			return
		}
		// Invalidate wallet and transaction history cache; a withdrawal has
		// already moved the visible balance
		if rdb != nil {
			utils.InvalidateUserCaches(context.Background(), rdb, uint64(userID.(uint)))
		}
		// Return the created transaction
		c.JSON(http.StatusCreated, gin.H{"transaction": txn})
	}
}

// GetWalletHandler returns the authenticated user's profile and balance
func GetWalletHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()                                   // Context for Redis operations
		cacheKey := "wallet:user:" + strconv.Itoa(int(userID.(uint))) // Cache key for the wallet view
		var user domain.User                                          // User struct to hold data
		// Try to get from cache
		if rdb != nil {
			found, err := utils.GetCache(ctx, rdb, cacheKey, &user)
			// If found in cache, return it
			if err == nil && found {
				c.JSON(http.StatusOK, gin.H{"user": user, "cached": true})
				return
			}
		}
		// If not in cache, fetch from DB
		if err := db.First(&user, userID).Error; err != nil {
			// Return not found if the user doesn't exist
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if rdb != nil {
			_ = utils.SetCache(ctx, rdb, cacheKey, user, 60*time.Second) // Cache the view for 60 seconds
		}
		c.JSON(http.StatusOK, gin.H{"user": user, "cached": false}) // Return the wallet view
	}
}

// GetTransactionHistoryHandler returns the authenticated user's transactions,
// newest first
func GetTransactionHistoryHandler(svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		page := 1      // Default page
		pageSize := 20 // Default page size
		// If page exists in query
		if p := c.Query("page"); p != "" {
			// Convert page to integer
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		// If page_size exists in query
		if ps := c.Query("page_size"); ps != "" {
			// Convert page_size to integer
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size if valid
			}
		}
		// Redis cache key
		cacheKey := "txhistory:user:" + strconv.Itoa(int(userID.(uint))) + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
		ctx := context.Background() // Context for Redis operations
		var cached struct {
			Transactions []domain.Transaction `json:"transactions"` // List of transactions
			Page         int                  `json:"page"`         // Current page
			PageSize     int                  `json:"page_size"`    // Page size
			Total        int64                `json:"total"`        // Total transactions
			TotalPages   int                  `json:"total_pages"`  // Total pages
		}
		// Try to get from cache
		if rdb != nil {
			found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
			// If found in cache, return it
			if err == nil && found {
				c.JSON(http.StatusOK, gin.H{
					"transactions": cached.Transactions, // Cached transactions
					"page":         cached.Page,         // Current page
					"page_size":    cached.PageSize,     // Page size
					"total":        cached.Total,        // Total transactions
					"total_pages":  cached.TotalPages,   // Total pages
					"cached":       true,
				})
				return
			}
		}
		// Fetch the page from the lifecycle manager
		transactions, total, err := svc.ListByUser(c.Request.Context(), userID.(uint), page, pageSize)
		if err != nil {
			ledgerErrorResponse(c, err) // Map the rejection
			return
		}
		// Calculate total pages
		totalPages := (int(total) + pageSize - 1) / pageSize
		resp := gin.H{
			"transactions": transactions, // List of transactions
			"page":         page,         // Current page
			"page_size":    pageSize,     // Page size
			"total":        total,        // Total transactions
			"total_pages":  totalPages,   // Total pages
			"cached":       false,        // Not from cache
		}
		// Cache the result for 60 seconds
		if rdb != nil {
			_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second)
		}
		c.JSON(http.StatusOK, resp) // Return transaction history
	}
}
