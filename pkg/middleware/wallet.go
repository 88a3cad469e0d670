package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/response"
)

const (
	// WalletHeaderKey carries the caller's wallet address. It is not verified.
	WalletHeaderKey = "X-Wallet-Address"

	// WalletKey is the gin context key; shared with the request logger.
	WalletKey = log.FieldWallet
)

// Wallet reads the wallet address header, if present, into the gin context.
func Wallet() gin.HandlerFunc {
	return func(c *gin.Context) {
		if wallet := strings.TrimSpace(c.GetHeader(WalletHeaderKey)); wallet != "" {
			c.Set(WalletKey, wallet)
		}
		c.Next()
	}
}

// RequireWallet rejects requests without a wallet address header.
func RequireWallet() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetWallet(c) == "" {
			response.Unauthorized(c, "wallet not connected")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetWallet extracts the wallet address from Gin context.
func GetWallet(c *gin.Context) string {
	if wallet, exists := c.Get(WalletKey); exists {
		if s, ok := wallet.(string); ok {
			return s
		}
	}
	return ""
}
