package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

func GetTokenFromHttpAuthHeader(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", errors.New("bearer token not found in Authorization header")
	}

	return strings.TrimSpace(token), nil
}
