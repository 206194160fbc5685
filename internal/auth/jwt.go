package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	claimSubject = "sub"
	claimType    = "typ"
	claimCaller  = "caller"

	callerTokenType = "control_channel"
)

// JWTMiddleware returns a JWT auth middleware configured for HS256
// tokens. The token is read from the Authorization header or, for
// websocket upgrades where headers are awkward to set, a query param.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		TokenLookup:   "header:Authorization:Bearer ,query:token",
		Skipper:       skipper,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return jwt.MapClaims{}
		},
	})
}

// GenerateCallerToken creates a signed JWT identifying one caller
// process on the control channel.
func GenerateCallerToken(callerID, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(callerID) == "" {
		return "", time.Time{}, fmt.Errorf("caller id is required")
	}
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, fmt.Errorf("jwt secret is required")
	}
	if expiresIn <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt expires in must be positive")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(expiresIn)
	claims := jwt.MapClaims{
		claimSubject: callerID,
		claimCaller:  callerID,
		claimType:    callerTokenType,
		"iat":        now.Unix(),
		"exp":        expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// CallerIDFromContext extracts the caller id from JWT claims.
func CallerIDFromContext(c echo.Context) (string, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil || !token.Valid {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	if claimString(claims, claimType) != callerTokenType {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid caller token")
	}
	if callerID := claimString(claims, claimCaller); callerID != "" {
		return callerID, nil
	}
	if callerID := claimString(claims, claimSubject); callerID != "" {
		return callerID, nil
	}
	return "", echo.NewHTTPError(http.StatusUnauthorized, "caller id missing")
}

func claimString(claims jwt.MapClaims, key string) string {
	raw, ok := claims[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(raw)
	}
}
