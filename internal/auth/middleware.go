package auth

import (
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/logger"
	"github.com/labstack/echo/v4"
)

type Middleware struct {
	resolver *Resolver
}

func NewMiddleware(resolver *Resolver) *Middleware {
	return &Middleware{resolver: resolver}
}

// RequireOperator authenticates the request with its Autodesk bearer token
// and stores the operator and the token in the echo context.
func (m *Middleware) RequireOperator() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractBearerToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, msgMissingAuthorization)
			}

			op, err := m.resolver.Resolve(c.Request().Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, apperrors.ErrExpired):
					return echo.NewHTTPError(http.StatusUnauthorized, msgTokenExpired)
				case errors.Is(err, apperrors.ErrUnauthorized):
					return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidOrExpiredToken)
				default:
					c.Logger().Errorf("resolve operator: %s", logger.SanitizeLogMessage(err.Error()))
					return echo.NewHTTPError(http.StatusBadGateway, msgProfileUnavailable)
				}
			}

			c.Set(ContextKeyOperator, op)
			c.Set(ContextKeyToken, token)

			return next(c)
		}
	}
}

func extractBearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get(headerAuthorization)
	if authHeader == "" {
		return ""
	}

	parts := strings.Fields(authHeader)
	if len(parts) != authHeaderParts || strings.ToLower(parts[0]) != bearerScheme {
		return ""
	}

	return parts[1]
}

func GetOperator(c echo.Context) (*Operator, error) {
	v := c.Get(ContextKeyOperator)
	if v == nil {
		return nil, apperrors.Unauthorized(msgOperatorNotInContext)
	}

	op, ok := v.(*Operator)
	if !ok {
		return nil, apperrors.InternalServer(msgInvalidOperatorCtx, nil)
	}

	return op, nil
}

func GetToken(c echo.Context) (string, error) {
	token, ok := c.Get(ContextKeyToken).(string)
	if !ok || token == "" {
		return "", apperrors.Unauthorized(msgTokenNotInContext)
	}
	return token, nil
}
