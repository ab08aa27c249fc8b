package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/set-night/agentchat/internal/domain"
)

const platformKey = "platform"

type platformQuery struct {
	Platform string `query:"platform" validate:"required,platform"`
}

// Platform validates the required ?platform= query parameter and stores the
// parsed value on the context.
func Platform() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var q platformQuery
			if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
				return err
			}
			if err := c.Validate(&q); err != nil {
				return err
			}
			p, err := domain.ParsePlatform(q.Platform)
			if err != nil {
				return err
			}
			c.Set(platformKey, p)
			return next(c)
		}
	}
}

// GetPlatform returns the platform stored by Platform.
func GetPlatform(c echo.Context) domain.Platform {
	p, _ := c.Get(platformKey).(domain.Platform)
	return p
}
