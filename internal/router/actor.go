package router

import (
	"errors"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	ActorHeader = "X-Actor-ID"
	actorKey    = "actor"
)

// ActorMiddleware resolves the calling user from the X-Actor-ID header.
func ActorMiddleware(users storage.UserDirectory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(ActorHeader)
			if raw == "" {
				return apperr.NewUnauthenticated("missing " + ActorHeader + " header")
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				return apperr.NewUnauthenticated("malformed " + ActorHeader + " header")
			}

			user, err := users.GetUser(c.Request().Context(), id)
			var nf *apperr.NotFoundError
			if errors.As(err, &nf) {
				return apperr.NewUnauthenticated("unknown actor")
			}
			if err != nil {
				return err
			}
			if !user.Active {
				return apperr.NewUnauthenticated("actor is deactivated")
			}

			c.Set(actorKey, user.Actor())
			c.Set("actor_id", user.ID.String())
			return next(c)
		}
	}
}

func actorFrom(c echo.Context) domain.Actor {
	a, _ := c.Get(actorKey).(domain.Actor)
	return a
}
