package user

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/store"
)

type userContextKey string

const ctxUserKey = userContextKey("voicepartner-platform/user")

func userContext(c *fiber.Ctx) context.Context {
	if c == nil {
		return context.Background()
	}
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}

func attachUserContext(c *fiber.Ctx, user store.User) {
	ctx := context.WithValue(userContext(c), ctxUserKey, user)
	c.SetUserContext(ctx)
	c.Locals("userID", user.ID.String())
}

func userFromContext(ctx context.Context) (store.User, bool) {
	if ctx == nil {
		return store.User{}, false
	}
	val := ctx.Value(ctxUserKey)
	if val == nil {
		return store.User{}, false
	}
	user, ok := val.(store.User)
	return user, ok
}
