package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/yuu19/SubTrack/internal/pkg/session"
	"github.com/yuu19/SubTrack/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the session to a principal for every
// request. Anonymous requests get an explicit logged-out context so
// controllers never have to nil-check.
func UserContextMiddleware(c *fiber.Ctx) error {
	anonymous := usercontext.UserContext{IsLoggedIn: false}

	store := session.GetSessionStore()
	if store == nil {
		c.Locals(usercontext.ContextKey, anonymous)
		return c.Next()
	}

	sess, err := store.Get(c)
	if err != nil {
		c.Locals(usercontext.ContextKey, anonymous)
		return c.Next()
	}

	userID := sessionUserID(sess.Get(usercontext.KeyUserID))
	if userID == 0 {
		c.Locals(usercontext.ContextKey, anonymous)
		return c.Next()
	}

	c.Locals(usercontext.ContextKey, usercontext.UserContext{
		UserID:     userID,
		Username:   session.GetSessionValue(c, usercontext.KeyUsername),
		IsLoggedIn: true,
	})

	return c.Next()
}

// sessionUserID tolerates the id being stored as uint or string.
func sessionUserID(value interface{}) uint {
	switch v := value.(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case string:
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint(n)
		}
	}
	return 0
}
