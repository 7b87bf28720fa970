package usercontext

import (
	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/gofiber/fiber/v2"
)

// UserContext is the already-validated principal for a request, as supplied
// by the auth middleware. The payment core never looks at credentials itself.
type UserContext struct {
	UserID     uint        `json:"user_id"`
	Username   string      `json:"username"`
	Role       models.Role `json:"role"`
	IsLoggedIn bool        `json:"is_logged_in"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals(KeyUserContext); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{IsLoggedIn: false, Role: models.RoleUser}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user carries the admin role
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).Role == models.RoleAdmin
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}
