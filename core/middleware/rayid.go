package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderRayID is the header carrying the request id in and out.
const HeaderRayID = "X-Ray-ID"

// RayID assigns every request a unique id, honoring one supplied by the
// caller. The id is stored in the request locals for the logger and echoed
// on the response.
func RayID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(HeaderRayID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals("ray_id", rid)
		c.Set(HeaderRayID, rid)
		return c.Next()
	}
}
