package controller

import (
	"github.com/gofiber/fiber/v2"
)

func (ctl *Controller) PresenceGet(c *fiber.Ctx) error {
	userID := c.Params("userId")
	online, err := ctl.presence.IsOnline(c.UserContext(), userID)
	if err != nil {
		return ctl.fail(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"userId": userID,
		"online": online,
	})
}

func (ctl *Controller) AdminPresenceReconcile(c *fiber.Ctx) error {
	users, err := ctl.reconciler.Reconcile(c.UserContext())
	if err != nil {
		return ctl.fail(c, err)
	}
	if users == nil {
		users = []string{}
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"offline": users,
	})
}
