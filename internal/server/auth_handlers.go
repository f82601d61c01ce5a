package server

import (
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /api/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	result, err := s.authService.Signup(c.UserContext(), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}

// Login handles POST /api/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	result, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}
