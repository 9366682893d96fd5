package server

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Rana718/petquest/internal/auth"
	"github.com/Rana718/petquest/internal/gateway"
	"github.com/Rana718/petquest/internal/upload"
)

func (s *Server) handleAdminStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"isAdmin": s.deps.Authorizer.IsAdmin(auth.FromContext(c))})
}

func (s *Server) handleListSchemas(c *fiber.Ctx) error {
	tables, err := s.deps.Registry.ListTables(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(tables)
}

func (s *Server) handleGetSchema(c *fiber.Ctx) error {
	desc, err := s.deps.Registry.GetSchema(c.UserContext(), c.Params("table"))
	if err != nil {
		return err
	}
	return c.JSON(desc)
}

func (s *Server) handleListRows(c *fiber.Ctx) error {
	w := gateway.Window{
		Page: c.QueryInt("page", 1),
		Size: c.QueryInt("limit", s.deps.Gateway.PageSize()),
		Sort: gateway.ParseSort(c.Query("sort")),
	}
	page, err := s.deps.Gateway.List(c.UserContext(), c.Params("table"), w)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (s *Server) handleGetRow(c *fiber.Ctx) error {
	row, err := s.deps.Gateway.Get(c.UserContext(), c.Params("table"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(row)
}

func (s *Server) handleCreateRow(c *fiber.Ctx) error {
	payload, err := bodyMap(c)
	if err != nil {
		return err
	}
	id, err := s.deps.Gateway.Create(c.UserContext(), c.Params("table"), payload)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "id": id})
}

func (s *Server) handleUpdateRow(c *fiber.Ctx) error {
	payload, err := bodyMap(c)
	if err != nil {
		return err
	}
	if err := s.deps.Gateway.Update(c.UserContext(), c.Params("table"), c.Params("id"), payload); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleDeleteRow(c *fiber.Ctx) error {
	if err := s.deps.Gateway.Delete(c.UserContext(), c.Params("table"), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	table := c.Params("table")
	data, err := s.deps.Gateway.Export(c.UserContext(), table, gateway.ParseSort(c.Query("sort")))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	if string(data) != gateway.NoData {
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.csv"`, table))
	}
	return c.Send(data)
}

// handleUpload serves the owner upload kinds named by the route.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	kind, ok := upload.ParseKind(c.Params("kind"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("unknown upload kind %q", c.Params("kind")))
	}
	return s.saveUpload(kind, string(kind)+"_url")(c)
}

// saveUpload stores the multipart "file" part. The URL is returned both as
// "url" and under key.
func (s *Server) saveUpload(kind upload.Kind, key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.deps.Uploads == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "uploads are not configured")
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return badRequest("file is required")
		}
		url, err := s.deps.Uploads.Save(c.UserContext(), kind, fh)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"url": url, key: url})
	}
}

func bodyMap(c *fiber.Ctx) (map[string]interface{}, error) {
	payload := make(map[string]interface{})
	if len(c.Body()) == 0 {
		return payload, nil
	}
	if err := c.BodyParser(&payload); err != nil {
		return nil, badRequest("Invalid request body")
	}
	return payload, nil
}

// pathID reads a positive integer route parameter.
func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// queryID reads a positive integer query parameter.
func queryID(c *fiber.Ctx, name, message string) (int64, error) {
	id, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(message)
	}
	return id, nil
}
