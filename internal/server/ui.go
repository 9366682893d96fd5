package server

import (
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Rana718/petquest/internal/auth"
	"github.com/Rana718/petquest/internal/dashboard"
	"github.com/Rana718/petquest/internal/gateway"
)

// session returns the owner's dashboard session, issuing a cookie when a new
// one is made. prepare runs on it before any panel loads.
func (s *Server) session(c *fiber.Ctx, prepare func(*dashboard.Session)) func() *dashboard.Session {
	return func() *dashboard.Session {
		sess, created := s.sessions.Get(c.Cookies(sessionCookie))
		if created {
			c.Cookie(&fiber.Cookie{
				Name:     sessionCookie,
				Value:    sess.ID,
				Path:     "/admin",
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		if prepare != nil {
			prepare(sess)
		}
		return sess
	}
}

func (s *Server) open(c *fiber.Ctx, prepare func(*dashboard.Session)) *dashboard.View {
	return s.dashboard.Open(c.UserContext(), auth.Token(c, s.deps.CookieName), s.session(c, prepare))
}

type dashboardPage struct {
	View  *dashboard.View
	Modal *dashboard.Modal
	Error string
}

// render writes the dashboard for view. Visitors who did not reach the ready
// phase get the login redirect or the forbidden page instead.
func (s *Server) render(c *fiber.Ctx, view *dashboard.View, modal *dashboard.Modal, err error) error {
	switch view.Phase {
	case dashboard.PhaseLogin:
		return c.Redirect(view.Redirect, fiber.StatusSeeOther)
	case dashboard.PhaseForbidden:
		return c.Status(fiber.StatusForbidden).Render("templates/forbidden", fiber.Map{
			"Title":    "Forbidden",
			"Identity": view.Identity,
		}, "templates/layout")
	}

	status := fiber.StatusOK
	p := dashboardPage{View: view, Modal: modal}
	if view.Err != nil {
		status = fiber.StatusInternalServerError
	}
	if err != nil {
		status, p.Error = errorStatus(err)
	}
	return c.Status(status).Render("templates/dashboard", fiber.Map{
		"Title": "PetQuest Admin",
		"Page":  p,
	}, "templates/layout")
}

func (s *Server) handleDashboard(c *fiber.Ctx) error {
	view := s.open(c, func(sess *dashboard.Session) {
		table := c.Query("table")
		if table == "" {
			return
		}
		if spec := c.Query("sort"); spec != "" {
			sess.SetSort(table, gateway.ParseSort(spec))
		}
		if n := c.QueryInt("page", 0); n > 0 {
			sess.SetPage(table, n)
		}
	})
	return s.render(c, view, nil, nil)
}

func (s *Server) handleNewRow(c *fiber.Ctx) error {
	view := s.open(c, nil)
	if view.Phase != dashboard.PhaseReady {
		return s.render(c, view, nil, nil)
	}
	modal, err := s.dashboard.AddModal(c.UserContext(), c.Params("table"))
	return s.render(c, view, modal, err)
}

func (s *Server) handleEditRow(c *fiber.Ctx) error {
	view := s.open(c, nil)
	if view.Phase != dashboard.PhaseReady {
		return s.render(c, view, nil, nil)
	}
	modal, err := s.dashboard.EditModal(c.UserContext(), view.Session, c.Params("table"), c.Params("id"))
	return s.render(c, view, modal, err)
}

func (s *Server) handleSaveRow(c *fiber.Ctx) error {
	view := s.open(c, nil)
	if view.Phase != dashboard.PhaseReady {
		return s.render(c, view, nil, nil)
	}

	table := c.Params("table")
	posted, files, err := postedForm(c)
	if err != nil {
		return s.render(c, view, nil, badRequest("Invalid form"))
	}
	modal, err := s.dashboard.Save(c.UserContext(), view.Session, dashboard.SaveRequest{
		Table:  table,
		RowID:  c.Params("id"),
		Posted: posted,
		Files:  files,
	})
	if err != nil {
		return s.render(c, view, modal, err)
	}
	return c.Redirect("/admin?table="+url.QueryEscape(table), fiber.StatusSeeOther)
}

func (s *Server) handleDeleteRowUI(c *fiber.Ctx) error {
	view := s.open(c, nil)
	if view.Phase != dashboard.PhaseReady {
		return s.render(c, view, nil, nil)
	}
	table := c.Params("table")
	if err := s.dashboard.Delete(c.UserContext(), table, c.Params("id")); err != nil {
		return s.render(c, view, nil, err)
	}
	return c.Redirect("/admin?table="+url.QueryEscape(table), fiber.StatusSeeOther)
}

// postedForm collects every posted value in order, with the first file of
// each file input.
func postedForm(c *fiber.Ctx) (map[string][]string, map[string]*multipart.FileHeader, error) {
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		mf, err := c.MultipartForm()
		if err != nil {
			return nil, nil, err
		}
		files := make(map[string]*multipart.FileHeader, len(mf.File))
		for name, headers := range mf.File {
			if len(headers) > 0 && headers[0].Size > 0 {
				files[name] = headers[0]
			}
		}
		return mf.Value, files, nil
	}

	posted := make(map[string][]string)
	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		posted[k] = append(posted[k], string(value))
	})
	return posted, nil, nil
}

// nextSort is the sort a column header links to: ascending first, then
// descending.
func nextSort(current *gateway.Sort, column string) string {
	if current != nil && current.Column == column && !current.Desc {
		return column + ":desc"
	}
	return column + ":asc"
}

func sortMark(current *gateway.Sort, column string) string {
	if current == nil || current.Column != column {
		return ""
	}
	if current.Desc {
		return "▼"
	}
	return "▲"
}
