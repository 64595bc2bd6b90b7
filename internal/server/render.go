package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"daemonpanel/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer produces the HTML fragments the hypermedia front end swaps in:
// a card grid for the overview and a detail panel per service.
type Renderer struct {
	tpl *template.Template
}

// NewRenderer parses the embedded fragment templates.
func NewRenderer() *Renderer {
	return &Renderer{
		tpl: template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
}

type cardsData struct {
	Views []view.ServiceView
}

type detailData struct {
	View     view.ServiceView
	LogLines []string
	LogsErr  string
}

// ServicesPage handles GET /services: the card fragment for all configured
// services. Probe failures render as degraded cards, never as a 5xx.
func (h *Handlers) ServicesPage(c *gin.Context) {
	data := cardsData{Views: h.panel.ListViews(c.Request.Context())}

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.tpl.ExecuteTemplate(c.Writer, "cards.html", data); err != nil {
		h.log.Error().Err(err).Msg("render cards")
		c.String(http.StatusInternalServerError, "Internal Server Error")
	}
}

// ServiceDetail handles GET /service/:id: status plus a journal tail when
// the service permits logs.
func (h *Handlers) ServiceDetail(c *gin.Context) {
	id := c.Param("id")

	v, err := h.panel.GetView(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	data := detailData{View: v}
	if v.Entry.LogsEnabled {
		chunk, err := h.panel.GetLogs(c.Request.Context(), id, h.cfg.LogMaxLines)
		if err != nil {
			data.LogsErr = "journal temporarily unavailable"
		} else {
			data.LogLines = chunk.Lines
		}
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.tpl.ExecuteTemplate(c.Writer, "service.html", data); err != nil {
		h.log.Error().Err(err).Msg("render service detail")
		c.String(http.StatusInternalServerError, "Internal Server Error")
	}
}
