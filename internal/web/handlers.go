package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hpungsan/chatbox/internal/artifact"
	"github.com/hpungsan/chatbox/internal/errors"
	"github.com/hpungsan/chatbox/internal/session"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	ctrl     *session.Controller
	renderer *Renderer
	logger   *zap.Logger
	bg       *background
}

func newHandlers(ctrl *session.Controller, renderer *Renderer, logger *zap.Logger) *Handlers {
	return &Handlers{
		ctrl:     ctrl,
		renderer: renderer,
		logger:   logger,
		bg:       newBackground(),
	}
}

func (h *Handlers) cancel() { h.bg.cancel() }
func (h *Handlers) wait()   { h.bg.wg.Wait() }

// HandleWorkspace handles GET /: the chat transcript, prompt form and output tabs.
func (h *Handlers) HandleWorkspace(c *gin.Context) {
	s := h.ctrl.State()

	data := WorkspacePageData{
		PageData: PageData{
			Title:   "Arduino ChatBox",
			Version: h.renderer.version,
		},
		State: s,
	}
	for _, t := range session.Tabs {
		data.Tabs = append(data.Tabs, TabLink{Name: t, Label: tabLabel(t), Active: t == s.ActiveTab})
	}
	if s.Project != nil {
		data.DescriptionHTML = renderMarkdown(s.Project.Description)
		data.WiringHTML = renderMarkdown(s.Project.SchematicDescription)
		data.BOM = s.Project.BOM
		data.HasImage = s.Project.SchematicPNG != ""
	}

	h.renderer.renderPage(c.Writer, "workspace", data)
}

// HandlePrompt handles POST /prompt: submit the prompt form.
// The generation runs in the background; the page polls while loading.
func (h *Handlers) HandlePrompt(c *gin.Context) {
	text := c.PostForm("prompt")
	accepted, done := h.ctrl.SubmitAsync(h.bg.ctx, text)
	h.bg.track(done)

	if wantsJSON(c.Request) {
		status := http.StatusOK
		if accepted {
			status = http.StatusAccepted
		}
		renderJSON(c.Writer, status, gin.H{
			"accepted": accepted,
			"state":    stateJSON(h.ctrl.State()),
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// HandleSelectTab handles POST /tab/:tab: switch the active output panel.
func (h *Handlers) HandleSelectTab(c *gin.Context) {
	if err := h.ctrl.SelectTab(session.Tab(c.Param("tab"))); err != nil {
		h.renderer.renderError(c.Writer, c.Request, err)
		return
	}
	if wantsJSON(c.Request) {
		renderJSON(c.Writer, http.StatusOK, stateJSON(h.ctrl.State()))
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// HandleExport handles GET /export/:kind: download an artifact as an attachment.
func (h *Handlers) HandleExport(c *gin.Context) {
	kind, ok := artifact.ParseKind(c.Param("kind"))
	if !ok {
		h.renderer.renderError(c.Writer, c.Request,
			errors.NewInvalidRequest(fmt.Sprintf("unknown artifact kind %q: must be one of code, bom, schematic", c.Param("kind"))))
		return
	}

	a, err := h.ctrl.Export(kind)
	if err != nil {
		h.renderer.renderError(c.Writer, c.Request, err)
		return
	}
	if a == nil {
		h.renderer.renderError(c.Writer, c.Request, errors.NewNoProject())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	c.Data(http.StatusOK, a.MIMEType, a.Content)
}

// HandleSchematic handles GET /schematic.png: the schematic image, inline.
func (h *Handlers) HandleSchematic(c *gin.Context) {
	a, err := h.ctrl.ExportSchematic()
	if err != nil {
		h.renderer.renderError(c.Writer, c.Request, err)
		return
	}
	if a == nil {
		h.renderer.renderError(c.Writer, c.Request, errors.NewNoProject())
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, a.MIMEType, a.Content)
}

// HandleState handles GET /api/state: a JSON snapshot without the image payload.
func (h *Handlers) HandleState(c *gin.Context) {
	renderJSON(c.Writer, http.StatusOK, stateJSON(h.ctrl.State()))
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	renderJSON(c.Writer, http.StatusOK, gin.H{
		"status":  "ok",
		"loading": h.ctrl.State().Loading,
	})
}

// HandleNotFound renders 404 for unknown routes.
func (h *Handlers) HandleNotFound(c *gin.Context) {
	h.renderer.renderError(c.Writer, c.Request, &errors.ChatboxError{
		Code:    errors.ErrInvalidRequest,
		Status:  http.StatusNotFound,
		Message: "page not found: " + c.Request.URL.Path,
	})
}

// stateJSON strips the image payload from a snapshot; clients fetch it from /schematic.png.
func stateJSON(s session.State) session.State {
	s.Project = s.Project.WithoutImage()
	return s
}

func tabLabel(t session.Tab) string {
	switch t {
	case session.TabCode:
		return "Code"
	case session.TabBOM:
		return "Bill of Materials"
	case session.TabSchematic:
		return "Schematic"
	}
	return strconv.Quote(string(t))
}
