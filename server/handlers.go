package server

import (
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/graph"
	"github.com/kbukum/graphflow/service"
)

const contentTypeYAML = "application/yaml"

// Handlers exposes the graph service over HTTP.
type Handlers struct {
	svc *service.Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

// Register mounts the graph API on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)

	g := r.Group("/graph")
	g.POST("", h.CreateGraph)
	g.GET("", h.ListGraphs)
	g.POST("/import", h.ImportGraph)
	g.GET("/:id", h.GetGraph)
	g.DELETE("/:id", h.DeleteGraph)
	g.GET("/:id/export", h.ExportGraph)
	g.POST("/:id/run", h.RunGraph)

	g.POST("/:id/node", h.AddNode)
	g.PUT("/:id/node/:node", h.UpdateNode)
	g.DELETE("/:id/node/:node", h.DeleteNode)

	g.POST("/:id/edge", h.AddEdge)
	g.PUT("/:id/edge", h.UpdateEdge)
	g.DELETE("/:id/edge", h.DeleteEdge)
}

// Root handles GET /.
func (h *Handlers) Root(c *gin.Context) {
	RespondOK(c, gin.H{"message": "graphflow REST API is running"})
}

// CreateGraph handles POST /graph. The body is optional.
func (h *Handlers) CreateGraph(c *gin.Context) {
	var req service.CreateGraphRequest
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			RespondWithError(c, err)
			return
		}
	}
	resp, err := h.svc.CreateGraph(c.Request.Context(), req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, resp)
}

// ListGraphs handles GET /graph.
func (h *Handlers) ListGraphs(c *gin.Context) {
	RespondOK(c, h.svc.ListGraphs(c.Request.Context()))
}

// GetGraph handles GET /graph/:id.
func (h *Handlers) GetGraph(c *gin.Context) {
	view, err := h.svc.GetGraph(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, view)
}

// DeleteGraph handles DELETE /graph/:id.
func (h *Handlers) DeleteGraph(c *gin.Context) {
	if err := h.svc.DeleteGraph(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

// ExportGraph handles GET /graph/:id/export. ?format=yaml returns YAML
// instead of the JSON envelope.
func (h *Handlers) ExportGraph(c *gin.Context) {
	doc, err := h.svc.ExportGraph(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if c.Query("format") != "yaml" {
		RespondOK(c, doc)
		return
	}
	data, err := graph.MarshalYAML(doc)
	if err != nil {
		RespondWithError(c, errors.Internal(err))
		return
	}
	c.Data(http.StatusOK, contentTypeYAML, data)
}

// ImportGraph handles POST /graph/import with a JSON or YAML document.
func (h *Handlers) ImportGraph(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondWithError(c, bodyError(err))
		return
	}
	isJSON := !strings.Contains(c.ContentType(), "yaml")
	doc, err := graph.ParseDocument(data, isJSON)
	if err != nil {
		RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	resp, err := h.svc.ImportGraph(c.Request.Context(), doc)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, resp)
}

// RunGraph handles POST /graph/:id/run.
func (h *Handlers) RunGraph(c *gin.Context) {
	var req service.RunRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, err)
		return
	}
	resp, err := h.svc.RunGraph(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, resp)
}

// AddNode handles POST /graph/:id/node.
func (h *Handlers) AddNode(c *gin.Context) {
	var req service.AddNodeRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, err)
		return
	}
	h.respondMutation(c)(h.svc.AddNode(c.Request.Context(), c.Param("id"), req))
}

// UpdateNode handles PUT /graph/:id/node/:node.
func (h *Handlers) UpdateNode(c *gin.Context) {
	var cfg service.NodeConfig
	if err := bindJSON(c, &cfg); err != nil {
		RespondWithError(c, err)
		return
	}
	h.respondMutation(c)(h.svc.UpdateNode(c.Request.Context(), c.Param("id"), c.Param("node"), cfg))
}

// DeleteNode handles DELETE /graph/:id/node/:node.
func (h *Handlers) DeleteNode(c *gin.Context) {
	h.respondMutation(c)(h.svc.DeleteNode(c.Request.Context(), c.Param("id"), c.Param("node")))
}

// AddEdge handles POST /graph/:id/edge.
func (h *Handlers) AddEdge(c *gin.Context) {
	var req service.EdgeRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, err)
		return
	}
	h.respondMutation(c)(h.svc.AddEdge(c.Request.Context(), c.Param("id"), req))
}

// UpdateEdge handles PUT /graph/:id/edge.
func (h *Handlers) UpdateEdge(c *gin.Context) {
	var req service.UpdateEdgeRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, err)
		return
	}
	h.respondMutation(c)(h.svc.UpdateEdge(c.Request.Context(), c.Param("id"), req))
}

// DeleteEdge handles DELETE /graph/:id/edge.
func (h *Handlers) DeleteEdge(c *gin.Context) {
	var req service.EdgeRequest
	if err := bindJSON(c, &req); err != nil {
		RespondWithError(c, err)
		return
	}
	h.respondMutation(c)(h.svc.DeleteEdge(c.Request.Context(), c.Param("id"), req))
}

func (h *Handlers) respondMutation(c *gin.Context) func(*service.MutationResponse, error) {
	return func(resp *service.MutationResponse, err error) {
		if err != nil {
			RespondWithError(c, err)
			return
		}
		RespondOK(c, resp)
	}
}

// bindJSON decodes the request body. Struct validation happens in the service.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.New(errors.ErrCodeInvalidInput, "Request body too large.", http.StatusRequestEntityTooLarge)
	}
	if stderrors.Is(err, io.EOF) {
		return errors.InvalidInput("body", "request body is required")
	}
	return errors.InvalidInput("body", err.Error())
}
