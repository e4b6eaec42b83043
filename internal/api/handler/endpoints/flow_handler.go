package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	flow "github.com/Dipanshuofficial/Flow"
	"github.com/Dipanshuofficial/Flow/internal/api/handler/middleware"
	"github.com/Dipanshuofficial/Flow/internal/api/handler/request"
	"github.com/Dipanshuofficial/Flow/internal/api/handler/response"
	"github.com/Dipanshuofficial/Flow/internal/api/models"
	"github.com/Dipanshuofficial/Flow/internal/api/service"
	"github.com/Dipanshuofficial/Flow/pkg"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type flowHandler struct {
	session *service.Session
	config  flow.AppConfig
	logger  zerolog.Logger
}

// FlowHandler mounts the canvas API of session under /api/v1/flow.
func FlowHandler(router gin.IRouter, session *service.Session, cfg flow.AppConfig, logger zerolog.Logger) {
	h := &flowHandler{session: session, config: cfg, logger: logger}

	routes := router.Group("/api/v1/flow")
	routes.Use(middleware.AuthMiddleware(h.config))
	{
		routes.GET("/state", h.getState)
		routes.POST("/ids/:type", h.allocateID)
		routes.POST("/reset", h.reset)

		routes.POST("/nodes", h.addNode)
		routes.POST("/drop", h.drop)
		routes.DELETE("/nodes", h.clearAll)
		routes.DELETE("/nodes/:id", h.deleteNode)
		routes.PATCH("/nodes/:id/data", h.updateNodeField)
		routes.GET("/nodes/:id/handles", h.getHandles)
		routes.POST("/nodes/changes", h.applyNodeChanges)

		routes.POST("/connect", h.connect)
		routes.POST("/edges/changes", h.applyEdgeChanges)
		routes.DELETE("/edges/:id", h.deleteEdge)
		routes.PATCH("/edges/:id/label", h.updateEdgeLabel)
		routes.PATCH("/edges/:id/animation", h.updateEdgeAnimation)

		routes.PUT("/error", h.setErrorNode)
		routes.PUT("/viewport", h.setViewport)

		routes.POST("/validate", h.validate)
		routes.POST("/export/:platform", h.export)
	}
}

// HealthHandler exposes the liveness check.
func HealthHandler(router gin.IRouter, session *service.Session) {
	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if !session.IsOpen() {
			status = "closing"
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	})
}

func (slf *flowHandler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, response.NewGraphResponse(slf.session.Graph.State()))
}

func (slf *flowHandler) allocateID(c *gin.Context) {
	t := models.NodeType(c.Param("type"))
	if !t.Valid() {
		c.JSON(http.StatusBadRequest, response.APIError{Message: "Unknown node type", Data: t})
		return
	}
	c.JSON(http.StatusCreated, response.IDResponse{ID: slf.session.Graph.AllocateID(t)})
}

func (slf *flowHandler) reset(c *gin.Context) {
	if err := slf.session.Reset(c.Request.Context()); err != nil {
		slf.logger.Error().Err(err).Msg("Failed to reset session")
		c.JSON(http.StatusInternalServerError, response.APIError{Message: "Failed to reset session"})
		return
	}
	c.JSON(http.StatusOK, response.NewGraphResponse(slf.session.Graph.State()))
}

func (slf *flowHandler) addNode(c *gin.Context) {
	var req request.AddNodeRequest
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, response.APIError{Message: "Unknown node type", Data: req.Type})
		return
	}

	id := slf.session.Graph.AllocateID(req.Type)
	data := models.NewNodeData(req.Type, id)
	for field, value := range req.Data {
		data.Set(field, value)
	}

	node := models.Node{ID: id, Type: req.Type, Position: req.Position, Data: data}
	slf.session.Graph.AddNode(node)
	c.JSON(http.StatusCreated, response.NewNodeResponse(node))
}

func (slf *flowHandler) drop(c *gin.Context) {
	var req request.DropRequest
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	node, ok := slf.session.Drop(req.Payload, req.Position)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, response.NewNodeResponse(node))
}

func (slf *flowHandler) clearAll(c *gin.Context) {
	slf.session.Graph.ClearAll()
	c.JSON(http.StatusOK, response.NewGraphResponse(slf.session.Graph.State()))
}

func (slf *flowHandler) deleteNode(c *gin.Context) {
	msg := slf.session.Graph.DeleteNode(c.Param("id"))
	c.JSON(http.StatusOK, response.Message{Message: msg})
}

func (slf *flowHandler) updateNodeField(c *gin.Context) {
	var req request.UpdateFieldRequest
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	id := c.Param("id")
	if err := slf.session.Graph.UpdateNodeField(id, req.Field, req.Value); err != nil {
		c.JSON(http.StatusNotFound, response.APIError{Message: "Node not found", Data: id})
		return
	}

	node, _ := slf.session.Graph.Node(id)
	c.JSON(http.StatusOK, response.NewNodeResponse(node))
}

func (slf *flowHandler) getHandles(c *gin.Context) {
	ports, err := slf.session.Graph.Ports(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.APIError{Message: "Node not found", Data: c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, ports)
}

func (slf *flowHandler) applyNodeChanges(c *gin.Context) {
	var changes []service.NodeChange
	if err := pkg.ParseAndValidateSlice(c, &changes); err != nil {
		badRequest(c, err)
		return
	}
	slf.session.Graph.ApplyNodeChanges(changes)
	c.JSON(http.StatusOK, response.NewGraphResponse(slf.session.Graph.State()))
}

func (slf *flowHandler) applyEdgeChanges(c *gin.Context) {
	var changes []service.EdgeChange
	if err := pkg.ParseAndValidateSlice(c, &changes); err != nil {
		badRequest(c, err)
		return
	}
	slf.session.Graph.ApplyEdgeChanges(changes)
	c.JSON(http.StatusOK, response.NewGraphResponse(slf.session.Graph.State()))
}

func (slf *flowHandler) connect(c *gin.Context) {
	var req models.Connection
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	edge, err := slf.session.Graph.Connect(req)
	if err != nil {
		c.JSON(http.StatusNotFound, response.APIError{Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, edge)
}

func (slf *flowHandler) deleteEdge(c *gin.Context) {
	if err := slf.session.Graph.DeleteEdge(c.Param("id")); err != nil {
		edgeNotFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

func (slf *flowHandler) updateEdgeLabel(c *gin.Context) {
	var req request.EdgeLabelRequest
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	if err := slf.session.Graph.UpdateEdgeLabel(c.Param("id"), req.Label); err != nil {
		edgeNotFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

func (slf *flowHandler) updateEdgeAnimation(c *gin.Context) {
	var req request.EdgeAnimationRequest
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	if err := slf.session.Graph.UpdateEdgeAnimation(c.Param("id"), *req.Animated); err != nil {
		edgeNotFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

func (slf *flowHandler) setErrorNode(c *gin.Context) {
	var req request.ErrorNodeRequest
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	if req.NodeID == "" {
		slf.session.Graph.ClearErrorNode()
	} else {
		slf.session.Graph.SetErrorNode(req.NodeID)
	}
	c.Status(http.StatusNoContent)
}

func (slf *flowHandler) setViewport(c *gin.Context) {
	var req request.ViewportRequest
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	slf.session.Graph.SetViewport(models.Viewport{X: req.X, Y: req.Y, Zoom: req.Zoom})
	c.Status(http.StatusNoContent)
}

func (slf *flowHandler) validate(c *gin.Context) {
	ok, err := slf.session.Export.Validate(c.Request.Context())
	if err != nil {
		exportFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, response.ValidationResponse{
		Valid:       ok,
		ErrorNodeID: slf.session.Graph.ErrorNodeID(),
		Phase:       slf.session.Export.Phase(),
	})
}

func (slf *flowHandler) export(c *gin.Context) {
	artifact, err := slf.session.Export.Export(c.Request.Context(), service.Platform(c.Param("platform")))
	if err != nil {
		exportFailure(c, err)
		return
	}

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", artifact.Filename))
	c.Data(http.StatusOK, contentType, artifact.Body)
}

func exportFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStaleResponse):
		c.JSON(http.StatusConflict, response.APIError{Message: "Superseded by a newer request"})
	case errors.Is(err, service.ErrUnknownPlatform):
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
	case errors.Is(err, service.ErrBackendUnreached):
		c.JSON(http.StatusBadGateway, response.APIError{Message: "Backend unreachable"})
	case errors.Is(err, service.ErrArtifactTooLarge):
		c.JSON(http.StatusBadGateway, response.APIError{Message: err.Error()})
	case errors.Is(err, service.ErrExportRejected):
		c.JSON(http.StatusUnprocessableEntity, response.APIError{Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, response.APIError{Message: err.Error()})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.APIError{Message: "Invalid request", Data: pkg.ValidationMessages(err)})
}

func edgeNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, response.APIError{Message: "Edge not found", Data: c.Param("id")})
}
