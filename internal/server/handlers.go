package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/piwi3910/SlabNest/internal/controller"
	"github.com/piwi3910/SlabNest/internal/project"
	"github.com/piwi3910/SlabNest/internal/store"
)

func (s *Server) live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) ready(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) startNesting(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ack, ok := s.submit(c, controller.Message{Type: controller.StartNesting, Payload: body})
	if !ok {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"runId": ack.RunID})
}

func (s *Server) stopNesting(c *gin.Context) {
	ack, ok := s.submit(c, controller.NewStopMessage())
	if !ok {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"runId": ack.RunID})
}

func (s *Server) analyzeSheet(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ack, ok := s.submit(c, controller.Message{Type: controller.AnalyzeSheet, Payload: body})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ack.Payload)
}

// submit forwards a request and writes the error response on rejection.
func (s *Server) submit(c *gin.Context, msg controller.Message) (controller.Ack, bool) {
	ack, err := s.ctrl.Submit(c.Request.Context(), msg)
	if err == nil {
		err = ack.Err
	}
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("Request failed", zap.String("type", string(msg.Type)), zap.Error(err))
		}
		c.JSON(status, controller.ErrorPayload{Kind: controller.ErrorKind(err), Message: err.Error()})
		return controller.Ack{}, false
	}
	return ack, true
}

func statusFor(err error) int {
	if errors.Is(err, controller.ErrClosed) {
		return http.StatusServiceUnavailable
	}
	switch controller.ErrorKind(err) {
	case "protocol":
		return http.StatusBadRequest
	case "busy":
		return http.StatusConflict
	case "configuration", "geometry":
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// events streams controller notifications as server-sent events.
func (s *Server) events(c *gin.Context) {
	sub := s.hub.subscribe()
	defer s.hub.unsubscribe(sub)

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case n, ok := <-sub:
			if !ok {
				return false
			}
			c.SSEvent(string(n.Type), n)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (s *Server) listOrders(c *gin.Context) {
	list, err := s.store.ListNestings(c.Request.Context())
	if err != nil {
		s.logger.Error("List nestings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getOrderNesting(c *gin.Context) {
	p, err := s.store.GetNesting(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		s.logger.Error("Get nesting failed", zap.String("order", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, p)
	}
}

// saveOrderNesting stores a result envelope for an order. A body without a
// version is stamped as a new envelope.
func (s *Server) saveOrderNesting(c *gin.Context) {
	var p project.ResultFile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p.Version == "" {
		p = project.NewResultFile(p.Config, p.Result)
	}

	id := c.Param("id")
	if err := s.store.SaveNesting(c.Request.Context(), id, p); err != nil {
		s.logger.Error("Save nesting failed", zap.String("order", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": id, "version": p.Version, "createdAt": p.CreatedAt})
}

func (s *Server) deleteOrderNesting(c *gin.Context) {
	id := c.Param("id")
	err := s.store.DeleteNesting(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		s.logger.Error("Delete nesting failed", zap.String("order", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.Status(http.StatusNoContent)
	}
}
