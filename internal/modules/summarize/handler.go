package summarize

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopsense/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/summaries")
	g.POST("/generate", h.generate)
	g.POST("/stream", h.streamGenerate)
	g.GET("/product", h.getCached)

	admin := g.Group("", authMW)
	admin.GET("", h.listRecords)
	admin.DELETE("/:id", h.deleteRecord)

	rg.GET("/capabilities", h.capabilities)
	rg.DELETE("/cache", authMW, h.clearCache)
	rg.GET("/telemetry", authMW, h.listTelemetry)
}

type generateDTO struct {
	Product         ProductRecord `json:"product" binding:"required"`
	PageHTML        string        `json:"pageHtml"`
	PageText        string        `json:"pageText"`
	Lang            string        `json:"lang"`
	PreferStreaming bool          `json:"preferStreaming"`
}

// POST /summaries/generate — JSON mode, no interim frames.
func (h *Handler) generate(c *gin.Context) {
	var dto generateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, _ := h.svc.Generate(c.Request.Context(), GenerateInput{
		Product:         dto.Product,
		PageHTML:        dto.PageHTML,
		PageText:        dto.PageText,
		Lang:            dto.Lang,
		PreferStreaming: dto.PreferStreaming,
	})
	response.OK(c, result)
}

// POST /summaries/stream — SSE progressive render frames.
func (h *Handler) streamGenerate(c *gin.Context) {
	var dto generateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sink := &sseSink{c: c}
	slot := NewSlot(sink, h.svc.logger)
	slot.ShowSkeleton(dto.PageHTML, h.svc.cfg.Extract.AnchorSelectors, h.svc.cfg.Extract.AnchorFallbacks)

	result, _ := h.svc.Generate(c.Request.Context(), GenerateInput{
		Product:         dto.Product,
		PageHTML:        dto.PageHTML,
		PageText:        dto.PageText,
		Lang:            dto.Lang,
		PreferStreaming: dto.PreferStreaming,
		OnProgress:      slot.UpdateProgress,
		OnChunk:         slot.OnChunk,
	})

	if result.Success {
		slot.OnFinal(result.Summary, result)
	} else {
		slot.OnError(result.Reason)
	}
	sink.done()
}

// GET /summaries/product?host=...&productId=...&lang=...
func (h *Handler) getCached(c *gin.Context) {
	host := c.Query("host")
	productID := c.Query("productId")
	if host == "" || productID == "" {
		response.BadRequest(c, "host and productId are required")
		return
	}
	lang := c.DefaultQuery("lang", "en")

	entry, ok := h.svc.CachedSummary(c.Request.Context(), host, productID, lang)
	if !ok {
		response.NotFoundMsg(c, "no cached summary")
		return
	}
	response.OK(c, entry)
}

// GET /capabilities?refresh=true
func (h *Handler) capabilities(c *gin.Context) {
	refresh := c.Query("refresh") == "true"
	response.OK(c, h.svc.Capabilities(c.Request.Context(), refresh))
}

// DELETE /cache  [auth]
func (h *Handler) clearCache(c *gin.Context) {
	if err := h.svc.ClearCache(c.Request.Context()); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "cache cleared"})
}

// GET /telemetry  [auth]
func (h *Handler) listTelemetry(c *gin.Context) {
	events, err := h.svc.TelemetryEvents(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.List(c, events)
}

// GET /summaries  [auth]
func (h *Handler) listRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.svc.ListRecords(limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.List(c, records)
}

// DELETE /summaries/:id  [auth]
func (h *Handler) deleteRecord(c *gin.Context) {
	if err := h.svc.DeleteRecord(c.Param("id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "deleted"})
}

// sseSink writes frames as server-sent events.
type sseSink struct{ c *gin.Context }

func (s *sseSink) Send(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	fmt.Fprintf(s.c.Writer, "data: %s\n\n", data)
	s.c.Writer.Flush()
}

func (s *sseSink) done() {
	fmt.Fprint(s.c.Writer, "data: {\"kind\":\"done\"}\n\n")
	s.c.Writer.Flush()
}
