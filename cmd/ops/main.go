// Command ops is a small operator console that forwards settlement calls
// to any Hot/Not instance by address.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	hotGrpc "github.com/frankieli/hot_or_not/internal/modules/hot_or_not/adapter/grpc"
	"github.com/frankieli/hot_or_not/pkg/grpc_client/base"
	"github.com/frankieli/hot_or_not/pkg/logger"
)

// instanceClient is the subset of the participant client the console uses.
type instanceClient interface {
	TabulateSlot(ctx context.Context, instance string, postID uint64, slotID uint8) (*hotGrpc.NotifySummaryResp, error)
	InformParticipants(ctx context.Context, instance string, postID uint64, slotID uint8) (*hotGrpc.NotifySummaryResp, error)
	GetUtilityTokenBalance(ctx context.Context, instance string) (uint64, error)
}

// GenericHandler runs one named method against an instance.
type GenericHandler func(ctx context.Context, instance string, payload []byte) (interface{}, error)

type console struct {
	methods map[string]GenericHandler
	timeout time.Duration
}

func main() {
	logger.Init(logger.Config{Level: getEnv("LOG_LEVEL", "info"), Format: "console"})
	defer logger.Close()
	logger.InfoGlobal().Msg("Starting Hot/Not ops console")

	client := base.NewBaseClient()
	defer client.Close()

	gin.SetMode(gin.ReleaseMode)
	r := newRouter(newConsole(hotGrpc.NewParticipantClient(client), 5*time.Minute))

	port := getEnv("OPS_PORT", "8080")
	logger.InfoGlobal().Str("port", port).Msg("Ops console listening")
	if err := r.Run(":" + port); err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to start ops console")
	}
}

func newRouter(c *console) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware())

	api := r.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		api.GET("/methods", c.handleListMethods)
		api.POST("/grpc_call", c.handleGenericCall)
	}
	return r
}

type slotPayload struct {
	PostID uint64 `json:"post_id"`
	SlotID uint8  `json:"slot_id"`
}

func decodeSlot(payload []byte) (slotPayload, error) {
	var req slotPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("invalid payload: %w", err)
	}
	return req, nil
}

func newConsole(client instanceClient, timeout time.Duration) *console {
	c := &console{methods: make(map[string]GenericHandler), timeout: timeout}

	c.methods["TabulateSlot"] = func(ctx context.Context, instance string, payload []byte) (interface{}, error) {
		req, err := decodeSlot(payload)
		if err != nil {
			return nil, err
		}
		return client.TabulateSlot(ctx, instance, req.PostID, req.SlotID)
	}

	c.methods["InformParticipants"] = func(ctx context.Context, instance string, payload []byte) (interface{}, error) {
		req, err := decodeSlot(payload)
		if err != nil {
			return nil, err
		}
		return client.InformParticipants(ctx, instance, req.PostID, req.SlotID)
	}

	c.methods["GetUtilityTokenBalance"] = func(ctx context.Context, instance string, _ []byte) (interface{}, error) {
		bal, err := client.GetUtilityTokenBalance(ctx, instance)
		if err != nil {
			return nil, err
		}
		return gin.H{"utility_token_balance": bal}, nil
	}
	return c
}

func (c *console) handleListMethods(ctx *gin.Context) {
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	ctx.JSON(http.StatusOK, gin.H{"methods": names})
}

func (c *console) handleGenericCall(ctx *gin.Context) {
	var body struct {
		Instance string          `json:"instance"`
		Method   string          `json:"method"`
		Payload  json.RawMessage `json:"payload"`
	}
	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if body.Instance == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "instance is required"})
		return
	}

	handler, ok := c.methods[body.Method]
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Method '%s' not found", body.Method)})
		return
	}

	// Tabulation fans out to every bettor, so the deadline is generous.
	callCtx, cancel := context.WithTimeout(ctx.Request.Context(), c.timeout)
	defer cancel()

	result, err := handler(callCtx, body.Instance, body.Payload)
	if err != nil {
		logger.Warn(callCtx).Err(err).Str("method", body.Method).Str("instance", body.Instance).Msg("Ops call failed")
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
