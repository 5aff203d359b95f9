// Package http serves the admin API of the Hot/Not module.
package http

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/usecase"
	"github.com/frankieli/hot_or_not/pkg/logger"
	"github.com/frankieli/hot_or_not/pkg/metrics"
)

// Handler handles admin HTTP requests
type Handler struct {
	settlement  *usecase.SettlementUseCase
	participant *usecase.ParticipantUseCase
}

func NewHandler(settlement *usecase.SettlementUseCase, participant *usecase.ParticipantUseCase) *Handler {
	return &Handler{
		settlement:  settlement,
		participant: participant,
	}
}

// RegisterRoutes registers the admin routes to the given router group
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	slots := router.Group("/posts/:post_id/slots/:slot_id")
	slots.POST("/tabulate", h.TabulateSlot)
	slots.POST("/inform", h.InformParticipants)
	slots.GET("/bets", h.ListSlotBets)

	router.GET("/token-balance", h.GetTokenBalance)
	router.GET("/outcomes", h.ListOutcomes)
}

// RouterConfig holds the limits of the admin router
type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter builds the admin engine: /api routes, /healthz and /metrics.
func NewRouter(h *Handler, m *metrics.Metrics, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	api.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	h.RegisterRoutes(api)
	return r
}

// Server represents the admin HTTP server
type Server struct {
	srv *http.Server
}

func NewServer(engine *gin.Engine, port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run blocks until the server stops; a graceful Shutdown is not an error.
func (s *Server) Run() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// DTOs
type betResponse struct {
	PostID           uint64                       `json:"post_id"`
	SlotID           uint8                        `json:"slot_id"`
	RoomID           uint64                       `json:"room_id"`
	BetID            uint64                       `json:"bet_id"`
	Direction        string                       `json:"direction"`
	Amount           uint64                       `json:"amount"`
	BetMakerInstance string                       `json:"bet_maker_instance"`
	RoomOutcome      string                       `json:"room_outcome"`
	Payout           *uint64                      `json:"payout"`
	Outcome          domain.BetOutcomeForBetMaker `json:"outcome"`
	InformedStatus   string                       `json:"informed_status"`
	InformedReason   string                       `json:"informed_reason,omitempty"`
}

type tokenBalanceResponse struct {
	UtilityTokenBalance uint64 `json:"utility_token_balance"`
}

func toBetResponse(s usecase.BetStatus) betResponse {
	resp := betResponse{
		PostID:           s.Bet.ID.Room.PostID,
		SlotID:           s.Bet.ID.Room.SlotID,
		RoomID:           s.Bet.ID.Room.RoomID,
		BetID:            s.Bet.ID.BetID,
		Direction:        s.Bet.Direction.String(),
		Amount:           s.Bet.Amount,
		BetMakerInstance: s.Bet.BetMakerInstance,
		RoomOutcome:      s.RoomOutcome.String(),
		Outcome:          s.Outcome,
		InformedStatus:   s.Bet.InformedStatus.Kind.String(),
		InformedReason:   s.Bet.InformedStatus.Reason,
	}
	if s.Bet.Payout.Calculated {
		amount := s.Bet.Payout.Amount
		resp.Payout = &amount
	}
	return resp
}

func parseSlot(c *gin.Context) (uint64, uint8, error) {
	postID, err := strconv.ParseUint(c.Param("post_id"), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid post id %q", c.Param("post_id"))
	}
	slotID, err := strconv.ParseUint(c.Param("slot_id"), 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", domain.ErrInvalidSlot, c.Param("slot_id"))
	}
	return postID, uint8(slotID), nil
}

// TabulateSlot settles the slot and informs its bettors
func (h *Handler) TabulateSlot(c *gin.Context) {
	postID, slotID, err := parseSlot(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary := h.settlement.TabulateSlot(c.Request.Context(), postID, slotID)
	c.JSON(http.StatusOK, summary)
}

// InformParticipants resends every resolved outcome of the slot
func (h *Handler) InformParticipants(c *gin.Context) {
	postID, slotID, err := parseSlot(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary := h.settlement.InformParticipants(c.Request.Context(), postID, slotID)
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ListSlotBets(c *gin.Context) {
	postID, slotID, err := parseSlot(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bets, err := h.settlement.ListSlotBets(c.Request.Context(), postID, slotID)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Msg("ListSlotBets: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]betResponse, 0, len(bets))
	for _, b := range bets {
		out = append(out, toBetResponse(b))
	}
	c.JSON(http.StatusOK, gin.H{"bets": out})
}

func (h *Handler) GetTokenBalance(c *gin.Context) {
	balance, err := h.participant.GetUtilityTokenBalance(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Msg("GetTokenBalance: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tokenBalanceResponse{UtilityTokenBalance: balance})
}

// ListOutcomes returns received outcomes, newest first; ?limit= defaults to 50.
func (h *Handler) ListOutcomes(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > math.MaxInt32 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = n
	}

	outcomes, err := h.participant.ListReceivedOutcomes(c.Request.Context(), limit)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Msg("ListOutcomes: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}
