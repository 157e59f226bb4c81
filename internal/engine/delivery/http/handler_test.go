package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/internal/engine/strategy"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReviewService struct {
	opportunities map[uint]*entity.Opportunity
	lastStatus    *entity.OpportunityStatus
	lastLimit     int
	approveReq    dto.ApproveOpportunityRequest
	failWith      error
}

func (s *stubReviewService) List(ctx context.Context, status *entity.OpportunityStatus, limit int) ([]entity.Opportunity, error) {
	s.lastStatus, s.lastLimit = status, limit
	out := []entity.Opportunity{}
	for _, o := range s.opportunities {
		out = append(out, *o)
	}
	return out, s.failWith
}

func (s *stubReviewService) Get(ctx context.Context, id uint) (*entity.Opportunity, error) {
	o, ok := s.opportunities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (s *stubReviewService) Approve(ctx context.Context, id uint, req dto.ApproveOpportunityRequest) (*entity.Trade, error) {
	s.approveReq = req
	o, ok := s.opportunities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if o.Status != entity.OpportunityStatusPendingReview {
		return nil, fmt.Errorf("%w: %s", repository.ErrInvalidTransition, o.Status)
	}
	return &entity.Trade{ID: 9, OpportunityID: id, ApprovedBuyPrice: *req.ApprovedBuyPrice, Status: entity.TradeStatusApprovedForBuy}, nil
}

func (s *stubReviewService) Reject(ctx context.Context, id uint, note string) error {
	if _, ok := s.opportunities[id]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

func (s *stubReviewService) SendToReview(ctx context.Context, id uint, note string) error {
	return s.failWith
}

func (s *stubReviewService) SendToReviewBatch(ctx context.Context, maxRiskScore *float64, limit int, note string) (dto.BatchReviewResult, error) {
	return dto.BatchReviewResult{Scanned: limit, Moved: 1, IDs: []uint{5}}, nil
}

func newTestServer(t *testing.T, reviews *stubReviewService) (*echo.Echo, *strategy.Engine) {
	t.Helper()
	e := echo.New()
	api := e.Group("/api/v1")

	NewOpportunityHandler(reviews, logger.NewNop()).RegisterRoutes(api.Group("/opportunities"))

	bus := event.NewBus(logger.NewNop(), time.Second)
	engine, err := strategy.NewEngine(bus, config.Default().Strategy, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, engine.Add(strategy.NewBargainHunter("BargainHunter", nil, bus, logger.NewNop())))
	NewStrategyHandler(engine, StatusSource{Bus: bus}, logger.NewNop()).RegisterRoutes(api)
	return e, engine
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestOpportunityRoutes(t *testing.T) {
	reviews := &stubReviewService{opportunities: map[uint]*entity.Opportunity{
		1: {ID: 1, ListingID: 10, Status: entity.OpportunityStatusPendingReview},
		2: {ID: 2, ListingID: 11, Status: entity.OpportunityStatusRejected},
	}}
	e, _ := newTestServer(t, reviews)

	rec := do(e, http.MethodGet, "/api/v1/opportunities?status=pending_review&limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, reviews.lastStatus)
	assert.Equal(t, entity.OpportunityStatusPendingReview, *reviews.lastStatus)
	assert.Equal(t, 5, reviews.lastLimit)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/v1/opportunities?status=bogus", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/v1/opportunities/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/v1/opportunities/42", "").Code)

	rec = do(e, http.MethodPost, "/api/v1/opportunities/1/approve", `{"approved_buy_price":45.5,"approved_by":"ops"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var trade entity.Trade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trade))
	assert.Equal(t, 45.5, trade.ApprovedBuyPrice)
	assert.Equal(t, "ops", reviews.approveReq.ApprovedBy)

	rec = do(e, http.MethodPost, "/api/v1/opportunities/2/approve", `{"approved_buy_price":45.5}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid status transition")

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodPost, "/api/v1/opportunities/1/reject", `{"note":"fake"}`).Code)

	rec = do(e, http.MethodPost, "/api/v1/opportunities/send-to-review", `{"limit":20}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"scanned":20,"moved":1,"ids":[5]}`, rec.Body.String())
}

func TestOpportunityInternalErrorIsMasked(t *testing.T) {
	reviews := &stubReviewService{failWith: fmt.Errorf("connection reset by peer")}
	e, _ := newTestServer(t, reviews)

	rec := do(e, http.MethodPost, "/api/v1/opportunities/3/send-to-review", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to send opportunity to review"}`, rec.Body.String())
}

func TestStrategyProfileRoutes(t *testing.T) {
	e, engine := newTestServer(t, &stubReviewService{})

	rec := do(e, http.MethodGet, "/api/v1/strategy/profile", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "balanced", resp.Profile)
	assert.Equal(t, 65.0, resp.Settings.MinScore)

	rec = do(e, http.MethodPut, "/api/v1/strategy/profile", `{"profile":"agg","max_risk_score":70}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "aggressive", resp.Profile)
	assert.Equal(t, 70.0, resp.Settings.MaxRiskScore)
	assert.Equal(t, 50.0, resp.Settings.MinScore)
	assert.Equal(t, "aggressive", engine.Statuses()[0].Profile)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPut, "/api/v1/strategy/profile", `{"profile":"reckless"}`).Code)

	rec = do(e, http.MethodGet, "/api/v1/engine/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var status dto.EngineStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Len(t, status.Strategies, 1)
	assert.False(t, status.Bus.Running)

	rec = do(e, http.MethodGet, "/api/v1/positions", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}
