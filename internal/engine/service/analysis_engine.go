package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/common"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/utils"

	"gorm.io/datatypes"
)

// AnalysisEngine turns a stored listing into a valuation, a risk assessment
// and an opportunity, and announces the result on the bus.
type AnalysisEngine interface {
	AnalyzeListing(ctx context.Context, listingID uint) (*dto.Analysis, error)
	AnalyzeOpen(ctx context.Context, limit int) (dto.AnalyzeOpenResult, error)
	HandleItemFound(ctx context.Context, evt event.Event) error
}

// AnalysisDeps groups the collaborators of the analysis engine.
type AnalysisDeps struct {
	Listings      repository.ListingRepository
	Features      repository.ItemFeatureRepository
	Sales         repository.SaleRepository
	Valuations    repository.ValuationRepository
	Opportunities repository.OpportunityRepository
	Extractor     FeatureExtractor
	Valuation     ValuationService
	Risk          RiskService
	Scorer        OpportunityScorer
	Publisher     EventPublisher
}

type analysisEngine struct {
	deps AnalysisDeps
	cfg  config.Analysis
	log  *logger.Logger
}

// NewAnalysisEngine creates a new AnalysisEngine.
func NewAnalysisEngine(deps AnalysisDeps, cfg config.Analysis, log *logger.Logger) AnalysisEngine {
	return &analysisEngine{deps: deps, cfg: cfg, log: log}
}

// AnalyzeListing runs the full pipeline for one listing.
func (e *analysisEngine) AnalyzeListing(ctx context.Context, listingID uint) (*dto.Analysis, error) {
	listing, err := e.deps.Listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	features, err := e.ensureFeatures(ctx, listing)
	if err != nil {
		return nil, err
	}

	sales, err := e.deps.Sales.GetRecentSales(ctx, features, e.cfg.RecentSalesLimit)
	if err != nil {
		return nil, err
	}
	valuation := e.deps.Valuation.Estimate(listing.Price, features, repository.SalePrices(sales))

	saved := &entity.Valuation{
		ListingID:          listing.ID,
		ExpectedSalePrice:  valuation.ExpectedSalePrice,
		BuyLimit:           valuation.BuyLimit,
		SuggestedListPrice: valuation.SuggestedListPrice,
		CILow:              valuation.CILow,
		CIHigh:             valuation.CIHigh,
		ModelConfidence:    valuation.ModelConfidence,
		ComparablesCount:   valuation.ComparablesCount,
		Reasoning:          valuation.Reasoning,
	}
	if err := e.deps.Valuations.Create(ctx, saved); err != nil {
		return nil, err
	}

	sellerCount := 0
	sellerID := utils.Deref(listing.SellerID)
	if sellerID != "" {
		sellerCount, err = e.deps.Listings.CountSellerOpenListings(ctx, listing.Source, sellerID, listing.ID)
		if err != nil {
			return nil, err
		}
	}

	risk := e.deps.Risk.Assess(dto.RiskInput{
		ListPrice:          listing.Price,
		Valuation:          valuation,
		SellerListingCount: sellerCount,
		Text:               listing.Title + " " + listing.Description,
	})
	profit := e.deps.Scorer.Score(listing.Price, valuation.ExpectedSalePrice, risk.Score)
	status := e.deps.Risk.ApplyGate(profit.Status, risk)

	opportunityID, err := e.deps.Opportunities.Upsert(ctx, &entity.Opportunity{
		ListingID:      listing.ID,
		ValuationID:    saved.ID,
		ExpectedProfit: profit.NetProfit,
		ExpectedROI:    profit.ROI,
		Score:          profit.Score,
		RiskScore:      risk.Score,
		RiskLevel:      risk.Level,
		Status:         status,
		ReviewNote:     FormatRiskNote(risk),
	})
	if err != nil {
		return nil, err
	}

	analysis := &dto.Analysis{
		ListingID:     listing.ID,
		OpportunityID: opportunityID,
		ValuationID:   saved.ID,
		Title:         listing.Title,
		ListPrice:     listing.Price,
		SellerID:      sellerID,
		Features:      features,
		Valuation:     valuation,
		Risk:          risk,
		Profit:        profit,
		Status:        status,
		ShouldBuy:     status == entity.OpportunityStatusPendingReview && !risk.HardBlock,
	}

	e.publish(event.ItemAnalyzed{Analysis: *analysis})
	if analysis.ShouldBuy {
		e.publish(event.ItemUnderpriced{Analysis: *analysis})
	}

	e.log.Debug("Listing analysed",
		logger.IntField("listing_id", int(listing.ID)),
		logger.StringField("status", string(status)),
		logger.Float64Field("score", profit.Score),
		logger.Float64Field("risk_score", risk.Score))

	return analysis, nil
}

// AnalyzeOpen analyses up to limit open listings. A failing listing is
// counted and does not stop the pass.
func (e *analysisEngine) AnalyzeOpen(ctx context.Context, limit int) (dto.AnalyzeOpenResult, error) {
	var result dto.AnalyzeOpenResult
	if limit <= 0 {
		limit = e.cfg.OpenBatchLimit
	}

	listings, err := e.deps.Listings.GetOpenListings(ctx, limit)
	if err != nil {
		return result, err
	}

	for _, listing := range listings {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		analysis, err := e.AnalyzeListing(ctx, listing.ID)
		if err != nil {
			result.Failed++
			e.log.Warn("Failed to analyse listing",
				logger.IntField("listing_id", int(listing.ID)),
				logger.ErrorField(err))
			continue
		}
		result.Processed++
		switch analysis.Status {
		case entity.OpportunityStatusPendingReview:
			result.PendingReview++
		case entity.OpportunityStatusBlockedRisk:
			result.BlockedRisk++
		default:
			result.Ignored++
		}
	}
	return result, nil
}

// HandleItemFound is the bus handler that analyses every new listing.
func (e *analysisEngine) HandleItemFound(ctx context.Context, evt event.Event) error {
	found, ok := evt.Payload.(event.ItemFound)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}
	_, err := e.AnalyzeListing(ctx, found.ListingID)
	return err
}

// ensureFeatures returns the stored features of a listing, extracting and
// saving them first when none exist.
func (e *analysisEngine) ensureFeatures(ctx context.Context, listing *entity.Listing) (dto.Features, error) {
	stored, err := e.deps.Features.Get(ctx, common.RefTypeListing, listing.ID)
	if err == nil {
		return featuresFromEntity(stored), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return dto.Features{}, err
	}

	features := e.deps.Extractor.Extract(ctx, listing.Title, listing.Description)
	if err := e.deps.Features.Save(ctx, featuresToEntity(common.RefTypeListing, listing.ID, features)); err != nil {
		return dto.Features{}, err
	}
	return features, nil
}

func (e *analysisEngine) publish(p event.Payload) {
	if e.deps.Publisher == nil {
		return
	}
	if err := e.deps.Publisher.Publish(p); err != nil {
		e.log.Error("Failed to publish event",
			logger.StringField("event_type", string(p.EventType())),
			logger.ErrorField(err))
	}
}

func featuresFromEntity(f *entity.ItemFeature) dto.Features {
	features := dto.Features{
		CardName:   f.CardName,
		Rarity:     f.Rarity,
		Edition:    f.Edition,
		Condition:  f.Condition,
		Confidence: f.Confidence,
		Method:     f.Method,
	}
	if len(f.Extras) > 0 {
		_ = json.Unmarshal(f.Extras, &features.Extras)
	}
	return features.Normalize(f.Confidence)
}

func featuresToEntity(refType string, refID uint, f dto.Features) *entity.ItemFeature {
	feature := &entity.ItemFeature{
		RefType:    refType,
		RefID:      refID,
		CardName:   f.CardName,
		Rarity:     f.Rarity,
		Edition:    f.Edition,
		Condition:  f.Condition,
		Confidence: f.Confidence,
		Method:     f.Method,
		UpdatedAt:  time.Now(),
	}
	if len(f.Extras) > 0 {
		if raw, err := json.Marshal(f.Extras); err == nil {
			feature.Extras = datatypes.JSON(raw)
		}
	}
	return feature
}
