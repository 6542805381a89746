// internal/services/verification_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tonytran1984vn/trustchecker/internal/events"
	"github.com/tonytran1984vn/trustchecker/internal/models"
)

// VerificationService is the request-level state machine that turns one
// scanned code into a trust decision:
// lookup -> replay check -> fraud analysis -> trust scoring -> seal -> respond.
type VerificationService struct {
	db      *gorm.DB
	bus     *events.Bus
	fraud   *FraudService
	trust   *TrustService
	seal    *SealService
	storage *StorageService
}

type VerifyRequest struct {
	CodeValue         string   `json:"code" validate:"required"`
	DeviceFingerprint string   `json:"device_fingerprint"`
	IPAddress         string   `json:"ip_address"`
	Latitude          *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude         *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	UserAgent         string   `json:"user_agent"`
	ScanType          models.ScanType
	ImageData         string `json:"image_data,omitempty"`
}

type ScanVerification struct {
	IsFirstScan          bool        `json:"is_first_scan"`
	TotalScans           int         `json:"total_scans"`
	FirstScannedAt       *time.Time  `json:"first_scanned_at,omitempty"`
	FirstScannedFromIP   string      `json:"first_scanned_from_ip,omitempty"`
	FirstScannedLocation string      `json:"first_scanned_location,omitempty"`
	RiskLevel            string      `json:"risk_level,omitempty"`
	PreviousScanTimes    []time.Time `json:"previous_scan_times,omitempty"`
}

type ProductSummary struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	SKU           string    `json:"sku"`
	Manufacturer  string    `json:"manufacturer"`
	Category      string    `json:"category"`
	OriginCountry string    `json:"origin_country"`
}

type AlertSummary struct {
	Type        models.AlertType     `json:"type"`
	Severity    models.AlertSeverity `json:"severity"`
	Description string               `json:"description"`
}

type FraudSummary struct {
	Score          float64        `json:"score"`
	AlertCount     int            `json:"alert_count"`
	Alerts         []AlertSummary `json:"alerts"`
	Explainability Explainability `json:"explainability"`
}

type TrustSummary struct {
	Score       int          `json:"score"`
	Grade       string       `json:"grade"`
	Factors     TrustFactors `json:"factors"`
	Explanation models.JSONB `json:"explanation,omitempty"`
}

type SealSummary struct {
	Sealed     bool   `json:"sealed"`
	BlockIndex int64  `json:"block_index"`
	DataHash   string `json:"data_hash"`
	MerkleRoot string `json:"merkle_root"`
}

type VerificationResult struct {
	Valid            bool               `json:"valid"`
	Outcome          models.ScanOutcome `json:"outcome"`
	Message          string             `json:"message"`
	ScanID           uuid.UUID          `json:"scan_id"`
	ScanVerification ScanVerification   `json:"scan_verification"`
	Product          *ProductSummary    `json:"product,omitempty"`
	Fraud            FraudSummary       `json:"fraud"`
	Trust            TrustSummary       `json:"trust"`
	Seal             SealSummary        `json:"seal"`
	ResponseTimeMs   int64              `json:"response_time_ms"`
}

func NewVerificationService(db *gorm.DB, bus *events.Bus, fraud *FraudService, trust *TrustService, seal *SealService, storage *StorageService) *VerificationService {
	return &VerificationService{
		db:      db,
		bus:     bus,
		fraud:   fraud,
		trust:   trust,
		seal:    seal,
		storage: storage,
	}
}

// VerifyScan runs the full pipeline for one scan attempt. Unknown codes are a
// valid terminal outcome, not an error: the attempt itself is a
// security-relevant event and still produces a full sealed record.
func (s *VerificationService) VerifyScan(ctx context.Context, req *VerifyRequest) (*VerificationResult, error) {
	startTime := time.Now()

	if req.ScanType == "" {
		req.ScanType = models.ScanTypeValidation
	}

	var code models.Code
	err := s.db.WithContext(ctx).Preload("Product").First(&code, "value = ?", req.CodeValue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.rejectUnknownCode(ctx, req, startTime)
	}
	if err != nil {
		return nil, fmt.Errorf("code lookup failed: %w", err)
	}

	// Replay check: prior non-pending events for this code, oldest first.
	var priorScans []models.ScanEvent
	if err := s.db.WithContext(ctx).
		Where("code_id = ? AND outcome != ?", code.ID, models.ScanOutcomePending).
		Order("scanned_at ASC").
		Find(&priorScans).Error; err != nil {
		return nil, fmt.Errorf("replay check failed: %w", err)
	}
	priorCount := len(priorScans)
	isFirstScan := priorCount == 0

	scan := models.ScanEvent{
		CodeID:            &code.ID,
		ProductID:         &code.ProductID,
		ScanType:          req.ScanType,
		DeviceFingerprint: req.DeviceFingerprint,
		IPAddress:         req.IPAddress,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		UserAgent:         req.UserAgent,
		Outcome:           models.ScanOutcomePending,
		ScannedAt:         time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&scan).Error; err != nil {
		return nil, fmt.Errorf("failed to record scan event: %w", err)
	}

	log := logrus.WithField("scan_id", scan.ID)

	if req.ImageData != "" && s.storage != nil {
		if upload, err := s.storage.UploadScanEvidence(scan.ID, req.ImageData); err != nil {
			log.WithError(err).Warn("Failed to store scan evidence")
		} else if upload != nil {
			s.db.WithContext(ctx).Model(&scan).Update("evidence_url", upload.URL)
			scan.EvidenceURL = upload.URL
		}
	}

	s.bus.Publish(events.TypeScanRecorded, map[string]interface{}{
		"scan_id":      scan.ID.String(),
		"product_id":   code.ProductID.String(),
		"product_name": code.Product.Name,
	})

	fraudResult, err := s.fraud.Analyze(ctx, &scan)
	if err != nil {
		log.WithError(err).Error("Fraud analysis failed")
		return nil, fmt.Errorf("fraud analysis failed: %w", err)
	}

	trustResult, err := s.trust.Calculate(ctx, code.ProductID, fraudResult.FraudScore)
	if err != nil {
		log.WithError(err).Error("Trust scoring failed")
		return nil, fmt.Errorf("trust scoring failed: %w", err)
	}

	outcome, message := ResolveOutcome(priorCount, fraudResult.FraudScore, code.Status)

	// Single terminal update: pending transitions to its final outcome once.
	responseTime := time.Since(startTime).Milliseconds()
	if err := s.db.WithContext(ctx).Model(&models.ScanEvent{}).
		Where("id = ? AND outcome = ?", scan.ID, models.ScanOutcomePending).
		Updates(map[string]interface{}{
			"outcome":          outcome,
			"fraud_score":      fraudResult.FraudScore,
			"trust_score":      trustResult.Score,
			"response_time_ms": responseTime,
		}).Error; err != nil {
		return nil, fmt.Errorf("failed to finalize scan event: %w", err)
	}

	// A verification without a seal must not exist: seal failure fails the
	// whole request.
	sealResult, err := s.seal.Seal(ctx, "ScanVerified", scan.ID.String(), map[string]interface{}{
		"product_id":  code.ProductID.String(),
		"outcome":     string(outcome),
		"fraud_score": fraudResult.FraudScore,
		"trust_score": trustResult.Score,
	})
	if err != nil {
		log.WithError(err).Error("Seal failed")
		return nil, fmt.Errorf("seal failed: %w", err)
	}

	result := &VerificationResult{
		Valid:   outcome == models.ScanOutcomeValid,
		Outcome: outcome,
		Message: message,
		ScanID:  scan.ID,
		ScanVerification: buildScanVerification(isFirstScan, priorScans),
		Product: &ProductSummary{
			ID:            code.Product.ID,
			Name:          code.Product.Name,
			SKU:           code.Product.SKU,
			Manufacturer:  code.Product.Manufacturer,
			Category:      code.Product.Category,
			OriginCountry: code.Product.OriginCountry,
		},
		Fraud: FraudSummary{
			Score:          fraudResult.FraudScore,
			AlertCount:     len(fraudResult.Alerts),
			Alerts:         summarizeAlerts(fraudResult.Alerts),
			Explainability: fraudResult.Explainability,
		},
		Trust: TrustSummary{
			Score:       trustResult.Score,
			Grade:       trustResult.Grade,
			Factors:     trustResult.Factors,
			Explanation: trustResult.Explanation,
		},
		Seal: SealSummary{
			Sealed:     true,
			BlockIndex: sealResult.BlockIndex,
			DataHash:   sealResult.DataHash,
			MerkleRoot: sealResult.MerkleRoot,
		},
		ResponseTimeMs: responseTime,
	}

	log.WithFields(logrus.Fields{
		"outcome":     outcome,
		"fraud_score": fraudResult.FraudScore,
		"trust_score": trustResult.Score,
		"duration_ms": responseTime,
	}).Info("Scan verified")

	return result, nil
}

// rejectUnknownCode is the early-exit branch: no further analysis is
// meaningful, but the attempt is sealed and recorded.
func (s *VerificationService) rejectUnknownCode(ctx context.Context, req *VerifyRequest, startTime time.Time) (*VerificationResult, error) {
	scan := models.ScanEvent{
		ScanType:          req.ScanType,
		DeviceFingerprint: req.DeviceFingerprint,
		IPAddress:         req.IPAddress,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		UserAgent:         req.UserAgent,
		Outcome:           models.ScanOutcomeCounterfeit,
		FraudScore:        1.0,
		ScannedAt:         time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&scan).Error; err != nil {
		return nil, fmt.Errorf("failed to record rejected scan: %w", err)
	}

	sealResult, err := s.seal.Seal(ctx, "ScanRejected", scan.ID.String(), map[string]interface{}{
		"code_value": req.CodeValue,
		"outcome":    string(models.ScanOutcomeCounterfeit),
	})
	if err != nil {
		logrus.WithError(err).WithField("scan_id", scan.ID).Error("Seal failed")
		return nil, fmt.Errorf("seal failed: %w", err)
	}

	responseTime := time.Since(startTime).Milliseconds()
	s.db.WithContext(ctx).Model(&scan).Update("response_time_ms", responseTime)

	s.bus.Publish(events.TypeScanRejected, map[string]interface{}{
		"scan_id":    scan.ID.String(),
		"code_value": req.CodeValue,
		"outcome":    string(models.ScanOutcomeCounterfeit),
	})

	return &VerificationResult{
		Valid:   false,
		Outcome: models.ScanOutcomeCounterfeit,
		Message: "Code not recognized. Potential counterfeit detected.",
		ScanID:  scan.ID,
		ScanVerification: ScanVerification{
			IsFirstScan: true,
			TotalScans:  1,
		},
		Fraud: FraudSummary{
			Score:  1.0,
			Alerts: []AlertSummary{},
		},
		Trust: TrustSummary{
			Score: 0,
			Grade: GradeFor(0),
		},
		Seal: SealSummary{
			Sealed:     true,
			BlockIndex: sealResult.BlockIndex,
			DataHash:   sealResult.DataHash,
			MerkleRoot: sealResult.MerkleRoot,
		},
		ResponseTimeMs: responseTime,
	}, nil
}

// ResolveOutcome applies the outcome precedence rules. Replay state sets the
// tentative outcome, fraud overrides win over replay, and a revoked code wins
// unconditionally.
func ResolveOutcome(priorCount int, fraudScore float64, codeStatus models.CodeStatus) (models.ScanOutcome, string) {
	isFirstScan := priorCount == 0

	outcome := models.ScanOutcomeValid
	message := "Product verified authentic. This is the first recorded scan of this code."

	if !isFirstScan {
		if priorCount >= 3 {
			outcome = models.ScanOutcomeSuspicious
		} else {
			outcome = models.ScanOutcomeWarning
		}
		message = fmt.Sprintf("This code has been scanned %d time(s) before. Please verify the product carefully; it may not be genuine.", priorCount)
	}

	if fraudScore > 0.7 {
		outcome = models.ScanOutcomeSuspicious
		message = "Multiple fraud indicators detected. " + message
	} else if fraudScore > 0.4 && isFirstScan {
		outcome = models.ScanOutcomeWarning
		message = "Some anomalies were detected. Manual verification is recommended."
	}

	if codeStatus == models.CodeStatusRevoked {
		outcome = models.ScanOutcomeRevoked
		message = "This code has been revoked and is no longer valid."
	}

	return outcome, message
}

func buildScanVerification(isFirstScan bool, priorScans []models.ScanEvent) ScanVerification {
	sv := ScanVerification{
		IsFirstScan: isFirstScan,
		TotalScans:  len(priorScans) + 1,
	}
	if isFirstScan {
		return sv
	}

	first := priorScans[0]
	firstAt := first.ScannedAt
	sv.FirstScannedAt = &firstAt
	sv.FirstScannedFromIP = first.IPAddress
	if first.GeoCity != "" {
		sv.FirstScannedLocation = first.GeoCity + ", " + first.GeoCountry
	}

	switch {
	case len(priorScans) >= 5:
		sv.RiskLevel = "very_high"
	case len(priorScans) >= 3:
		sv.RiskLevel = "high"
	default:
		sv.RiskLevel = "medium"
	}

	for _, prior := range priorScans {
		sv.PreviousScanTimes = append(sv.PreviousScanTimes, prior.ScannedAt)
	}

	return sv
}

func summarizeAlerts(alerts []models.FraudAlert) []AlertSummary {
	out := make([]AlertSummary, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertSummary{
			Type:        a.AlertType,
			Severity:    a.Severity,
			Description: a.Description,
		})
	}
	return out
}
