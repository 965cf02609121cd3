package license

import (
	"context"
	"fmt"
	"os"

	licerrors "convertcli/internal/errors"
)

// featureTiers maps every gated converter or feature to the minimum tier
// that includes it. Gate logic is this single lookup plus a tier comparison;
// converters never carry their own licensing conditionals.
var featureTiers = map[string]Tier{
	// Baseline markdown paths, free in trial.
	"md2pdf":  TierTrial,
	"md2html": TierTrial,
	"md2docx": TierTrial,

	// Office and PDF round-trips.
	"docx2pdf":  TierBasic,
	"docx2md":   TierBasic,
	"pdf2docx":  TierBasic,
	"pdf2md":    TierBasic,
	"html2pdf":  TierBasic,
	"pptx2pdf":  TierBasic,
	"xlsx2pdf":  TierBasic,
	"epub2pdf":  TierBasic,
	"pdf2epub":  TierBasic,
	"image2pdf": TierBasic,

	// OCR-backed and bulk workflows.
	"pdf2md-ocr":   TierPro,
	"image2md-ocr": TierPro,
	"batch":        TierPro,
	"watch-folder": TierPro,

	// Automation surface.
	"cli-automation": TierEnterprise,
	"priority-queue": TierEnterprise,
}

// CheckFeatureAccess decides whether the current license tier includes the
// named feature. The decision reads in-memory state only; it is cheap enough
// for every conversion to call it.
func (m *Manager) CheckFeatureAccess(feature string) error {
	required, ok := featureTiers[feature]
	if !ok {
		return fmt.Errorf("%w: %q", licerrors.ErrUnknownFeature, feature)
	}

	current := m.currentTier()
	if current.Includes(required) {
		return nil
	}

	m.metrics.recordGateDenial(context.Background(), feature)
	return &licerrors.FeatureError{
		Feature:      feature,
		RequiredTier: required.String(),
		CurrentTier:  current.String(),
	}
}

// CheckFileSizeLimit enforces the per-tier input size ceiling for the file
// at path.
func (m *Manager) CheckFileSizeLimit(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat input file: %w", err)
	}

	limit := m.currentTier().MaxFileSize()
	if limit > 0 && info.Size() > limit {
		return &licerrors.FileSizeError{
			Path:  path,
			Limit: limit,
			Size:  info.Size(),
		}
	}
	return nil
}

// RecordConversionAttempt reports one conversion to the backend's usage log
// and, for trial users, to the local trial counter. Fire and forget: nothing
// here can fail the conversion it describes.
func (m *Manager) RecordConversionAttempt(ctx context.Context, converterName string, fileSize int64, success bool) {
	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()

	if state == nil {
		m.trial.RecordConversion(converterName)
		return
	}
	if m.backend != nil {
		m.backend.RecordUsage(ctx, state.LicenseKey, converterName, fileSize, success)
	}
}

// GatedFeatures returns the feature table for display purposes (the GUI
// grays out entries above the current tier).
func GatedFeatures() map[string]string {
	out := make(map[string]string, len(featureTiers))
	for name, tier := range featureTiers {
		out[name] = tier.String()
	}
	return out
}
