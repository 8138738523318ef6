// Package diagnose orchestrates crop-disease diagnosis: classify the photo,
// gather disease and treatment details concurrently, extract the structured
// record, and localize it. Every hosted failure degrades to canned content —
// the farmer always gets an answer.
package diagnose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/farmrag/backend/internal/llm"
	"github.com/farmrag/backend/internal/metrics"
	"github.com/farmrag/backend/internal/postprocess"
	"github.com/farmrag/backend/internal/translate"
	"github.com/farmrag/backend/pkg/logger"
)

// ErrInvalidImage is an input-validation failure, mapped to 4xx before any
// hosted call is made.
var ErrInvalidImage = errors.New("image must be a base64 data URI")

type Classifier interface {
	ClassifyImage(ctx context.Context, imageDataURI string) ([]llm.Label, error)
}

type Generator interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type Diagnoser struct {
	classifier Classifier
	generator  Generator
	translator *translate.Translator
}

func NewDiagnoser(classifier Classifier, generator Generator, translator *translate.Translator) *Diagnoser {
	return &Diagnoser{
		classifier: classifier,
		generator:  generator,
		translator: translator,
	}
}

func (d *Diagnoser) Ready() bool {
	return d.classifier != nil && d.generator != nil
}

func (d *Diagnoser) Diagnose(ctx context.Context, imageDataURI, language string) (*Result, error) {
	if !validDataURI(imageDataURI) {
		return nil, ErrInvalidImage
	}

	if !d.Ready() {
		logger.Warn("Diagnosis served in demo mode, hosted dependencies not configured")
		metrics.DegradedTotal.WithLabelValues("missing_credentials").Inc()
		return d.localized(ctx, demoResult(), language), nil
	}

	timer := metrics.StageTimer("classification")
	labels, err := d.classifier.ClassifyImage(ctx, imageDataURI)
	timer.ObserveDuration()
	if err != nil || len(labels) == 0 {
		logger.Error("Image classification failed", zap.Error(err))
		metrics.DegradedTotal.WithLabelValues("classification_failed").Inc()
		return d.localized(ctx, demoResult(), language), nil
	}

	top := labels[0]

	// Disease details and treatment options come from independent hosted
	// calls, issued concurrently and joined before responding.
	var disease diseaseInfo
	var treatment treatmentInfo

	timer = metrics.StageTimer("generation")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.fetchDiseaseInfo(gctx, top.Name, &disease)
	})
	g.Go(func() error {
		return d.fetchTreatmentInfo(gctx, top.Name, &treatment)
	})
	err = g.Wait()
	timer.ObserveDuration()

	if err != nil {
		// The classification succeeded, so the fallback keeps its label
		// rather than the fully canned disease.
		logger.Error("Diagnosis generation failed, serving enriched fallback",
			zap.String("label", top.Name),
			zap.Error(err),
		)
		metrics.DegradedTotal.WithLabelValues("generation_failed").Inc()
		fallback := demoResult()
		fallback.DiseaseName = top.Name
		fallback.Confidence = top.Confidence
		return d.localized(ctx, fallback, language), nil
	}

	result := &Result{
		DiseaseName:        disease.DiseaseName,
		ScientificName:     disease.ScientificName,
		AffectedCrops:      disease.AffectedCrops,
		Symptoms:           disease.Symptoms,
		DiseaseDescription: disease.DiseaseDescription,
		Remedies: Remedies{
			Cultural:   treatment.Cultural,
			Biological: treatment.Biological,
			Chemical:   treatment.Chemical,
		},
		Confidence: top.Confidence,
	}
	if result.DiseaseName == "" {
		result.DiseaseName = top.Name
	}

	logger.Info("Diagnosis completed",
		zap.String("disease", result.DiseaseName),
		zap.Float64("confidence", result.Confidence),
	)

	return d.localized(ctx, result, language), nil
}

func (d *Diagnoser) fetchDiseaseInfo(ctx context.Context, label string, out *diseaseInfo) error {
	systemPrompt := `You are a plant pathologist writing for smallholder farmers.

Return ONLY JSON in this exact shape:
{"diseaseName": "", "scientificName": "", "affectedCrops": [""], "symptoms": [""], "diseaseDescription": ""}

Keep diseaseDescription under 80 words and free of jargon.`

	resp, err := d.generator.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   fmt.Sprintf("Describe the crop disease %q.", label),
		Temperature:  0.2,
		MaxTokens:    500,
	})
	if err != nil {
		return fmt.Errorf("disease info: %w", err)
	}

	if err := postprocess.Unmarshal(resp.Content, out); err != nil {
		return fmt.Errorf("disease info: %w", err)
	}
	return nil
}

func (d *Diagnoser) fetchTreatmentInfo(ctx context.Context, label string, out *treatmentInfo) error {
	systemPrompt := `You are an agricultural extension officer advising smallholder farmers.

Return ONLY JSON in this exact shape:
{"cultural": [""], "biological": [""], "chemical": [""]}

List 2-4 remedies per category, each a single actionable sentence. Name specific products and doses where relevant.`

	resp, err := d.generator.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   fmt.Sprintf("List treatments for the crop disease %q.", label),
		Temperature:  0.2,
		MaxTokens:    600,
	})
	if err != nil {
		return fmt.Errorf("treatment info: %w", err)
	}

	if err := postprocess.Unmarshal(resp.Content, out); err != nil {
		return fmt.Errorf("treatment info: %w", err)
	}
	return nil
}

// localized translates every user-facing field in one batched call. The
// scientific name stays in Latin. Translation failure returns the original.
func (d *Diagnoser) localized(ctx context.Context, r *Result, language string) *Result {
	if language == "" || strings.EqualFold(language, "en") || !d.translator.Configured() {
		return r
	}

	fields := []*string{&r.DiseaseName, &r.DiseaseDescription}
	for i := range r.AffectedCrops {
		fields = append(fields, &r.AffectedCrops[i])
	}
	for i := range r.Symptoms {
		fields = append(fields, &r.Symptoms[i])
	}
	for i := range r.Remedies.Cultural {
		fields = append(fields, &r.Remedies.Cultural[i])
	}
	for i := range r.Remedies.Biological {
		fields = append(fields, &r.Remedies.Biological[i])
	}
	for i := range r.Remedies.Chemical {
		fields = append(fields, &r.Remedies.Chemical[i])
	}

	d.translator.TranslateFields(ctx, fields, language)

	return r
}

func validDataURI(s string) bool {
	if !strings.HasPrefix(s, "data:image/") {
		return false
	}
	idx := strings.Index(s, ";base64,")
	if idx < 0 {
		return false
	}
	return len(s) > idx+len(";base64,")
}
