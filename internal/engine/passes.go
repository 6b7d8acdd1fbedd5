package engine

import (
	"context"
	"fmt"

	"github.com/oakmere/shoebox/internal/llm"
	"github.com/oakmere/shoebox/internal/model"
	"github.com/oakmere/shoebox/internal/normalize"
	"github.com/oakmere/shoebox/internal/rules"
)

// extraCategoryHint is the cache Extra key carrying the payee pass's rough
// category guess forward to the category pass.
const extraCategoryHint = "category_hint"

// passContext carries one transaction's in-flight state between passes.
type passContext struct {
	txn     model.Transaction
	profile model.ClientProfile
	catalog *model.CategoryCatalog
	result  *model.ClassificationResult
	hint    string
	review  bool
}

// runPayeePass resolves the payee: cache, then a prior match, then inference
// with an optional vendor-lookup retry when the first answer is weak.
func (e *Engine) runPayeePass(ctx context.Context, pc *passContext) error {
	key := pc.result.NormalizedKey

	entry, err := e.storage.GetCacheEntry(ctx, model.PassPayee, key)
	if err != nil {
		return fmt.Errorf("cache lookup failed: %w", err)
	}
	if entry != nil && entry.Partial.Payee != "" {
		pc.result.Payee = entry.Partial.Payee
		pc.result.BusinessDescription = entry.Partial.BusinessDescription
		pc.result.PayeeConfidence = entry.Confidence
		pc.result.SourceOfTruth = model.SourceCache
		pc.hint = entry.Partial.Extra[extraCategoryHint]
		return nil
	}

	m, err := e.matcher.FindPrior(ctx, pc.txn.ClientID, model.PassPayee, key)
	if err != nil {
		return fmt.Errorf("prior match failed: %w", err)
	}
	if m != nil {
		pc.result.Payee = m.Prior.Payee
		pc.result.BusinessDescription = m.Prior.BusinessDescription
		pc.result.PayeeConfidence = m.Prior.PayeeConfidence
		pc.result.SourceOfTruth = model.SourceMatched
		if m.Ambiguous {
			pc.review = true
		}
		e.writeCache(ctx, model.PassPayee, key, model.PartialResult{
			Payee:               m.Prior.Payee,
			BusinessDescription: m.Prior.BusinessDescription,
			Confidence:          m.Prior.PayeeConfidence,
		}, m.Prior.PayeeConfidence)
		return nil
	}

	req := llm.PayeeRequest{
		Profile:     pc.profile,
		Description: pc.txn.Description,
		Amount:      pc.txn.Amount,
	}
	resp, err := e.inference.IdentifyPayee(ctx, req)
	if err != nil {
		return err
	}
	conf := model.Confidence(resp.Confidence)

	if conf == model.ConfidenceLow || resp.Ambiguous {
		resp, conf = e.retryWithEnrichment(ctx, req, resp, conf)
	}

	pc.result.Payee = resp.Payee
	pc.result.BusinessDescription = resp.BusinessDescription
	pc.result.PayeeConfidence = conf
	pc.result.SourceOfTruth = model.SourceInference
	pc.hint = resp.CategoryHint

	partial := model.PartialResult{
		Payee:               resp.Payee,
		BusinessDescription: resp.BusinessDescription,
		Confidence:          conf,
	}
	if resp.CategoryHint != "" {
		partial.Extra = map[string]string{extraCategoryHint: resp.CategoryHint}
	}
	e.writeCache(ctx, model.PassPayee, key, partial, conf)
	return nil
}

// retryWithEnrichment asks the vendor directory for context and reruns the
// payee call with it. Lookup failures are best effort and keep the original
// answer; a retry only wins when it is at least as confident.
func (e *Engine) retryWithEnrichment(ctx context.Context, req llm.PayeeRequest, first llm.PayeeResponse, firstConf model.Confidence) (llm.PayeeResponse, model.Confidence) {
	info, err := e.enricher.Lookup(ctx, req.Description)
	if err != nil {
		e.logger.Warn("vendor lookup failed, keeping original answer",
			"description", req.Description,
			"error", err)
		return first, firstConf
	}
	if info == "" {
		return first, firstConf
	}

	req.Enrichment = info
	second, err := e.inference.IdentifyPayee(ctx, req)
	if err != nil {
		e.logger.Warn("enriched payee retry failed, keeping original answer", "error", err)
		return first, firstConf
	}

	secondConf := model.Confidence(second.Confidence)
	if secondConf.Rank() >= firstConf.Rank() {
		return second, secondConf
	}
	return first, firstConf
}

// runCategoryPass picks a general category from the client's catalog.
func (e *Engine) runCategoryPass(ctx context.Context, pc *passContext) error {
	key := pc.result.NormalizedKey

	entry, err := e.storage.GetCacheEntry(ctx, model.PassCategory, key)
	if err != nil {
		return fmt.Errorf("cache lookup failed: %w", err)
	}
	if entry != nil && entry.Partial.GeneralCategory != "" {
		pc.result.GeneralCategory = entry.Partial.GeneralCategory
		pc.result.Confidence = entry.Confidence
		pc.result.SourceOfTruth = model.SourceCache
		return nil
	}

	m, err := e.matcher.FindPrior(ctx, pc.txn.ClientID, model.PassCategory, key)
	if err != nil {
		return fmt.Errorf("prior match failed: %w", err)
	}
	if m != nil {
		pc.result.GeneralCategory = m.Prior.GeneralCategory
		pc.result.Confidence = m.Prior.Confidence
		pc.result.SourceOfTruth = model.SourceMatched
		if m.Ambiguous {
			pc.review = true
		}
		e.writeCache(ctx, model.PassCategory, key, model.PartialResult{
			GeneralCategory: m.Prior.GeneralCategory,
			Confidence:      m.Prior.Confidence,
		}, m.Prior.Confidence)
		return nil
	}

	categories := e.categoryNames(pc.catalog)
	resp, err := e.inference.AssignCategory(ctx, llm.CategoryRequest{
		Profile:             pc.profile,
		Description:         pc.txn.Description,
		Payee:               pc.result.Payee,
		BusinessDescription: pc.result.BusinessDescription,
		CategoryHint:        pc.hint,
		Categories:          categories,
		Amount:              pc.txn.Amount,
	})
	if err != nil {
		return err
	}

	category := resp.GeneralCategory
	if !containsString(categories, category) && category != "Other" {
		e.logger.Warn("category outside catalog, using Other",
			"transaction_id", pc.txn.ID,
			"category", category)
		category = "Other"
	}

	conf := model.Confidence(resp.Confidence)
	pc.result.GeneralCategory = category
	pc.result.Confidence = conf
	pc.result.Reasoning = resp.Reasoning
	pc.result.SourceOfTruth = model.SourceInference

	e.writeCache(ctx, model.PassCategory, key, model.PartialResult{
		GeneralCategory: category,
		Reasoning:       resp.Reasoning,
		Confidence:      conf,
	}, conf)
	return nil
}

// runTaxPass assigns tax category, worksheet, and business percentage. The
// ladder gains a deterministic rule-mapping step: a general category already
// present in the catalog maps straight to its worksheet without inference.
func (e *Engine) runTaxPass(ctx context.Context, pc *passContext) error {
	key := pc.result.NormalizedKey

	entry, err := e.storage.GetCacheEntry(ctx, model.PassTax, key)
	if err != nil {
		return fmt.Errorf("cache lookup failed: %w", err)
	}
	if entry != nil && entry.Partial.TaxCategory != "" && entry.Partial.Worksheet != "" {
		pct := 0
		if entry.Partial.BusinessPercentage != nil {
			pct = *entry.Partial.BusinessPercentage
		}
		e.applyTax(pc, entry.Partial.TaxCategory, entry.Partial.Worksheet, pct, entry.Confidence, entry.Partial.Reasoning, "", model.SourceCache)
		return nil
	}

	m, err := e.matcher.FindPrior(ctx, pc.txn.ClientID, model.PassTax, key)
	if err != nil {
		return fmt.Errorf("prior match failed: %w", err)
	}
	if m != nil {
		if m.Ambiguous {
			pc.review = true
		}
		e.applyTax(pc, m.Prior.TaxCategory, m.Prior.Worksheet, m.Prior.BusinessPercentage, m.Prior.Confidence, m.Prior.Reasoning, m.Prior.OpenQuestions, model.SourceMatched)
		e.writeTaxCache(ctx, key, pc.result)
		return nil
	}

	if cat := e.findCatalogEntry(pc.catalog, pc.result.GeneralCategory); cat != nil {
		taxCategory, worksheet := mapCatalogEntry(cat, &pc.profile)
		pct := 0
		if worksheet.Business() {
			pct = 100
		}
		e.applyTax(pc, taxCategory, worksheet, pct, model.ConfidenceHigh, cat.TaxImplication, "", model.SourceMapped)
		e.writeTaxCache(ctx, key, pc.result)
		return nil
	}

	resp, err := e.inference.ClassifyTax(ctx, llm.TaxRequest{
		Profile:             pc.profile,
		Description:         pc.txn.Description,
		Payee:               pc.result.Payee,
		BusinessDescription: pc.result.BusinessDescription,
		GeneralCategory:     pc.result.GeneralCategory,
		TaxCategories:       rules.StandardTaxCategories(),
		Amount:              pc.txn.Amount,
	})
	if err != nil {
		return err
	}

	conf := model.Confidence(resp.Confidence)
	worksheet := model.Worksheet(resp.Worksheet)

	// The model never gets the last word on worksheet applicability.
	if inapplicable(worksheet, &pc.profile) {
		worksheet = rules.Assign(resp.TaxCategory, &pc.profile)
	}
	if conf != model.ConfidenceHigh && rules.IsMisuseProne(resp.TaxCategory) {
		e.logger.Debug("downgrading misuse-prone worksheet",
			"transaction_id", pc.txn.ID,
			"tax_category", resp.TaxCategory,
			"from", worksheet,
			"confidence", conf)
		worksheet = rules.Downgrade(worksheet)
	}

	pct := resp.BusinessPercentage
	if !worksheet.Business() {
		pct = 0
	} else if pct == 0 {
		// A business worksheet with no business use is a contradiction;
		// default to personal.
		worksheet = model.WorksheetPersonal
	}

	e.applyTax(pc, resp.TaxCategory, worksheet, pct, conf, resp.Reasoning, resp.OpenQuestions, model.SourceInference)
	e.writeTaxCache(ctx, key, pc.result)
	return nil
}

// applyTax copies the full tax field set onto the result. Low confidence and
// open questions flag review here, no matter which ladder step resolved the
// pass, so identical keys always land in the same terminal state.
func (e *Engine) applyTax(pc *passContext, taxCategory string, worksheet model.Worksheet, pct int, conf model.Confidence, reasoning, openQuestions string, source model.SourceOfTruth) {
	pc.result.TaxCategory = taxCategory
	pc.result.Worksheet = worksheet
	pc.result.BusinessPercentage = pct
	pc.result.Confidence = conf
	if reasoning != "" {
		pc.result.Reasoning = reasoning
	}
	pc.result.OpenQuestions = openQuestions
	pc.result.SourceOfTruth = source

	if openQuestions != "" || conf == model.ConfidenceLow {
		pc.review = true
	}
}

// writeTaxCache writes the tax pass's field set through to the cache.
func (e *Engine) writeTaxCache(ctx context.Context, key string, r *model.ClassificationResult) {
	pct := r.BusinessPercentage
	e.writeCache(ctx, model.PassTax, key, model.PartialResult{
		TaxCategory:        r.TaxCategory,
		Worksheet:          r.Worksheet,
		BusinessPercentage: &pct,
		Reasoning:          r.Reasoning,
		Confidence:         r.Confidence,
	}, r.Confidence)
}

// writeCache merges a pass result into the cache. A merge failure degrades
// later runs but never fails the pass that produced the result.
func (e *Engine) writeCache(ctx context.Context, pass model.PassType, key string, partial model.PartialResult, conf model.Confidence) {
	if key == "" || key == normalize.EmptyKey {
		return
	}
	if err := e.storage.MergeCacheEntry(ctx, pass, key, partial, conf); err != nil {
		e.logger.Warn("cache write-through failed",
			"pass", pass,
			"key", key,
			"error", err)
	}
}

// categoryNames returns the client's catalog names, or the standard tax
// category list when the client has no catalog for the year.
func (e *Engine) categoryNames(catalog *model.CategoryCatalog) []string {
	if catalog != nil && len(catalog.Categories) > 0 {
		return catalog.Names()
	}
	return rules.StandardTaxCategories()
}

func (e *Engine) findCatalogEntry(catalog *model.CategoryCatalog, generalCategory string) *model.ExpenseCategory {
	if catalog == nil || generalCategory == "" {
		return nil
	}
	return catalog.Find(generalCategory)
}

// mapCatalogEntry is the deterministic rule-mapping step. Standard categories
// keep their own name as the tax category; custom categories aggregate into
// the 6A catch-all. The profile applicability check always applies.
func mapCatalogEntry(cat *model.ExpenseCategory, profile *model.ClientProfile) (string, model.Worksheet) {
	if rules.IsStandard(cat.Name) {
		return cat.Name, rules.Assign(cat.Name, profile)
	}

	worksheet := cat.Worksheet
	if worksheet == "" || !worksheet.Valid() || inapplicable(worksheet, profile) {
		worksheet = model.Worksheet6A
	}
	return rules.CatchAllCategory, worksheet
}

// inapplicable reports whether the worksheet needs a profile flag the client
// does not have.
func inapplicable(w model.Worksheet, profile *model.ClientProfile) bool {
	switch w {
	case model.WorksheetAuto:
		return !profile.HasVehicle
	case model.WorksheetHomeOffice:
		return !profile.HasHomeOffice
	default:
		return !w.Valid()
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
