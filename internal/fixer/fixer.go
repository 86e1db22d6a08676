// Package fixer turns detected mismatches into concrete code fixes.
// High-confidence deterministic suggestions pass through unchanged; a
// configured text-generation model may rewrite low-confidence ones,
// and its output is always flagged for manual review.
package fixer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/isyncso/apidiag/internal/types"
)

const (
	// deterministicTrustThreshold separates suggestions the fixer
	// returns as-is from ones worth an LLM rewrite attempt.
	deterministicTrustThreshold = 0.8

	// llmFixConfidence is assigned to every model-authored fix. The
	// model never gets to rate its own work.
	llmFixConfidence = 0.75

	// minLLMOutputLength guards against degenerate model responses.
	minLLMOutputLength = 10
)

// Fixer generates code fixes for auto-fixable mismatches.
type Fixer struct {
	llm TextGenerator
}

// New creates a fixer. A nil generator is valid and restricts the
// fixer to deterministic suggestions.
func New(llm TextGenerator) *Fixer {
	return &Fixer{llm: llm}
}

// GenerateFix produces a fix for a mismatch, or nil when the mismatch
// is not auto-fixable. This call never fails on LLM trouble: any error
// on that path falls back to the deterministic suggestion.
func (f *Fixer) GenerateFix(ctx context.Context, mismatch *types.APIMismatch) (*types.CodeFix, error) {
	if mismatch == nil {
		return nil, fmt.Errorf("mismatch is required")
	}
	if !mismatch.AutoFixable || mismatch.SuggestedFix == nil {
		return nil, nil
	}

	suggested := *mismatch.SuggestedFix
	if suggested.Confidence >= deterministicTrustThreshold {
		return &suggested, nil
	}

	if f.llm == nil {
		return &suggested, nil
	}

	fix, err := f.llmRewrite(ctx, mismatch, suggested)
	if err != nil {
		slog.Warn("LLM fix generation failed, keeping deterministic suggestion",
			"mismatch_id", mismatch.ID, "error", err)
		return &suggested, nil
	}
	return fix, nil
}

// GenerateFixes runs GenerateFix over a batch. Per-mismatch failures
// are reported in the result, never raised; mismatches that produced a
// fix move to fix_generated.
func (f *Fixer) GenerateFixes(ctx context.Context, mismatches []*types.APIMismatch) []FixResult {
	results := make([]FixResult, 0, len(mismatches))
	for _, m := range mismatches {
		if err := ctx.Err(); err != nil {
			break
		}

		fix, err := f.GenerateFix(ctx, m)
		result := FixResult{MismatchID: m.ID, Fix: fix}
		if err != nil {
			result.Error = err.Error()
		} else if fix != nil {
			m.SuggestedFix = fix
			m.Status = types.StatusFixGenerated
		}
		results = append(results, result)
	}
	return results
}

// FixResult pairs one mismatch with its fix-generation outcome.
type FixResult struct {
	MismatchID string         `json:"mismatch_id"`
	Fix        *types.CodeFix `json:"fix,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// llmRewrite asks the model for a corrected call site. Degenerate
// output (too short, or identical to the input) is an error so the
// caller falls back.
func (f *Fixer) llmRewrite(ctx context.Context, mismatch *types.APIMismatch, suggested types.CodeFix) (*types.CodeFix, error) {
	prompt, err := buildFixPrompt(mismatch)
	if err != nil {
		return nil, err
	}

	response, err := f.llm.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}

	snippet := extractCodeBlock(response)
	if len(snippet) < minLLMOutputLength {
		return nil, fmt.Errorf("model returned a degenerate snippet (%d bytes)", len(snippet))
	}
	if snippet == strings.TrimSpace(mismatch.Implementation.RawCode) {
		return nil, fmt.Errorf("model returned the input unchanged")
	}

	original := mismatch.Implementation.RawCode
	fix := types.CodeFix{
		FilePath:             suggested.FilePath,
		LineStart:            suggested.LineStart,
		LineEnd:              suggested.LineStart + types.CountLines(original) - 1,
		OriginalCode:         original,
		FixedCode:            snippet,
		Diff:                 types.UnifiedDiff(suggested.FilePath, original, snippet, suggested.LineStart),
		Confidence:           llmFixConfidence,
		RequiresManualReview: true,
		Description:          suggested.Description + " (model-assisted rewrite)",
	}
	return &fix, nil
}

// buildFixPrompt serializes the mismatch context for the model.
func buildFixPrompt(mismatch *types.APIMismatch) (string, error) {
	payload := map[string]any{
		"type":        mismatch.Type,
		"description": mismatch.Description,
		"call_site":   mismatch.Implementation.RawCode,
	}
	if mismatch.Expected != nil {
		payload["expected"] = mismatch.Expected
	}
	if mismatch.SuggestedFix != nil {
		payload["suggested_substitution"] = map[string]string{
			"from": mismatch.SuggestedFix.OriginalCode,
			"to":   mismatch.SuggestedFix.FixedCode,
		}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling fix context: %w", err)
	}

	return fmt.Sprintf(`You are fixing a call to an external API whose contract changed. Here is the detected problem and the current call-site code as JSON:

%s

Rewrite the call-site code so it matches the current API contract. Preserve the surrounding logic, variable names, and error handling; change only what the problem requires.

Respond with the rewritten code in a single fenced code block and nothing else.`, string(data)), nil
}

// ApplyFix substitutes a fix into file content. It first tries the
// recorded line range, then a whole-file substring search since the
// file may have drifted since detection. Content is returned unchanged
// when the original text cannot be located.
func ApplyFix(content string, fix *types.CodeFix) string {
	if fix == nil || fix.OriginalCode == "" {
		return content
	}

	lines := strings.Split(content, "\n")
	if fix.LineStart >= 1 && fix.LineEnd >= fix.LineStart && fix.LineEnd <= len(lines) {
		slice := strings.Join(lines[fix.LineStart-1:fix.LineEnd], "\n")
		if strings.Contains(slice, fix.OriginalCode) {
			patched := strings.Replace(slice, fix.OriginalCode, fix.FixedCode, 1)
			rebuilt := make([]string, 0, len(lines))
			rebuilt = append(rebuilt, lines[:fix.LineStart-1]...)
			rebuilt = append(rebuilt, patched)
			rebuilt = append(rebuilt, lines[fix.LineEnd:]...)
			return strings.Join(rebuilt, "\n")
		}
	}

	if strings.Contains(content, fix.OriginalCode) {
		return strings.Replace(content, fix.OriginalCode, fix.FixedCode, 1)
	}
	return content
}

// ApplyFixes applies a batch of fixes to one file's content. Fixes are
// applied bottom-up so earlier substitutions cannot shift the line
// numbers of later ones.
func ApplyFixes(content string, fixes []*types.CodeFix) string {
	ordered := make([]*types.CodeFix, len(fixes))
	copy(ordered, fixes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].LineStart > ordered[j].LineStart
	})

	for _, fix := range ordered {
		content = ApplyFix(content, fix)
	}
	return content
}
