package domain

// ExtractionResult is the normalized output of the extraction capability.
// Both slices are always non-nil.
type ExtractionResult struct {
	Checklist []string `json:"checklist"`
	Plan      []string `json:"plan"`
}

func EmptyExtraction() ExtractionResult {
	return ExtractionResult{Checklist: []string{}, Plan: []string{}}
}
