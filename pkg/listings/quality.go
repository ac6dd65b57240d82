package listings

// QualityScore grades one property record on three dimensions plus a
// weighted overall. All scores are integers in [0,100]; the overall is
// 0.4*completeness + 0.4*accuracy + 0.2*consistency rounded to the
// nearest integer.
type QualityScore struct {
	Overall      int `json:"overall" yaml:"overall"`
	Completeness int `json:"completeness" yaml:"completeness"`
	Accuracy     int `json:"accuracy" yaml:"accuracy"`
	Consistency  int `json:"consistency" yaml:"consistency"`

	// Issues names each failed check in the order detected.
	Issues []string `json:"issues,omitempty" yaml:"issues,omitempty"`

	// Recommendations suggest fixes for the issues above, when the
	// validator has something concrete to offer.
	Recommendations []string `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}

// Acceptable reports whether the overall score clears the given floor.
func (qs QualityScore) Acceptable(floor int) bool {
	return qs.Overall >= floor
}
