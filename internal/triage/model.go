package triage

import "time"

// DefaultComment is used when no comment could be extracted from classifier output.
const DefaultComment = "No comment provided."

// Result is a graded imaging study, optionally annotated by a radiologist.
type Result struct {
	ImageName        string    `json:"image_name"`
	SeverityRating   *float64  `json:"severity_rating"`
	Comment          string    `json:"comment"`
	ImageData        string    `json:"image_data"`
	RadiologistNotes *string   `json:"radiologist_notes"`
	CreatedAt        time.Time `json:"created_at,omitzero"`
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	cp := *r
	if r.SeverityRating != nil {
		v := *r.SeverityRating
		cp.SeverityRating = &v
	}
	if r.RadiologistNotes != nil {
		v := *r.RadiologistNotes
		cp.RadiologistNotes = &v
	}
	return &cp
}

// Failure reports an image that was excluded from a batch.
type Failure struct {
	ImageName string `json:"image_name"`
	Error     string `json:"error"`
}

// Upload is a manually submitted image.
type Upload struct {
	Filename string
	Data     []byte
}

// BatchResult is the outcome of a fetch-and-triage run.
type BatchResult struct {
	BatchID        string    `json:"batch_id"`
	Results        []*Result `json:"results"`
	Failed         []Failure `json:"failed"`
	ProcessedCount int       `json:"processed_count"`
}

// UploadResult is the outcome of triaging manual uploads.
type UploadResult struct {
	Results []*Result `json:"results"`
	Failed  []Failure `json:"failed"`
}

// NameSet is the set of image names already present in the store.
type NameSet map[string]struct{}

// NewNameSet builds a NameSet from names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set. A nil set contains nothing.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}
