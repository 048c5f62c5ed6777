package constants

// DocumentKind distinguishes the two raw document types the pipeline
// accepts.
type DocumentKind string

const (
	KindResume DocumentKind = "resume"
	KindJob    DocumentKind = "job"
)

// DocumentKinds lists every accepted kind, for validation messages.
var DocumentKinds = []DocumentKind{KindResume, KindJob}

func (k DocumentKind) Valid() bool {
	return k == KindResume || k == KindJob
}
