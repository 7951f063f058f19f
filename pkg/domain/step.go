package domain

// Step identifies one of the networked workflow actions.
type Step string

const (
	StepUpload     Step = "upload"
	StepAnalyze    Step = "analyze"
	StepRegenerate Step = "regenerate"
	StepImprove    Step = "improve"
)

// Steps lists the workflow actions in pipeline order.
var Steps = []Step{StepUpload, StepAnalyze, StepRegenerate, StepImprove}

// Noun returns the human name of the step ("Analysis", "Regeneration", ...).
func (s Step) Noun() string {
	switch s {
	case StepUpload:
		return "Upload"
	case StepAnalyze:
		return "Analysis"
	case StepRegenerate:
		return "Regeneration"
	case StepImprove:
		return "Improvement"
	}
	return string(s)
}

// FailureMessage is the generic message surfaced when the backend gives no
// structured error for the step.
func (s Step) FailureMessage() string {
	return s.Noun() + " failed"
}
