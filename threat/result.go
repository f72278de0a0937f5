package threat

import "strings"

// Level is the coarse threat severity of an AnalysisResult.
type Level string

// Threat levels.
const (
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelCritical Level = "Critical"
)

// AnalysisResult is the structured verdict for a URL, email or SMS.
// List fields are never nil.
type AnalysisResult struct {
	RiskScore              int      `json:"riskScore" validate:"gte=0,lte=100"`
	ThreatLevel            Level    `json:"threatLevel" validate:"oneof=Low Medium High Critical"`
	ConfidenceLevel        int      `json:"confidenceLevel" validate:"gte=0,lte=100"`
	Category               string   `json:"category"`
	LinguisticManipulation []string `json:"linguisticManipulation"`
	PsychologicalTriggers  []string `json:"psychologicalTriggers"`
	Explanation            string   `json:"explanation"`
	Recommendation         string   `json:"recommendation"`
	Indicators             []string `json:"indicators"`
	BehavioralRiskIndex    int      `json:"behavioralRiskIndex" validate:"gte=0,lte=100"`
}

// RequiredFields are the JSON keys an AnalysisResult document must carry.
var RequiredFields = []string{
	"riskScore", "threatLevel", "confidenceLevel", "category", "explanation", "recommendation", "indicators",
}

// ValidateResult checks the numeric ranges and the threat level enum.
func ValidateResult(r *AnalysisResult) error {
	return validate.Struct(r)
}

// DataUnavailable fills report fields whose tag the model did not emit.
const DataUnavailable = "Data Unavailable"

// Video verdict classes.
const (
	VerdictCritical   = "CRITICAL"
	VerdictSuspicious = "SUSPICIOUS"
	VerdictSecure     = "SECURE"
)

// VideoForensicReport is the five-section audit of a video clip.
type VideoForensicReport struct {
	Verdict               string `json:"verdict"`
	Confidence            string `json:"confidence"`
	VisualIntegrity       string `json:"visualIntegrity"`
	PsychologicalAnalysis string `json:"psychologicalAnalysis"`
	TechnicalFlags        string `json:"technicalFlags"`
}

// Classification maps the free-text verdict to CRITICAL, SUSPICIOUS or SECURE.
// CRITICAL wins when both words appear; anything unrecognised is SECURE.
func (r VideoForensicReport) Classification() string {
	v := strings.ToUpper(r.Verdict)
	switch {
	case strings.Contains(v, VerdictCritical):
		return VerdictCritical
	case strings.Contains(v, VerdictSuspicious):
		return VerdictSuspicious
	}
	return VerdictSecure
}

// Source is one web page backing an IntelBrief.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// IntelBrief is a search-grounded threat intelligence answer.
type IntelBrief struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}
