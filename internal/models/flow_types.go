package models

// FlowType identifies a question flow and the document or guide it produces.
type FlowType string

// Flow type constants.
const (
	FlowProfileIntake               FlowType = "profile_intake"
	FlowCoverLetter                 FlowType = "cover_letter"
	FlowFinancialStatement          FlowType = "financial_statement"
	FlowNonWorkAttestation          FlowType = "non_work_attestation"
	FlowApostilleGuide              FlowType = "apostille_guide"
	FlowRelocationGuide             FlowType = "relocation_guide"
	FlowHealthInsuranceVerification FlowType = "health_insurance_verification"
)

// Answer keys shared by several flows.
const (
	AnswerPrivacyChoice  = "privacy_choice"
	PrivacyPlaceholders  = "placeholders"
	PrivacyActual        = "actual"
	AnswerPropertyStatus = "property_status"
)
