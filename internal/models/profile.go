package models

// Profile keys read by templates and prompt composition.
const (
	ProfileFullName            = "full_name"
	ProfilePassportNumber      = "passport_number"
	ProfileAddress             = "address"
	ProfileEmail               = "email"
	ProfilePhone               = "phone"
	ProfileNationality         = "nationality"
	ProfileDateOfBirth         = "date_of_birth"
	ProfileVisaType            = "visa_type"
	ProfileApplicants          = "applicants"
	ProfileSpouseName          = "spouse_name"
	ProfileApplicationLocation = "application_location"
	ProfileEmploymentStatus    = "employment_status"
	ProfileEmployerName        = "employer_name"
	ProfileConsulate           = "consulate"
	ProfileMoveDate            = "move_date"
	ProfileMonthlyIncome       = "monthly_income"
	ProfileSavings             = "savings"
	ProfileDependents          = "dependents"
)

// ProfilePIIFields lists the profile keys that identify a person and must be
// replaced by placeholders when the member asks for them.
var ProfilePIIFields = []string{
	ProfileFullName,
	ProfilePassportNumber,
	ProfileAddress,
	ProfileEmail,
	ProfilePhone,
	ProfileDateOfBirth,
	ProfileSpouseName,
	ProfileEmployerName,
}

// Profile is the long-lived record of a member's attributes.
type Profile map[string]string

// Get returns the value stored under key, or "".
func (p Profile) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Clone returns an independent copy of p.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge copies every non-empty answer into the profile, overwriting existing
// keys. Lists are joined with ", " and numbers use their shortest form.
func (p Profile) Merge(answers Answers) Profile {
	out := p.Clone()
	for k, v := range answers {
		if v.IsEmpty() {
			continue
		}
		out[k] = v.String()
	}
	return out
}
