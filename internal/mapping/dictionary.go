package mapping

// SheetColumns are the candidate columns an import can populate, in sheet order
var SheetColumns = []string{
	"application_date", "job_title", "candidate_name", "current_company", "total_experience",
	"phones", "emails", "notice_period", "current_location", "preferred_locations",
	"ctc_current", "ectc", "key_skills", "education", "post_graduation", "pf_docs_confirm",
	"notice_period_details", "current_ctc_lpa", "expected_ctc_lpa", "employee_size",
	"companies_worked", "calling_status", "profile_status", "comments",
}

// AliasGroup binds a candidate column to the header spellings that name it
type AliasGroup struct {
	Field   string
	Aliases []string
}

// ForcedGroups are operator-blessed spellings. A normalized hit maps with full confidence.
var ForcedGroups = []AliasGroup{
	{"application_date", []string{"applicationdate", "applieddate", "dateapplied", "candapplicationdate"}},
	{"job_title", []string{"jobtitle", "designation", "role", "position", "title"}},
	{"candidate_name", []string{"name", "fullname", "candidatename", "applicant", "applicantname"}},
	{"current_company", []string{
		"currentcompany", "presentcompany", "company", "companyname", "employer", "employername",
		"organisation", "organization", "org", "currcompany", "currentemployer", "presentemployer",
	}},
	{"total_experience", []string{
		"experience", "totalexperience", "overall_experience", "yearsofexperience", "expyrs", "yrsofexp", "exp",
	}},
	{"phones", []string{
		"phonenumber", "phone", "phoneno", "phno", "mobile", "mobileno", "mobile_number", "cell", "cellphone",
		"contactnumber", "contactno", "whatsapp", "whatsappno", "whatsappnumber", "telephone", "tel",
	}},
	{"emails", []string{
		"email", "emailid", "email_id", "emailaddress", "e-mail", "e_mail", "mail", "workemail", "personalemail",
		"primaryemail", "secondaryemail", "contactemail", "businessmail", "officialemail", "emial", "emai",
	}},
	{"notice_period", []string{"noticeperiod", "npdays", "noticeperioddays", "notice_days"}},
	{"notice_period_details", []string{"Offer", "Offer Details", "offer in hand", "Ans(What is your notice period?)"}},
	{"current_location", []string{
		"location", "currentlocation", "baselocation", "joblocation", "officelocation", "city", "workcity",
	}},
	{"preferred_locations", []string{
		"preferredlocation", "preferredlocations", "preferredcity", "preferredcities", "desiredlocation",
		"desiredlocations", "relocationpreference",
	}},
	{"ctc_current", []string{
		"ctc", "presentctc", "currentctc", "annualctc", "ctcyearly", "yearlyctc", "package", "currentpackage",
		"salary", "currentsalary",
	}},
	{"ectc", []string{"ectc", "expectedctc", "expectedsalary", "expectedpackage", "expectedannualsalary", "expectedsalarylpa"}},
	{"current_ctc_lpa", []string{
		"ctclpa", "currentctclpa", "ctc(lpa)", "salarylpa", "ctc_lpa",
		"Ans(What is your current CTC in Lakhs per annum?)",
	}},
	{"expected_ctc_lpa", []string{"expectedctclpa", "expctclpa", "Ans(What is your expected CTC in Lakhs per annum?)"}},
	{"key_skills", []string{
		"skills", "keyskills", "primaryskills", "secondaryskills", "skillset", "technologies", "techstack", "stack",
	}},
	{"education", []string{
		"education", "highestqualification", "qualification", "degree", "ugdegree", "undergraduationdegree",
		"undergraduate", "bachelors", "phd", "diploma", "alma", "alumni", "college", "school",
	}},
	{"post_graduation", []string{"postgraduate", "masters", "Post Graduation Degree", "postgraduation", "post graduation degree"}},
	{"pf_docs_confirm", []string{
		"pf", "providentfund", "pfdocs", "pfconfirmation",
		"Ans(Do you have all PF and other documents from all previous companies.)",
	}},
	{"employee_size", []string{
		"employeesize", "companysize", "teamsize", "teamheadcount", "orgsize", "headcount",
		"Ans(What is the Employee size of your current company?)",
	}},
	{"companies_worked", []string{
		"companiesworked", "companycount", "employerscount", "pastcompanies", "totalcompanies", "noofcompanies",
		"Ans(How many companies you have worked with till now?)",
	}},
	{"calling_status", []string{"callingstatus", "callstatus", "telecallstatus", "phonecallstatus"}},
	{"profile_status", []string{"profilestatus", "status", "candidatestatus", "applicationstatus"}},
	{"comments", []string{"comments", "notes", "remarks", "reviewcomments", "recruiternotes", "additionalnotes", "feedback"}},
	{"added_date", []string{"addeddate", "createddate"}},
	{"updated_date", []string{"updateddate", "modifieddate"}},
	{"added_by", []string{"addedby", "createdby"}},
}

// CanonicalGroups is the broader synonym dictionary consulted by the generic chain
var CanonicalGroups = []AliasGroup{
	{"emails", []string{"email", "email id", "emailaddress", "e-mail", "emails", "mail", "contact email"}},
	{"phones", []string{"phone", "phone number", "mobile", "mobileno", "cell", "contact no", "phone_number"}},
	{"current_company", []string{"company", "current company", "organisation", "organization", "org", "curr company"}},
	{"education", []string{"education", "ug degree", "under graduation degree", "alma mater", "qualification"}},
	{"ctc_current", []string{"ctc", "current ctc", "ctc_current", "ctc current"}},
	{"current_ctc_lpa", []string{
		"current ctc lpa", "current_ctc_lpa", "ctc lpa", "Ans(What is your current CTC in Lakhs per annum?)",
	}},
	{"expected_ctc_lpa", []string{
		"expected ctc lpa", "expected_ctc_lpa", "Ans(What is your expected CTC in Lakhs per annum?)",
	}},
	{"employee_size", []string{
		"employee size", "company size", "team size", "Ans(What is the Employee size of your current company?)",
	}},
	{"companies_worked", []string{
		"companies worked", "no of companies", "companies_worked", "total companies",
		"Ans(How many companies you have worked with till now?)",
	}},
	{"comments", []string{"comments", "notes", "remarks"}},
}

// Dictionary is an exact lookup from normalized alias to column
type Dictionary struct {
	index map[string]string
	keys  []string
}

// NewDictionary normalizes every alias once. When two groups share a
// normalized alias the earlier group keeps it.
func NewDictionary(groups []AliasGroup) *Dictionary {
	d := &Dictionary{index: make(map[string]string)}
	for _, g := range groups {
		for _, alias := range g.Aliases {
			tok := Normalize(alias)
			if tok == "" {
				continue
			}
			if _, taken := d.index[tok]; taken {
				continue
			}
			d.index[tok] = g.Field
			d.keys = append(d.keys, tok)
		}
	}
	return d
}

// Lookup returns the column for an already-normalized token
func (d *Dictionary) Lookup(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	field, ok := d.index[token]
	return field, ok
}

// Keys returns the normalized aliases in definition order
func (d *Dictionary) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len reports the number of distinct normalized aliases
func (d *Dictionary) Len() int {
	return len(d.index)
}

var (
	forcedDictionary    = NewDictionary(ForcedGroups)
	canonicalDictionary = NewDictionary(append(append([]AliasGroup(nil), CanonicalGroups...), columnGroups()...))
)

// columnGroups lets a header spelled exactly like a column resolve to it
func columnGroups() []AliasGroup {
	groups := make([]AliasGroup, 0, len(SheetColumns))
	for _, col := range SheetColumns {
		groups = append(groups, AliasGroup{Field: col, Aliases: []string{col}})
	}
	return groups
}

// LookupForced checks the forced alias table
func LookupForced(token string) (string, bool) {
	return forcedDictionary.Lookup(token)
}

// LookupCanonical checks the canonical synonym table
func LookupCanonical(token string) (string, bool) {
	return canonicalDictionary.Lookup(token)
}
