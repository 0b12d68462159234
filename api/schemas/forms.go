package schemas

// FormFieldAnalysis describes one field discovered during form analysis.
type FormFieldAnalysis struct {
	Selector     string `json:"selector"`
	Name         string `json:"name,omitempty"`
	FieldType    string `json:"field_type"`
	Label        string `json:"label,omitempty"`
	Placeholder  string `json:"placeholder,omitempty"`
	Autocomplete string `json:"autocomplete,omitempty"`
	Required     bool   `json:"required"`
	Value        string `json:"value,omitempty"`
}

// FormAnalysis is the inventory of one form on the page.
type FormAnalysis struct {
	Selector    string              `json:"selector"`
	Action      string              `json:"action,omitempty"`
	Method      string              `json:"method,omitempty"`
	Fields      []FormFieldAnalysis `json:"fields"`
	SubmitLabel string              `json:"submit_label,omitempty"`
}

// AutofillProfile maps canonical field names (name, email, phone, address,
// company...) to the values used when filling a form.
type AutofillProfile map[string]string

// AutofillFieldResult reports the outcome for one field during autofill.
type AutofillFieldResult struct {
	Selector string `json:"selector"`
	Field    string `json:"field,omitempty"`
	Filled   bool   `json:"filled"`
	Reason   string `json:"reason,omitempty"`
}

// AutofillResult summarizes one autofill run.
type AutofillResult struct {
	FormSelector string                `json:"form_selector"`
	Profile      string                `json:"profile"`
	Filled       int                   `json:"filled"`
	Skipped      int                   `json:"skipped"`
	Fields       []AutofillFieldResult `json:"fields"`
}
