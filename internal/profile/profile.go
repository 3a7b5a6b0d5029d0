package profile

// DefaultName is the name of the profile materialized on first run.
const DefaultName = "Default"

// Built-in defaults for the Default profile.
const (
	DefaultInferenceURL = "http://localhost:11434"
	DefaultModel        = "llama2"
	DefaultOCRURL       = "http://localhost:8080/ocr"
	DefaultPrompt       = "Du bist ein hilfreicher Assistent. Antworte präzise und kurz."
)

// DefaultLanguages are the OCR languages of the Default profile.
var DefaultLanguages = []string{"deu", "eng"}

// Profile is a named bundle of endpoint and filter configuration.
// JSON field names match the exported profile record format.
type Profile struct {
	// Name uniquely identifies the profile in the store
	Name string `json:"name"`

	// InferenceURL is the base URL of the language-model server
	InferenceURL string `json:"ollamaUrl"`

	// InferenceModel is the model identifier sent with every generate call
	InferenceModel string `json:"model"`

	// OCRURL is the full URL of the OCR endpoint
	OCRURL string `json:"ocrUrl"`

	// OCRLanguages is an ordered set of language codes, e.g. ["deu", "eng"]
	OCRLanguages []string `json:"ocrLanguages"`

	// SystemPrompt is the instruction placed in the System: section (may be empty)
	SystemPrompt string `json:"prompt"`

	// Filters controls DOM text extraction
	Filters FilterSpec `json:"filters"`
}

// FilterSpec holds the include/exclude selector lists and the post-filter regex.
type FilterSpec struct {
	Regex      string   `json:"regex"`
	DOMInclude []string `json:"domInclude"`
	DOMExclude []string `json:"domExclude"`
}

// Overrides replaces built-in Default profile values. Empty fields keep the built-in value.
type Overrides struct {
	InferenceURL   string
	InferenceModel string
	OCRURL         string
	OCRLanguages   []string
	SystemPrompt   string
}

// Default returns the Default profile, applying any non-empty overrides.
func Default(o Overrides) Profile {
	p := Profile{
		Name:           DefaultName,
		InferenceURL:   DefaultInferenceURL,
		InferenceModel: DefaultModel,
		OCRURL:         DefaultOCRURL,
		OCRLanguages:   append([]string(nil), DefaultLanguages...),
		SystemPrompt:   DefaultPrompt,
		Filters: FilterSpec{
			DOMInclude: []string{},
			DOMExclude: []string{},
		},
	}
	if o.InferenceURL != "" {
		p.InferenceURL = o.InferenceURL
	}
	if o.InferenceModel != "" {
		p.InferenceModel = o.InferenceModel
	}
	if o.OCRURL != "" {
		p.OCRURL = o.OCRURL
	}
	if langs := CleanList(o.OCRLanguages); len(langs) > 0 {
		p.OCRLanguages = langs
	}
	if o.SystemPrompt != "" {
		p.SystemPrompt = o.SystemPrompt
	}
	return p
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	c := p
	c.OCRLanguages = append([]string{}, p.OCRLanguages...)
	c.Filters.DOMInclude = append([]string{}, p.Filters.DOMInclude...)
	c.Filters.DOMExclude = append([]string{}, p.Filters.DOMExclude...)
	return c
}
