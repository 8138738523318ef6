package diagnose

// Remedies groups treatment options the way extension workers present them.
type Remedies struct {
	Cultural   []string `json:"cultural"`
	Biological []string `json:"biological"`
	Chemical   []string `json:"chemical"`
}

// Result is the structured diagnosis returned to the caller. It exists only
// as a transient response payload and is never stored.
type Result struct {
	IsDemo             bool     `json:"isDemo,omitempty"`
	DiseaseName        string   `json:"diseaseName"`
	ScientificName     string   `json:"scientificName"`
	AffectedCrops      []string `json:"affectedCrops"`
	Symptoms           []string `json:"symptoms"`
	DiseaseDescription string   `json:"diseaseDescription"`
	Remedies           Remedies `json:"remedies"`
	Confidence         float64  `json:"confidence,omitempty"`
}

type diseaseInfo struct {
	DiseaseName        string   `json:"diseaseName"`
	ScientificName     string   `json:"scientificName"`
	AffectedCrops      []string `json:"affectedCrops"`
	Symptoms           []string `json:"symptoms"`
	DiseaseDescription string   `json:"diseaseDescription"`
}

type treatmentInfo struct {
	Cultural   []string `json:"cultural"`
	Biological []string `json:"biological"`
	Chemical   []string `json:"chemical"`
}
