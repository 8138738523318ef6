package diagnose

// demoResult is served whenever the hosted classifier or generator is
// unavailable. diseaseName overrides come from a successful classification
// when only the generation side failed.
func demoResult() *Result {
	return &Result{
		IsDemo:         true,
		DiseaseName:    "Late Blight",
		ScientificName: "Phytophthora infestans",
		AffectedCrops:  []string{"Potato", "Tomato"},
		Symptoms: []string{
			"Dark brown to black water-soaked spots on leaves",
			"White fungal growth on the underside of leaves in humid weather",
			"Rapid browning and collapse of stems and foliage",
			"Firm brown rot spreading into tubers or fruit",
		},
		DiseaseDescription: "Late blight is a fast-moving fungal-like disease that thrives in cool, " +
			"wet conditions. It can destroy an entire crop within days of the first visible spots, " +
			"so early action matters more than with most other diseases.",
		Remedies: Remedies{
			Cultural: []string{
				"Remove and destroy infected plants away from the field",
				"Avoid overhead irrigation late in the day",
				"Use certified disease-free seed and resistant varieties next season",
			},
			Biological: []string{
				"Apply Trichoderma viride as a soil and foliar treatment",
				"Spray neem-based formulations to slow the spread",
			},
			Chemical: []string{
				"Spray mancozeb 75% WP at the first sign of disease",
				"Alternate with metalaxyl-based fungicide to avoid resistance",
			},
		},
	}
}
