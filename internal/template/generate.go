package template

// Generate loads the template at templatePath, expands it once per set and
// writes the collection to outputPath. Nothing is written unless every set
// expands cleanly.
func Generate(templatePath string, sets []Set, outputPath string) (*Report, error) {
	t, err := Load(templatePath)
	if err != nil {
		return nil, err
	}

	report, err := ExpandAllReport(t, sets)
	if err != nil {
		return nil, err
	}

	if err := Persist(report.Collection, outputPath); err != nil {
		return nil, err
	}
	return report, nil
}
