package model

// AppDefaults holds application-wide defaults applied to new jobs.
type AppDefaults struct {
	// Default nesting parameters
	Nesting NestingConfig `json:"nesting"`

	// Default sheet used when a job arrives without sheets
	SheetWidth  float64 `json:"sheet_width"`
	SheetHeight float64 `json:"sheet_height"`
}

// DefaultAppDefaults returns AppDefaults populated with the engine defaults.
func DefaultAppDefaults() AppDefaults {
	return AppDefaults{
		Nesting:     DefaultNestingConfig(),
		SheetWidth:  DefaultSheetWidth,
		SheetHeight: DefaultSheetHeight,
	}
}

// ApplyToJob fills in what a job left unset: a zero config becomes the
// default config, and a job without sheets gets one default sheet.
func (d AppDefaults) ApplyToJob(job *NestJob) {
	if job.Config == (NestingConfig{}) {
		job.Config = d.Nesting
	}
	if job.Config.Mode == "" {
		job.Config.Mode = d.Nesting.Mode
	}
	if job.Config.Rotations == 0 {
		job.Config.Rotations = 1
	}
	if len(job.Sheets) == 0 {
		job.Sheets = []Sheet{{
			ID:     "0",
			Name:   "Sheet 1",
			Width:  d.SheetWidth,
			Height: d.SheetHeight,
			Parts:  []PlacementInstance{},
		}}
	}
}
