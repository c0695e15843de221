package model

import "testing"

func TestDefaultAppDefaultsMatchesDefaultNestingConfig(t *testing.T) {
	d := DefaultAppDefaults()
	if d.Nesting != DefaultNestingConfig() {
		t.Errorf("nesting defaults mismatch: %+v", d.Nesting)
	}
	if d.SheetWidth != DefaultSheetWidth || d.SheetHeight != DefaultSheetHeight {
		t.Errorf("expected %vx%v default sheet, got %vx%v",
			DefaultSheetWidth, DefaultSheetHeight, d.SheetWidth, d.SheetHeight)
	}
}

func TestApplyToJobFillsEmptyJob(t *testing.T) {
	d := DefaultAppDefaults()
	d.Nesting.Spacing = 2

	var job NestJob
	d.ApplyToJob(&job)

	if job.Config.Spacing != 2 {
		t.Errorf("expected spacing=2, got %v", job.Config.Spacing)
	}
	if len(job.Sheets) != 1 {
		t.Fatalf("expected one default sheet, got %d", len(job.Sheets))
	}
	if job.Sheets[0].Width != DefaultSheetWidth {
		t.Errorf("expected default width, got %v", job.Sheets[0].Width)
	}
}

func TestApplyToJobKeepsExplicitConfig(t *testing.T) {
	d := DefaultAppDefaults()
	job := NestJob{
		Config: NestingConfig{Mode: ModeBBox, Spacing: 0, Rotations: 2},
		Sheets: []Sheet{{ID: "a", Width: 10, Height: 10}},
	}
	d.ApplyToJob(&job)

	if job.Config.Mode != ModeBBox || job.Config.Rotations != 2 {
		t.Errorf("explicit config overwritten: %+v", job.Config)
	}
	if len(job.Sheets) != 1 || job.Sheets[0].ID != "a" {
		t.Errorf("explicit sheets overwritten: %+v", job.Sheets)
	}
}
