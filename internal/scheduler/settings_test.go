package scheduler

import "testing"

func TestParseSettingsDefaults(t *testing.T) {
	got := ParseSettings(nil)
	want := DefaultSettings()
	if got != want {
		t.Fatalf("ParseSettings(nil) = %+v, want defaults %+v", got, want)
	}
}

func TestParseSettingsOverrides(t *testing.T) {
	got := ParseSettings(map[string]string{
		KeyEnabled:            "false",
		KeyMinHoursBetween:    "4.5",
		KeyPostsThreshold:     "7",
		KeyViewsThreshold:     "100",
		KeyTriggerProbability: "0.5",
		KeyGlobalDailyCap:     "20",
		KeyPersonaDailyCap:    "3",
		KeyPersonaCooldown:    "12",
	})
	if got.Enabled {
		t.Errorf("Enabled = true, want false")
	}
	if got.MinHoursBetween != 4.5 {
		t.Errorf("MinHoursBetween = %v, want 4.5", got.MinHoursBetween)
	}
	if got.PostsThreshold != 7 {
		t.Errorf("PostsThreshold = %d, want 7", got.PostsThreshold)
	}
	if got.ViewsThreshold != 100 {
		t.Errorf("ViewsThreshold = %d, want 100", got.ViewsThreshold)
	}
	if got.TriggerProbability != 0.5 {
		t.Errorf("TriggerProbability = %v, want 0.5", got.TriggerProbability)
	}
	if got.GlobalDailyCap != 20 {
		t.Errorf("GlobalDailyCap = %d, want 20", got.GlobalDailyCap)
	}
	if got.PersonaDailyCap != 3 {
		t.Errorf("PersonaDailyCap = %d, want 3", got.PersonaDailyCap)
	}
	if got.PersonaCooldown != 12 {
		t.Errorf("PersonaCooldown = %v, want 12", got.PersonaCooldown)
	}
}

func TestParseSettingsFallsBackOnGarbage(t *testing.T) {
	got := ParseSettings(map[string]string{
		KeyEnabled:            "maybe",
		KeyMinHoursBetween:    "-3",
		KeyPostsThreshold:     "lots",
		KeyViewsThreshold:     "",
		KeyTriggerProbability: "1.5",
		KeyGlobalDailyCap:     "-1",
	})
	want := DefaultSettings()
	if got != want {
		t.Fatalf("ParseSettings(garbage) = %+v, want defaults %+v", got, want)
	}
}

func TestValidateSetting(t *testing.T) {
	valid := map[string]string{
		KeyEnabled:            "true",
		KeyMinHoursBetween:    "0",
		KeyPostsThreshold:     "3",
		KeyViewsThreshold:     "25",
		KeyTriggerProbability: "0.25",
		KeyGlobalDailyCap:     "10",
		KeyPersonaDailyCap:    "2",
		KeyPersonaCooldown:    "6",
	}
	for k, v := range valid {
		if err := ValidateSetting(k, v); err != nil {
			t.Errorf("ValidateSetting(%s, %s) = %v, want nil", k, v, err)
		}
	}

	invalid := map[string]string{
		"made_up_key":         "1",
		KeyEnabled:            "on",
		KeyMinHoursBetween:    "-1",
		KeyPostsThreshold:     "2.5",
		KeyTriggerProbability: "1.01",
		KeyGlobalDailyCap:     "ten",
		KeyPersonaCooldown:    "",
	}
	for k, v := range invalid {
		if err := ValidateSetting(k, v); err == nil {
			t.Errorf("ValidateSetting(%s, %q) = nil, want error", k, v)
		}
	}
}

func TestPersonaByName(t *testing.T) {
	p, ok := PersonaByName("vex")
	if !ok || p.Name != "vex" {
		t.Fatalf("PersonaByName(vex) = %+v, %v", p, ok)
	}
	if len(p.Templates) == 0 {
		t.Fatalf("persona %s has no templates", p.Name)
	}
	if _, ok := PersonaByName("nobody"); ok {
		t.Fatalf("PersonaByName(nobody) should miss")
	}
}
