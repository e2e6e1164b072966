package vision

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Snímek obrazovky", "Snimek obrazovky"},
		{"Jiří", "Jiri"},
		{"plain ascii", "plain ascii"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := RemoveDiacritics(tt.input); got != tt.expected {
			t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestIsScreenshotName(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"Screenshot 2023-01-15 at 10.30.00.png", true},
		{"screenshot_20230115.png", true},
		{"Snímek obrazovky 2023-01-15.png", true},
		{"Captura de pantalla 2023.png", true},
		{"Bildschirmfoto 2023.png", true},
		{"IMG_1234.jpg", false},
		{"my screenshot collection.jpg", false}, // prefix match only
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsScreenshotName(tt.name); got != tt.expected {
				t.Errorf("IsScreenshotName(%q) = %v, want %v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestIsScreenSize(t *testing.T) {
	if !IsScreenSize(1080, 1920) {
		t.Error("expected 1080x1920 to match")
	}
	if !IsScreenSize(1920, 1080) {
		t.Error("expected landscape orientation to match too")
	}
	if IsScreenSize(4000, 3000) {
		t.Error("expected camera resolution not to match")
	}
}

func TestInspectionPayloadConversion(t *testing.T) {
	score := 12.5
	exposure := "underexposed"
	payload := inspectionPayload{
		BlurScore:   &score,
		Exposure:    &exposure,
		FaceIssues:  []string{"closed_eyes", "bogus_issue"},
		Orientation: 90,
		Screenshot:  true,
		Confidence:  0.9,
	}

	inspection := payload.toInspection()
	if inspection.BlurScore == nil || *inspection.BlurScore != 12.5 {
		t.Error("blur score not carried over")
	}
	if inspection.Exposure == nil || string(*inspection.Exposure) != "underexposed" {
		t.Error("exposure not carried over")
	}
	// Unknown face issues from the model are dropped.
	if len(inspection.FaceIssues) != 1 {
		t.Fatalf("expected 1 face issue, got %d", len(inspection.FaceIssues))
	}
	if inspection.Orientation == nil || *inspection.Orientation != 90 {
		t.Error("orientation not carried over")
	}
	if !inspection.Screenshot {
		t.Error("screenshot flag not carried over")
	}

	upright := inspectionPayload{Orientation: 0}
	if upright.toInspection().Orientation != nil {
		t.Error("expected nil orientation for upright photos")
	}
}
