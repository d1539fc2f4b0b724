package device

import "testing"

func TestIsHDMIDevice_PackNames(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"NVIDIA High Definition Audio", true},
		{"Intel(R) Display Audio", true},
		{"AMD High Definition Audio Device", true},
		{"HDMI Output", true},
		{"Realtek Audio", false},
		{"Speakers", false},
	}
	for _, c := range cases {
		if got := IsHDMIDevice("", c.name); got != c.want {
			t.Errorf("IsHDMIDevice(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsHDMIDevice_IDFallback(t *testing.T) {
	if !IsHDMIDevice("{0.0.0.00000000}.{hdmi-guid}", "Unknown Device") {
		t.Error("expected id substring 'hdmi' to classify as HDMI")
	}
	if !IsHDMIDevice("display-endpoint-1", "Unknown Device") {
		t.Error("expected id substring 'display' to classify as HDMI")
	}
	if IsHDMIDevice("speakers-endpoint-1", "Speakers") {
		t.Error("expected plain speakers id/name not to classify as HDMI")
	}
}

func TestIsHDMIDevice_CaseInsensitiveAndIdempotent(t *testing.T) {
	inputs := []string{"hdmi output", "HDMI OUTPUT", "Hdmi Output"}
	var first bool
	for i, in := range inputs {
		got := IsHDMIDevice("", in)
		if i == 0 {
			first = got
		}
		if got != first {
			t.Errorf("classification not case-insensitive across %q", in)
		}
		if got2 := IsHDMIDevice("", in); got2 != got {
			t.Errorf("classification not idempotent for %q", in)
		}
	}
}
