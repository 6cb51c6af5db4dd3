package inventory

import (
	"reflect"
	"testing"
)

func TestNormalizeAssetType(t *testing.T) {
	tests := []struct {
		input   string
		want    AssetType
		wantErr bool
	}{
		{"OS", AssetTypeOS, false},
		{"os", AssetTypeOS, false},
		{" vm ", AssetTypeVM, false},
		{"BMC", AssetTypeBMC, false},
		{"IPMI_ILO", AssetTypeBMC, false},
		{"ipmi_ilo", AssetTypeBMC, false},
		{"VIP", AssetTypeVIP, false},
		{"other", AssetTypeOther, false},
		{"", "", true},
		{"ROUTER", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeAssetType(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeAssetType(%q): expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeAssetType(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeAssetType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeHexColor(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"#2563EB", "#2563eb", false},
		{"#2563eb", "#2563eb", false},
		{" #ABCDEF ", "#abcdef", false},
		{"", "", false},
		{"2563eb", "", true},
		{"#2563e", "", true},
		{"#zzzzzz", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeHexColor(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeHexColor(%q): expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeHexColor(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeHexColor(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeTagName(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"Prod", "prod", false},
		{" web-01 ", "web-01", false},
		{"a.b_c-d", "a.b_c-d", false},
		{"", "", true},
		{"has space", "", true},
		{"caps!", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeTagName(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeTagName(%q): expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeTagName(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeTagName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeTagNames(t *testing.T) {
	got := NormalizeTagNames([]string{"Prod", "web", "prod", "", "bad tag", "Web"})
	want := []string{"prod", "web"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTagNames = %v, want %v", got, want)
	}
}

func TestSplitTagString(t *testing.T) {
	got := SplitTagString(" a, b ,, c ")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitTagString = %v, want %v", got, want)
	}
	if out := SplitTagString(""); len(out) != 0 {
		t.Errorf("SplitTagString(\"\") = %v, want empty", out)
	}
}
