package normalize

import "testing"

func TestCanonicalZoneID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"DMZ Zone", "dmz"},
		{"dmz", "dmz"},
		{"Perimeter", "dmz"},
		{"Internet", "internet"},
		{"external", "internet"},
		{"On-Prem", "on_prem"},
		{"onprem", "on_prem"},
		{"on_prem", "on_prem"},
		{"Data Layer", "data"},
		{"  Identity  ", "identity"},
		{"Payments -- Core!!", "payments_core"},
		{"__a__b__", "a_b"},
		{"", "zone"},
		{"###", "zone"},
		{"zone_3", "zone_3"},
		{"internet_1", "internet_1"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := CanonicalZoneID(tt.raw); got != tt.want {
				t.Errorf("CanonicalZoneID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCanonicalZoneIDIdempotent(t *testing.T) {
	for _, raw := range []string{"DMZ Zone", "On-Prem", "Payments -- Core!!", "x", "", "External"} {
		once := CanonicalZoneID(raw)
		if twice := CanonicalZoneID(once); twice != once {
			t.Errorf("CanonicalZoneID(CanonicalZoneID(%q)) = %q, want %q", raw, twice, once)
		}
	}
}
