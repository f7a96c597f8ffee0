package idcode

import "testing"

func TestParseIDCode(t *testing.T) {
	tests := []struct {
		name string
		raw  uint32
		want IDCode
	}{
		{
			name: "xilinx xc7a35t",
			raw:  0x0362D093,
			want: IDCode{
				Raw:              0x0362D093,
				Version:          0x0,
				PartNumber:       0x362D,
				ManufacturerCode: 0x049,
				HasIDCode:        true,
			},
		},
		{
			name: "no idcode bit",
			raw:  0x00000000,
			want: IDCode{Raw: 0, HasIDCode: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseIDCode(tt.raw)
			if got != tt.want {
				t.Errorf("ParseIDCode(0x%08X) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLookupManufacturer(t *testing.T) {
	m, ok := LookupManufacturer(0x049)
	if !ok {
		t.Fatalf("expected Xilinx (0x049) to be known")
	}
	if m.Abbreviation != "Xilinx" {
		t.Errorf("got abbreviation %q, want Xilinx", m.Abbreviation)
	}

	_, ok = LookupManufacturer(0x7FF)
	if ok {
		t.Errorf("expected 0x7FF to be unknown")
	}
}
