package idcode

import "fmt"

// ParseIDCode parses a raw 32-bit IDCODE into its component fields
func ParseIDCode(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8((raw >> 28) & 0xF),
		PartNumber:       uint16((raw >> 12) & 0xFFFF),
		ManufacturerCode: uint16((raw >> 1) & 0x7FF),
		HasIDCode:        (raw & 0x1) == 0x1,
	}
}

// String renders the IDCODE with its resolved manufacturer name.
func (id IDCode) String() string {
	m, _ := LookupManufacturer(id.ManufacturerCode)
	return fmt.Sprintf("0x%08X (Mfg: %s, Part: 0x%04X, Ver: %d)",
		id.Raw, m.Name, id.PartNumber, id.Version)
}
